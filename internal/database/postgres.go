package database

import (
	"database/sql"
)

type PgChatSyncRepository struct {
	conn *sql.DB
}

func NewPgChatSyncRepository(dsn string) (*PgChatSyncRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgChatSyncRepository{conn: db}, nil
}

func (db *PgChatSyncRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgChatSyncRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

func (db *PgChatSyncRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, status, last_seen, created_at, updated_at) "+
			"VALUES ($1, $2, $3, 'offline', $4, $4, $4) RETURNING id, username, email, status, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatSyncRepository) GetAccountById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, status, last_seen, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		userId,
	)

	var u User
	var lastSeen sql.NullTime
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Status,
		&lastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	u.LastSeen = lastSeen.Time

	return u, err
}

func (db *PgChatSyncRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, status, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatSyncRepository) GetAccountsByIds(userIds []int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, email, status FROM accounts WHERE id = ANY($1)",
		pq.Array(userIds),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.Status); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgChatSyncRepository) UpdateUserStatus(userId int, status string, lastSeen time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE accounts SET status = $2, last_seen = $3, updated_at = $3 WHERE id = $1",
		userId,
		status,
		lastSeen,
	)

	return err
}

func (db *PgChatSyncRepository) UpsertDevice(userId int, deviceId, name string, seenAt time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO devices (user_id, device_id, name, active, last_seen) VALUES ($1, $2, $3, TRUE, $4) "+
			"ON CONFLICT (user_id, device_id) DO UPDATE SET active = TRUE, last_seen = $4",
		userId,
		deviceId,
		name,
		seenAt,
	)

	return err
}

func (db *PgChatSyncRepository) CreateChat(params CreateChatParams) (Chat, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var admin sql.NullInt64
	if params.AdminId != 0 {
		admin = sql.NullInt64{Int64: int64(params.AdminId), Valid: true}
	}

	res := tx.QueryRow(
		"INSERT INTO chats (external_id, type, name, description, admin_id, is_active, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6) "+
			"RETURNING id, external_id, type, name, description, is_active, created_at, updated_at",
		params.ExternalId,
		params.Type,
		params.Name,
		params.Description,
		admin,
		time.Now().UTC(),
	)

	var chat Chat
	err = res.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.Type,
		&chat.Name,
		&chat.Description,
		&chat.IsActive,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return Chat{}, err
	}
	chat.AdminId = params.AdminId

	for _, userId := range params.ParticipantIds {
		if _, err = tx.Exec(
			"INSERT INTO chat_participants (chat_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			chat.Id,
			userId,
			time.Now().UTC(),
		); err != nil {
			return Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Chat{}, err
	}

	chat.Participants, err = db.GetParticipants(chat.Id)
	return chat, err
}

const chatColumns = "c.id, c.external_id, c.type, c.name, c.description, c.admin_id, " +
	"c.last_message_id, c.last_message_time, c.is_active, c.created_at, c.updated_at"

func scanChat(row interface{ Scan(...any) error }) (Chat, error) {
	var chat Chat
	var admin, lastMessageId sql.NullInt64
	var lastMessageTime sql.NullTime

	err := row.Scan(
		&chat.Id,
		&chat.ExternalId,
		&chat.Type,
		&chat.Name,
		&chat.Description,
		&admin,
		&lastMessageId,
		&lastMessageTime,
		&chat.IsActive,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return Chat{}, err
	}

	chat.AdminId = int(admin.Int64)
	chat.LastMessageId = int(lastMessageId.Int64)
	chat.LastMessageTime = lastMessageTime.Time

	return chat, nil
}

func (db *PgChatSyncRepository) GetChatByExternalId(externalId string) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT "+chatColumns+" FROM chats c WHERE c.external_id = $1 LIMIT 1",
		externalId,
	)

	chat, err := scanChat(row)
	if err != nil {
		return Chat{}, err
	}

	chat.Participants, err = db.GetParticipants(chat.Id)
	return chat, err
}

// GetPrivateChatByParticipants finds the private chat whose participant set
// is exactly {userA, userB}. sql.ErrNoRows when no such chat exists.
func (db *PgChatSyncRepository) GetPrivateChatByParticipants(userA, userB int) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT "+chatColumns+" FROM chats c "+
			"WHERE c.type = 'private' "+
			"AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.chat_id = c.id AND p.user_id = $1) "+
			"AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.chat_id = c.id AND p.user_id = $2) "+
			"LIMIT 1",
		userA,
		userB,
	)

	chat, err := scanChat(row)
	if err != nil {
		return Chat{}, err
	}

	chat.Participants, err = db.GetParticipants(chat.Id)
	return chat, err
}

func (db *PgChatSyncRepository) ListChatsForUser(userId int) ([]Chat, error) {
	rows, err := db.conn.Query(
		"SELECT "+chatColumns+" FROM chats c "+
			"JOIN chat_participants p ON p.chat_id = c.id "+
			"WHERE p.user_id = $1 AND c.is_active "+
			"ORDER BY c.last_message_time DESC NULLS LAST",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chats {
		if chats[i].Participants, err = db.GetParticipants(chats[i].Id); err != nil {
			return nil, err
		}
	}

	return chats, nil
}

func (db *PgChatSyncRepository) GetParticipants(chatId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.email, a.status FROM chat_participants p "+
			"JOIN accounts a ON a.id = p.user_id WHERE p.chat_id = $1 ORDER BY a.id",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.Status); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgChatSyncRepository) UpdateChat(chatId int, name, description string) (Chat, error) {
	row := db.conn.QueryRow(
		"UPDATE chats c SET name = $2, description = $3, updated_at = $4 WHERE c.id = $1 "+
			"RETURNING "+chatColumns,
		chatId,
		name,
		description,
		time.Now().UTC(),
	)

	chat, err := scanChat(row)
	if err != nil {
		return Chat{}, err
	}

	chat.Participants, err = db.GetParticipants(chat.Id)
	return chat, err
}

func (db *PgChatSyncRepository) DeactivateChat(chatId int) error {
	_, err := db.conn.Exec(
		"UPDATE chats SET is_active = FALSE, updated_at = $2 WHERE id = $1",
		chatId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatSyncRepository) AddParticipant(chatId, userId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO chat_participants (chat_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
		chatId,
		userId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatSyncRepository) RemoveParticipant(chatId, userId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM chat_participants WHERE chat_id = $1 AND user_id = $2",
		chatId,
		userId,
	)

	return err
}

func (db *PgChatSyncRepository) GetPreference(userId, chatId int) (Preference, error) {
	row := db.conn.QueryRow(
		"SELECT user_id, chat_id, pinned, archived FROM chat_preferences WHERE user_id = $1 AND chat_id = $2 LIMIT 1",
		userId,
		chatId,
	)

	var p Preference
	err := row.Scan(&p.UserId, &p.ChatId, &p.Pinned, &p.Archived)
	if err == sql.ErrNoRows {
		// absence of a row is the default preference
		return Preference{UserId: userId, ChatId: chatId}, nil
	}

	return p, err
}

func (db *PgChatSyncRepository) CountPinnedChats(userId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM chat_preferences WHERE user_id = $1 AND pinned",
		userId,
	)

	var count int
	err := row.Scan(&count)
	return count, err
}

func (db *PgChatSyncRepository) SetChatPinned(userId, chatId int, pinned bool) error {
	_, err := db.conn.Exec(
		"INSERT INTO chat_preferences (user_id, chat_id, pinned) VALUES ($1, $2, $3) "+
			"ON CONFLICT (user_id, chat_id) DO UPDATE SET pinned = $3",
		userId,
		chatId,
		pinned,
	)

	return err
}

func (db *PgChatSyncRepository) SetChatArchived(userId, chatId int, archived bool) error {
	_, err := db.conn.Exec(
		"INSERT INTO chat_preferences (user_id, chat_id, archived) VALUES ($1, $2, $3) "+
			"ON CONFLICT (user_id, chat_id) DO UPDATE SET archived = $3",
		userId,
		chatId,
		archived,
	)

	return err
}

func (db *PgChatSyncRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	var replyTo sql.NullInt64
	if params.ReplyToId != 0 {
		replyTo = sql.NullInt64{Int64: int64(params.ReplyToId), Valid: true}
	}

	res := db.conn.QueryRow(
		"INSERT INTO messages (chat_id, sender_id, ciphertext, type, status, reply_to_id, is_deleted, created_at) "+
			"VALUES ($1, $2, $3, $4, 'sent', $5, FALSE, $6) "+
			"RETURNING id, chat_id, sender_id, ciphertext, type, status, is_deleted, created_at",
		params.ChatId,
		params.SenderId,
		params.Ciphertext,
		params.Type,
		replyTo,
		params.CreatedAt,
	)

	var msg Message
	err := res.Scan(
		&msg.Id,
		&msg.ChatId,
		&msg.SenderId,
		&msg.Ciphertext,
		&msg.Type,
		&msg.Status,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)
	msg.ReplyToId = params.ReplyToId

	return msg, err
}

const messageColumns = "m.id, m.chat_id, m.sender_id, m.ciphertext, m.type, m.status, m.reply_to_id, m.is_deleted, m.created_at"

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var msg Message
	var replyTo sql.NullInt64

	err := row.Scan(
		&msg.Id,
		&msg.ChatId,
		&msg.SenderId,
		&msg.Ciphertext,
		&msg.Type,
		&msg.Status,
		&replyTo,
		&msg.IsDeleted,
		&msg.CreatedAt,
	)
	msg.ReplyToId = int(replyTo.Int64)

	return msg, err
}

func (db *PgChatSyncRepository) GetMessageById(messageId int) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages m WHERE m.id = $1 LIMIT 1",
		messageId,
	)

	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, err
	}

	if err := db.attachReads([]*Message{&msg}); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func (db *PgChatSyncRepository) ListMessages(chatId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages m "+
			"WHERE m.chat_id = $1 AND NOT m.is_deleted ORDER BY m.created_at ASC, m.id ASC",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*Message, len(messages))
	for i := range messages {
		refs[i] = &messages[i]
	}
	if err := db.attachReads(refs); err != nil {
		return nil, err
	}

	return messages, nil
}

// ListUnreadMessages returns the messages in chatId sent by someone other
// than userId which userId has not yet read, oldest first.
func (db *PgChatSyncRepository) ListUnreadMessages(chatId, userId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages m "+
			"WHERE m.chat_id = $1 AND m.sender_id <> $2 AND NOT m.is_deleted "+
			"AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2) "+
			"ORDER BY m.created_at ASC, m.id ASC",
		chatId,
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkMessagesRead appends a read receipt for userId to every listed message
// and moves the messages to status read. Existing receipts are left alone so
// re-reading never duplicates an entry, and a read message never moves back.
func (db *PgChatSyncRepository) MarkMessagesRead(messageIds []int, userId int, readAt time.Time) error {
	if len(messageIds) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(
		"INSERT INTO message_reads (message_id, user_id, read_at) "+
			"SELECT unnest($1::int[]), $2, $3 ON CONFLICT (message_id, user_id) DO NOTHING",
		pq.Array(messageIds),
		userId,
		readAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		"UPDATE messages SET status = 'read' WHERE id = ANY($1)",
		pq.Array(messageIds),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgChatSyncRepository) CountUnreadMessages(chatId, userId int) (int, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*) FROM messages m "+
			"WHERE m.chat_id = $1 AND m.sender_id <> $2 AND NOT m.is_deleted "+
			"AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = $2)",
		chatId,
		userId,
	)

	var count int
	err := row.Scan(&count)
	return count, err
}

func (db *PgChatSyncRepository) UpdateChatLastMessage(chatId, messageId int, at time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE chats SET last_message_id = $2, last_message_time = $3, updated_at = $3 WHERE id = $1",
		chatId,
		messageId,
		at,
	)

	return err
}

func (db *PgChatSyncRepository) SoftDeleteMessage(messageId int) error {
	_, err := db.conn.Exec(
		"UPDATE messages SET is_deleted = TRUE WHERE id = $1",
		messageId,
	)

	return err
}

func (db *PgChatSyncRepository) attachReads(messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]int, len(messages))
	byId := make(map[int]*Message, len(messages))
	for i, m := range messages {
		ids[i] = m.Id
		byId[m.Id] = m
	}

	rows, err := db.conn.Query(
		"SELECT message_id, user_id, read_at FROM message_reads WHERE message_id = ANY($1) ORDER BY read_at ASC, user_id ASC",
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("fetch message reads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r MessageRead
		if err := rows.Scan(&r.MessageId, &r.UserId, &r.ReadAt); err != nil {
			return err
		}
		if m, ok := byId[r.MessageId]; ok {
			m.ReadBy = append(m.ReadBy, r)
		}
	}

	return rows.Err()
}

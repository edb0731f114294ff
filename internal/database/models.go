package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	Status       string
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Device struct {
	Id       int
	UserId   int
	DeviceId string
	Name     string
	Active   bool
	LastSeen time.Time
}

type Chat struct {
	Id              int
	ExternalId      string
	Type            string
	Name            string
	Description     string
	AdminId         int
	LastMessageId   int
	LastMessageTime time.Time
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Participants    []User
}

type Message struct {
	Id         int
	ChatId     int
	SenderId   int
	Ciphertext string
	Type       string
	Status     string
	ReplyToId  int
	IsDeleted  bool
	CreatedAt  time.Time
	ReadBy     []MessageRead
}

type MessageRead struct {
	MessageId int
	UserId    int
	ReadAt    time.Time
}

// Preference is a user's per-chat display preference. Absence of a row is
// equivalent to the zero value.
type Preference struct {
	UserId   int
	ChatId   int
	Pinned   bool
	Archived bool
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateChatParams struct {
	ExternalId     string
	Type           string
	Name           string
	Description    string
	AdminId        int
	ParticipantIds []int
}

type CreateMessageParams struct {
	ChatId     int
	SenderId   int
	Ciphertext string
	Type       string
	ReplyToId  int
	CreatedAt  time.Time
}

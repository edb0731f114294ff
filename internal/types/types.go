package types

import (
	"time"
)

type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusOffline UserStatus = "offline"
	StatusAway    UserStatus = "away"
	StatusBusy    UserStatus = "busy"
)

func (s UserStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	}
	return false
}

type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageAudio MessageType = "audio"
	MessageFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageFile:
		return true
	}
	return false
}

type User struct {
	Id           int        `json:"id"`
	Username     string     `json:"username"`
	EmailAddress string     `json:"email_address,omitempty"`
	Password     string     `json:"-"`
	Status       UserStatus `json:"status,omitempty"`
	LastSeen     time.Time  `json:"last_seen,omitempty"`
	Devices      []Device   `json:"devices,omitempty"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at,omitempty"`
}

type Device struct {
	DeviceId string    `json:"device_id"`
	Name     string    `json:"name,omitempty"`
	Active   bool      `json:"active"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

type Chat struct {
	Id              int       `json:"id"`
	ExternalId      string    `json:"external_id"`
	Type            ChatType  `json:"type"`
	Name            string    `json:"name,omitempty"`
	Description     string    `json:"description,omitempty"`
	Participants    []User    `json:"participants"`
	AdminId         int       `json:"admin_id,omitempty"`
	LastMessage     *Message  `json:"last_message,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// ChatSummary is one entry of a user's chat list: the chat plus the caller's
// own view of it (pin, archive, unread).
type ChatSummary struct {
	Chat
	Pinned      bool `json:"pinned"`
	Archived    bool `json:"archived"`
	UnreadCount int  `json:"unread_count"`
}

type Message struct {
	Id        int           `json:"id"`
	ChatId    string        `json:"chat_id"`
	SenderId  int           `json:"sender_id"`
	Content   string        `json:"content"`
	Type      MessageType   `json:"type"`
	Status    MessageStatus `json:"status"`
	ReadBy    []ReadReceipt `json:"read_by,omitempty"`
	ReplyToId int           `json:"reply_to_id,omitempty"`
	IsDeleted bool          `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// ReadReceipt records a single user's read acknowledgment of a message.
// Entries are appended in read order and are unique per user.
type ReadReceipt struct {
	UserId int       `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

package server

import (
	"encoding/json"
	"time"

	"github.com/mfalchik/chatsync/internal/types"
)

// Client-to-server event names. Server-to-client names live in the chat
// package alongside the payloads the domain services broadcast.
const (
	EventChatJoin     = "chat:join"
	EventChatLeave    = "chat:leave"
	EventMessageSend  = "message:send"
	EventTyping       = "user:typing"
	EventStopTyping   = "user:stop_typing"
	EventMsgDelivered = "message:delivered"
	EventError        = "error"
)

// ClientEvent is the inbound wire envelope: an event name plus an
// event-specific payload.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the outbound envelope.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type ChatRoomPayload struct {
	ChatId string `json:"chat_id"`
}

type ChatJoinedPayload struct {
	ChatId   string `json:"chat_id"`
	RoomSize int    `json:"room_size"`
}

type PresencePayload struct {
	UserId    int       `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingPayload struct {
	UserId int    `json:"user_id,omitempty"`
	ChatId string `json:"chat_id"`
}

// EphemeralSendPayload is the socket message:send test path: the payload is
// echoed to the chat room without touching the pipeline or the store.
type EphemeralSendPayload struct {
	ChatId  string            `json:"chat_id"`
	Content string            `json:"content"`
	Type    types.MessageType `json:"type,omitempty"`
}

type EphemeralMessage struct {
	ChatId    string            `json:"chat_id"`
	SenderId  int               `json:"sender_id"`
	Content   string            `json:"content"`
	Type      types.MessageType `json:"type,omitempty"`
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

type DeliveredPayload struct {
	MessageId   int       `json:"message_id"`
	ChatId      string    `json:"chat_id,omitempty"`
	DeliveredAt time.Time `json:"delivered_at,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func errEvent(msg string) ServerEvent {
	return ServerEvent{Event: EventError, Data: ErrorPayload{Error: msg}}
}

package chat

import (
	"fmt"
	"time"

	"github.com/mfalchik/chatsync/internal/types"
)

// Real-time event names shared by the domain services and the gateway.
const (
	EventMessageReceive   = "message:receive"
	EventMessageRead      = "message:read"
	EventMessageDelivered = "message:delivered"
	EventChatJoined       = "chat:joined"
	EventUserOnline       = "user:online"
	EventUserOffline      = "user:offline"
	EventUserTyping       = "user:typing"
	EventUserStopTyping   = "user:stop_typing"
)

// Broadcaster delivers an event to every live connection that is a member of
// at least one of the named rooms. A connection reachable through several of
// the rooms receives exactly one copy.
type Broadcaster interface {
	Broadcast(rooms []string, event string, payload any)
}

// UserRoom names the personal room every connection of a user joins for its
// lifetime.
func UserRoom(userId int) string {
	return fmt.Sprintf("user:%d", userId)
}

// ChatRoom names the room a client joins while viewing a conversation.
func ChatRoom(externalId string) string {
	return "chat:" + externalId
}

type MessageReceivePayload struct {
	ChatId  string        `json:"chat_id"`
	Message types.Message `json:"message"`
}

type MessageReadPayload struct {
	ChatId     string    `json:"chat_id"`
	MessageIds []int     `json:"message_ids"`
	ReadBy     int       `json:"read_by"`
	ReadAt     time.Time `json:"read_at"`
}

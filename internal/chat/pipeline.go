package chat

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mfalchik/chatsync/internal/database"
	"github.com/mfalchik/chatsync/internal/types"
)

type SendRequest struct {
	ChatId    string            `json:"chat_id"`
	Content   string            `json:"content"`
	Type      types.MessageType `json:"type"`
	ReplyToId int               `json:"reply_to_id,omitempty"`
}

// Send runs the write path for one message: participant check, encrypt with
// a fresh IV, persist with status sent, bump the chat's denormalized
// last-message fields, then fan the decrypted payload out to every
// participant's live connections.
//
// Two sends racing from different connections may interleave at the store;
// the chat summary keeps whichever write completed last. There are no
// retries: on a storage error nothing has been broadcast and the caller must
// resend.
func (s *Service) Send(senderId int, req SendRequest) (types.Message, error) {
	if req.Content == "" {
		return types.Message{}, fmt.Errorf("%w: message content is required", ErrValidation)
	}

	msgType := req.Type
	if msgType == "" {
		msgType = types.MessageText
	}
	if !msgType.Valid() {
		return types.Message{}, fmt.Errorf("%w: invalid message type %q", ErrValidation, req.Type)
	}

	c, err := s.getChatForUser(senderId, req.ChatId)
	if err != nil {
		return types.Message{}, err
	}

	ciphertext, err := s.cipher.Encrypt(req.Content)
	if err != nil {
		return types.Message{}, fmt.Errorf("encrypt message: %w", err)
	}

	stored, err := s.repo.CreateMessage(database.CreateMessageParams{
		ChatId:     c.Id,
		SenderId:   senderId,
		Ciphertext: ciphertext,
		Type:       string(msgType),
		ReplyToId:  req.ReplyToId,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("persist message: %w", err)
	}

	if err := s.repo.UpdateChatLastMessage(c.Id, stored.Id, stored.CreatedAt); err != nil {
		return types.Message{}, fmt.Errorf("update chat summary: %w", err)
	}

	msg := s.toMessage(stored, c.ExternalId)

	// The chat room covers clients viewing the conversation; the personal
	// rooms cover the sender's other devices and participants who never
	// joined the chat room. The broadcaster delivers once per connection.
	rooms := []string{ChatRoom(c.ExternalId), UserRoom(senderId)}
	for _, p := range c.Participants {
		rooms = append(rooms, UserRoom(p.Id))
	}

	s.bc.Broadcast(rooms, EventMessageReceive, MessageReceivePayload{
		ChatId:  c.ExternalId,
		Message: msg,
	})

	return msg, nil
}

// DeleteMessage soft-deletes one of the caller's own messages. The row
// survives for the readBy audit trail; it just stops appearing in history.
func (s *Service) DeleteMessage(userId int, chatId string, messageId int) error {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return err
	}

	m, err := s.repo.GetMessageById(messageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("get message: %w", err)
	}
	if m.ChatId != c.Id {
		return ErrMessageNotFound
	}
	if m.SenderId != userId {
		return ErrNotSender
	}

	if err := s.repo.SoftDeleteMessage(messageId); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

// History returns all non-deleted messages of a chat, oldest first, with
// bodies decrypted just in time for the caller.
func (s *Service) History(userId int, chatId string) ([]types.Message, error) {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.ListMessages(c.Id)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]types.Message, len(stored))
	for i, m := range stored {
		messages[i] = s.toMessage(m, c.ExternalId)
	}

	return messages, nil
}

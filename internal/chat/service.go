package chat

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/mfalchik/chatsync/internal/crypto"
	"github.com/mfalchik/chatsync/internal/database"
	"github.com/mfalchik/chatsync/internal/types"
	"github.com/teris-io/shortid"
)

// MaxPinnedChats is the per-user cap on pinned chats.
const MaxPinnedChats = 3

// Service owns all writes to Chat and Message documents. Room membership is
// owned by the gateway; the service only names rooms when broadcasting.
type Service struct {
	repo   database.ChatSyncRepository
	cipher *crypto.MessageCipher
	bc     Broadcaster
	log    *log.Logger

	newExternalId func() (string, error)
}

func NewService(repo database.ChatSyncRepository, cipher *crypto.MessageCipher, bc Broadcaster, logger *log.Logger) *Service {
	return &Service{
		repo:          repo,
		cipher:        cipher,
		bc:            bc,
		log:           logger,
		newExternalId: shortid.Generate,
	}
}

// IsParticipant reports whether userId belongs to the chat's participant set.
func IsParticipant(c database.Chat, userId int) bool {
	for _, p := range c.Participants {
		if p.Id == userId {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userId is the chat's admin. Private chats have no
// admin.
func IsAdmin(c database.Chat, userId int) bool {
	return c.AdminId != 0 && c.AdminId == userId
}

type CreateChatRequest struct {
	Type           types.ChatType `json:"type"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	ParticipantIds []int          `json:"participant_ids"`
}

// CreateChat creates a private or group chat for userId. Creating a private
// chat for a pair that already has one returns the existing chat rather than
// a duplicate. Group chats require a name and at least two resolved
// participants; the creator becomes admin.
func (s *Service) CreateChat(userId int, req CreateChatRequest) (types.Chat, error) {
	participants := req.ParticipantIds
	if !containsInt(participants, userId) {
		participants = append(participants, userId)
	}

	users, err := s.repo.GetAccountsByIds(participants)
	if err != nil {
		return types.Chat{}, fmt.Errorf("resolve participants: %w", err)
	}
	if len(users) != len(participants) {
		return types.Chat{}, fmt.Errorf("%w: one or more participants not found", ErrValidation)
	}

	switch req.Type {
	case types.ChatPrivate:
		if len(participants) != 2 {
			return types.Chat{}, fmt.Errorf("%w: private chat must have exactly 2 participants", ErrValidation)
		}

		existing, err := s.repo.GetPrivateChatByParticipants(participants[0], participants[1])
		if err == nil {
			return s.toChat(existing), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return types.Chat{}, fmt.Errorf("lookup private chat: %w", err)
		}
	case types.ChatGroup:
		if req.Name == "" {
			return types.Chat{}, fmt.Errorf("%w: group name is required", ErrValidation)
		}
		if len(participants) < 2 {
			return types.Chat{}, fmt.Errorf("%w: group must have at least 2 participants", ErrValidation)
		}
	default:
		return types.Chat{}, fmt.Errorf("%w: invalid chat type %q", ErrValidation, req.Type)
	}

	externalId, err := s.newExternalId()
	if err != nil {
		return types.Chat{}, fmt.Errorf("generate chat id: %w", err)
	}

	params := database.CreateChatParams{
		ExternalId:     externalId,
		Type:           string(req.Type),
		Name:           req.Name,
		Description:    req.Description,
		ParticipantIds: participants,
	}
	if req.Type == types.ChatGroup {
		params.AdminId = userId
	}

	created, err := s.repo.CreateChat(params)
	if err != nil {
		return types.Chat{}, fmt.Errorf("create chat: %w", err)
	}

	return s.toChat(created), nil
}

// GetChat returns a single chat; the caller must be a participant.
func (s *Service) GetChat(userId int, chatId string) (types.Chat, error) {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return types.Chat{}, err
	}

	return s.toChat(c), nil
}

// ListChats builds the caller's chat list, most recent activity first. The
// unread count is computed from the store on every call, never cached, and
// the last-message preview is decrypted just in time.
func (s *Service) ListChats(userId int) ([]types.ChatSummary, error) {
	chats, err := s.repo.ListChatsForUser(userId)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	summaries := make([]types.ChatSummary, 0, len(chats))
	for _, c := range chats {
		pref, err := s.repo.GetPreference(userId, c.Id)
		if err != nil {
			return nil, fmt.Errorf("chat %q preference: %w", c.ExternalId, err)
		}

		unread, err := s.repo.CountUnreadMessages(c.Id, userId)
		if err != nil {
			return nil, fmt.Errorf("chat %q unread count: %w", c.ExternalId, err)
		}

		summary := types.ChatSummary{
			Chat:        s.toChat(c),
			Pinned:      pref.Pinned,
			Archived:    pref.Archived,
			UnreadCount: unread,
		}

		if c.LastMessageId != 0 {
			last, err := s.repo.GetMessageById(c.LastMessageId)
			if err != nil {
				return nil, fmt.Errorf("chat %q last message: %w", c.ExternalId, err)
			}
			msg := s.toMessage(last, c.ExternalId)
			summary.LastMessage = &msg
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// UpdateChat renames a group chat. Only the admin may update.
func (s *Service) UpdateChat(userId int, chatId, name, description string) (types.Chat, error) {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return types.Chat{}, err
	}

	if c.Type != string(types.ChatGroup) {
		return types.Chat{}, fmt.Errorf("%w: private chats cannot be updated", ErrValidation)
	}
	if !IsAdmin(c, userId) {
		return types.Chat{}, ErrNotAdmin
	}
	if name == "" {
		return types.Chat{}, fmt.Errorf("%w: group name is required", ErrValidation)
	}

	updated, err := s.repo.UpdateChat(c.Id, name, description)
	if err != nil {
		return types.Chat{}, fmt.Errorf("update chat: %w", err)
	}

	return s.toChat(updated), nil
}

// DeleteChat soft-deletes a chat. Groups require the admin; either
// participant may delete a private chat.
func (s *Service) DeleteChat(userId int, chatId string) error {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return err
	}

	if c.Type == string(types.ChatGroup) && !IsAdmin(c, userId) {
		return ErrNotAdmin
	}

	if err := s.repo.DeactivateChat(c.Id); err != nil {
		return fmt.Errorf("deactivate chat: %w", err)
	}

	return nil
}

// AddParticipant adds a user to a group chat. Admin only.
func (s *Service) AddParticipant(userId int, chatId string, newUserId int) error {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return err
	}

	if c.Type != string(types.ChatGroup) {
		return fmt.Errorf("%w: cannot add participants to a private chat", ErrValidation)
	}
	if !IsAdmin(c, userId) {
		return ErrNotAdmin
	}

	if _, err := s.repo.GetAccountById(newUserId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("resolve user: %w", err)
	}

	if err := s.repo.AddParticipant(c.Id, newUserId); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}

	return nil
}

// Participants lists the chat's current participants.
func (s *Service) Participants(userId int, chatId string) ([]types.User, error) {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return nil, err
	}

	users, err := s.repo.GetParticipants(c.Id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	participants := make([]types.User, len(users))
	for i, u := range users {
		participants[i] = types.User{
			Id:           u.Id,
			Username:     u.Username,
			EmailAddress: u.EmailAddress,
			Status:       types.UserStatus(u.Status),
			LastSeen:     u.LastSeen,
		}
	}

	return participants, nil
}

// RemoveParticipant removes a user from a group chat. The admin may remove
// anyone; a participant may remove themself.
func (s *Service) RemoveParticipant(userId int, chatId string, removeUserId int) error {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return err
	}

	if c.Type != string(types.ChatGroup) {
		return fmt.Errorf("%w: cannot remove participants from a private chat", ErrValidation)
	}
	if userId != removeUserId && !IsAdmin(c, userId) {
		return ErrNotAdmin
	}

	if err := s.repo.RemoveParticipant(c.Id, removeUserId); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}

	return nil
}

// TogglePin sets the caller's pin preference for a chat. Pinning is rejected
// with ErrPinLimitExceeded, and nothing is written, once the caller already
// has MaxPinnedChats pinned. Unpinning never fails the count check.
func (s *Service) TogglePin(userId int, chatId string, pinned bool) error {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return err
	}

	if pinned {
		pref, err := s.repo.GetPreference(userId, c.Id)
		if err != nil {
			return fmt.Errorf("preference: %w", err)
		}

		if !pref.Pinned {
			count, err := s.repo.CountPinnedChats(userId)
			if err != nil {
				return fmt.Errorf("count pinned: %w", err)
			}
			if count >= MaxPinnedChats {
				return ErrPinLimitExceeded
			}
		}
	}

	if err := s.repo.SetChatPinned(userId, c.Id, pinned); err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}

	return nil
}

// ToggleArchive sets the caller's archive preference for a chat.
func (s *Service) ToggleArchive(userId int, chatId string, archived bool) error {
	c, err := s.getChatForUser(userId, chatId)
	if err != nil {
		return err
	}

	if err := s.repo.SetChatArchived(userId, c.Id, archived); err != nil {
		return fmt.Errorf("set archived: %w", err)
	}

	return nil
}

// getChatForUser fetches a chat by external id and enforces that userId is a
// participant.
func (s *Service) getChatForUser(userId int, chatId string) (database.Chat, error) {
	c, err := s.repo.GetChatByExternalId(chatId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Chat{}, ErrChatNotFound
		}
		return database.Chat{}, fmt.Errorf("get chat: %w", err)
	}

	if !IsParticipant(c, userId) {
		return database.Chat{}, ErrNotParticipant
	}

	return c, nil
}

func (s *Service) toChat(c database.Chat) types.Chat {
	chat := types.Chat{
		Id:              c.Id,
		ExternalId:      c.ExternalId,
		Type:            types.ChatType(c.Type),
		Name:            c.Name,
		Description:     c.Description,
		AdminId:         c.AdminId,
		LastMessageTime: c.LastMessageTime,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}

	chat.Participants = make([]types.User, len(c.Participants))
	for i, u := range c.Participants {
		chat.Participants[i] = types.User{
			Id:           u.Id,
			Username:     u.Username,
			EmailAddress: u.EmailAddress,
			Status:       types.UserStatus(u.Status),
		}
	}

	return chat
}

// toMessage converts a stored message to its wire form, decrypting the body.
// Raw ciphertext never leaves the service.
func (s *Service) toMessage(m database.Message, chatExternalId string) types.Message {
	msg := types.Message{
		Id:        m.Id,
		ChatId:    chatExternalId,
		SenderId:  m.SenderId,
		Content:   s.cipher.Decrypt(m.Ciphertext),
		Type:      types.MessageType(m.Type),
		Status:    types.MessageStatus(m.Status),
		ReplyToId: m.ReplyToId,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}

	for _, r := range m.ReadBy {
		msg.ReadBy = append(msg.ReadBy, types.ReadReceipt{UserId: r.UserId, ReadAt: r.ReadAt})
	}

	return msg
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockChatSyncRepository struct {
	mock.Mock
}

func (m *MockChatSyncRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockChatSyncRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatSyncRepository) GetAccountById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatSyncRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}

func (m *MockChatSyncRepository) GetAccountsByIds(userIds []int) ([]User, error) {
	args := m.Called(userIds)
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockChatSyncRepository) UpdateUserStatus(userId int, status string, lastSeen time.Time) error {
	args := m.Called(userId, status, lastSeen)
	return args.Error(0)
}

func (m *MockChatSyncRepository) UpsertDevice(userId int, deviceId, name string, seenAt time.Time) error {
	args := m.Called(userId, deviceId, name, seenAt)
	return args.Error(0)
}

func (m *MockChatSyncRepository) CreateChat(params CreateChatParams) (Chat, error) {
	args := m.Called(params)
	return args.Get(0).(Chat), args.Error(1)
}

func (m *MockChatSyncRepository) GetChatByExternalId(externalId string) (Chat, error) {
	args := m.Called(externalId)
	return args.Get(0).(Chat), args.Error(1)
}

func (m *MockChatSyncRepository) GetPrivateChatByParticipants(userA, userB int) (Chat, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Chat), args.Error(1)
}

func (m *MockChatSyncRepository) ListChatsForUser(userId int) ([]Chat, error) {
	args := m.Called(userId)
	return args.Get(0).([]Chat), args.Error(1)
}

func (m *MockChatSyncRepository) GetParticipants(chatId int) ([]User, error) {
	args := m.Called(chatId)
	return args.Get(0).([]User), args.Error(1)
}

func (m *MockChatSyncRepository) UpdateChat(chatId int, name, description string) (Chat, error) {
	args := m.Called(chatId, name, description)
	return args.Get(0).(Chat), args.Error(1)
}

func (m *MockChatSyncRepository) DeactivateChat(chatId int) error {
	args := m.Called(chatId)
	return args.Error(0)
}

func (m *MockChatSyncRepository) AddParticipant(chatId, userId int) error {
	args := m.Called(chatId, userId)
	return args.Error(0)
}

func (m *MockChatSyncRepository) RemoveParticipant(chatId, userId int) error {
	args := m.Called(chatId, userId)
	return args.Error(0)
}

func (m *MockChatSyncRepository) GetPreference(userId, chatId int) (Preference, error) {
	args := m.Called(userId, chatId)
	return args.Get(0).(Preference), args.Error(1)
}

func (m *MockChatSyncRepository) CountPinnedChats(userId int) (int, error) {
	args := m.Called(userId)
	return args.Int(0), args.Error(1)
}

func (m *MockChatSyncRepository) SetChatPinned(userId, chatId int, pinned bool) error {
	args := m.Called(userId, chatId, pinned)
	return args.Error(0)
}

func (m *MockChatSyncRepository) SetChatArchived(userId, chatId int, archived bool) error {
	args := m.Called(userId, chatId, archived)
	return args.Error(0)
}

func (m *MockChatSyncRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockChatSyncRepository) GetMessageById(messageId int) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}

func (m *MockChatSyncRepository) ListMessages(chatId int) ([]Message, error) {
	args := m.Called(chatId)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockChatSyncRepository) ListUnreadMessages(chatId, userId int) ([]Message, error) {
	args := m.Called(chatId, userId)
	return args.Get(0).([]Message), args.Error(1)
}

func (m *MockChatSyncRepository) MarkMessagesRead(messageIds []int, userId int, readAt time.Time) error {
	args := m.Called(messageIds, userId, readAt)
	return args.Error(0)
}

func (m *MockChatSyncRepository) CountUnreadMessages(chatId, userId int) (int, error) {
	args := m.Called(chatId, userId)
	return args.Int(0), args.Error(1)
}

func (m *MockChatSyncRepository) UpdateChatLastMessage(chatId, messageId int, at time.Time) error {
	args := m.Called(chatId, messageId, at)
	return args.Error(0)
}

func (m *MockChatSyncRepository) SoftDeleteMessage(messageId int) error {
	args := m.Called(messageId)
	return args.Error(0)
}

package database

import "time"

type ChatSyncRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(userId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetAccountsByIds(userIds []int) ([]User, error)
	UpdateUserStatus(userId int, status string, lastSeen time.Time) error
	UpsertDevice(userId int, deviceId, name string, seenAt time.Time) error

	CreateChat(params CreateChatParams) (Chat, error)
	GetChatByExternalId(externalId string) (Chat, error)
	GetPrivateChatByParticipants(userA, userB int) (Chat, error)
	ListChatsForUser(userId int) ([]Chat, error)
	GetParticipants(chatId int) ([]User, error)
	UpdateChat(chatId int, name, description string) (Chat, error)
	DeactivateChat(chatId int) error
	AddParticipant(chatId, userId int) error
	RemoveParticipant(chatId, userId int) error

	GetPreference(userId, chatId int) (Preference, error)
	CountPinnedChats(userId int) (int, error)
	SetChatPinned(userId, chatId int, pinned bool) error
	SetChatArchived(userId, chatId int, archived bool) error

	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageById(messageId int) (Message, error)
	ListMessages(chatId int) ([]Message, error)
	ListUnreadMessages(chatId, userId int) ([]Message, error)
	MarkMessagesRead(messageIds []int, userId int, readAt time.Time) error
	CountUnreadMessages(chatId, userId int) (int, error)
	UpdateChatLastMessage(chatId, messageId int, at time.Time) error
	SoftDeleteMessage(messageId int) error
}

package chat

import (
	"database/sql"
	"testing"

	"github.com/mfalchik/chatsync/internal/crypto"
	"github.com/mfalchik/chatsync/internal/database"
	"github.com/mfalchik/chatsync/internal/testutil"
	"github.com/mfalchik/chatsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type broadcastCall struct {
	rooms   []string
	event   string
	payload any
}

type recordingBroadcaster struct {
	calls []broadcastCall
}

func (b *recordingBroadcaster) Broadcast(rooms []string, event string, payload any) {
	b.calls = append(b.calls, broadcastCall{rooms: rooms, event: event, payload: payload})
}

func newTestService(t *testing.T, repo database.ChatSyncRepository) (*Service, *recordingBroadcaster) {
	t.Helper()

	cipher, err := crypto.NewMessageCipher([]byte("0123456789abcdef0123456789abcdef"), testutil.TestLogger(t))
	require.NoError(t, err)

	bc := &recordingBroadcaster{}
	svc := NewService(repo, cipher, bc, testutil.TestLogger(t))
	svc.newExternalId = func() (string, error) { return "ext-test", nil }

	return svc, bc
}

func twoUserChat(chatType string) database.Chat {
	return database.Chat{
		Id:         7,
		ExternalId: "abc123",
		Type:       chatType,
		IsActive:   true,
		Participants: []database.User{
			{Id: 1, Username: "alice"},
			{Id: 2, Username: "bob"},
		},
	}
}

func TestCreateChat_PrivateReturnsExisting(t *testing.T) {
	repo := &database.MockChatSyncRepository{}
	svc, _ := newTestService(t, repo)

	existing := twoUserChat(string(types.ChatPrivate))
	repo.On("GetAccountsByIds", mock.Anything).Return([]database.User{{Id: 2}, {Id: 1}}, nil)
	repo.On("GetPrivateChatByParticipants", 2, 1).Return(existing, nil)

	c, err := svc.CreateChat(1, CreateChatRequest{
		Type:           types.ChatPrivate,
		ParticipantIds: []int{2},
	})
	require.NoError(t, err)

	assert.Equal(t, existing.ExternalId, c.ExternalId)
	repo.AssertNotCalled(t, "CreateChat", mock.Anything)
}

func TestCreateChat_PrivateCreatesWhenMissing(t *testing.T) {
	repo := &database.MockChatSyncRepository{}
	svc, _ := newTestService(t, repo)

	repo.On("GetAccountsByIds", mock.Anything).Return([]database.User{{Id: 2}, {Id: 1}}, nil)
	repo.On("GetPrivateChatByParticipants", 2, 1).Return(database.Chat{}, sql.ErrNoRows)
	repo.On("CreateChat", mock.MatchedBy(func(p database.CreateChatParams) bool {
		return p.Type == string(types.ChatPrivate) && p.AdminId == 0 && p.ExternalId == "ext-test"
	})).Return(twoUserChat(string(types.ChatPrivate)), nil)

	_, err := svc.CreateChat(1, CreateChatRequest{
		Type:           types.ChatPrivate,
		ParticipantIds: []int{2},
	})
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestCreateChat_Validation(t *testing.T) {
	tcases := []struct {
		name  string
		req   CreateChatRequest
		users []database.User
	}{
		{
			name: "private with three participants",
			req: CreateChatRequest{
				Type:           types.ChatPrivate,
				ParticipantIds: []int{2, 3},
			},
			users: []database.User{{Id: 2}, {Id: 3}, {Id: 1}},
		},
		{
			name: "group without name",
			req: CreateChatRequest{
				Type:           types.ChatGroup,
				ParticipantIds: []int{2, 3},
			},
			users: []database.User{{Id: 2}, {Id: 3}, {Id: 1}},
		},
		{
			name: "group with single participant",
			req: CreateChatRequest{
				Type: types.ChatGroup,
				Name: "team",
			},
			users: []database.User{{Id: 1}},
		},
		{
			name: "unknown chat type",
			req: CreateChatRequest{
				Type:           "broadcast",
				ParticipantIds: []int{2},
			},
			users: []database.User{{Id: 2}, {Id: 1}},
		},
		{
			name: "unresolved participant",
			req: CreateChatRequest{
				Type:           types.ChatGroup,
				Name:           "team",
				ParticipantIds: []int{2, 99},
			},
			users: []database.User{{Id: 2}, {Id: 1}},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &database.MockChatSyncRepository{}
			svc, _ := newTestService(t, repo)

			repo.On("GetAccountsByIds", mock.Anything).Return(tc.users, nil)

			_, err := svc.CreateChat(1, tc.req)
			assert.ErrorIs(t, err, ErrValidation)
			repo.AssertNotCalled(t, "CreateChat", mock.Anything)
		})
	}
}

func TestCreateChat_GroupSetsAdmin(t *testing.T) {
	repo := &database.MockChatSyncRepository{}
	svc, _ := newTestService(t, repo)

	repo.On("GetAccountsByIds", mock.Anything).Return([]database.User{{Id: 2}, {Id: 3}, {Id: 1}}, nil)
	repo.On("CreateChat", mock.MatchedBy(func(p database.CreateChatParams) bool {
		return p.Type == string(types.ChatGroup) && p.AdminId == 1 && p.Name == "team"
	})).Return(database.Chat{Id: 9, ExternalId: "ext-test", Type: string(types.ChatGroup), AdminId: 1}, nil)

	c, err := svc.CreateChat(1, CreateChatRequest{
		Type:           types.ChatGroup,
		Name:           "team",
		ParticipantIds: []int{2, 3},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, c.AdminId)
	repo.AssertExpectations(t)
}

func TestGetChat_NotParticipant(t *testing.T) {
	repo := &database.MockChatSyncRepository{}
	svc, _ := newTestService(t, repo)

	repo.On("GetChatByExternalId", "abc123").Return(twoUserChat(string(types.ChatGroup)), nil)

	_, err := svc.GetChat(99, "abc123")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestGetChat_NotFound(t *testing.T) {
	repo := &database.MockChatSyncRepository{}
	svc, _ := newTestService(t, repo)

	repo.On("GetChatByExternalId", "missing").Return(database.Chat{}, sql.ErrNoRows)

	_, err := svc.GetChat(1, "missing")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestListChats(t *testing.T) {
	repo := &database.MockChatSyncRepository{}
	svc, _ := newTestService(t, repo)

	ciphertext, err := svc.cipher.Encrypt("last message")
	require.NoError(t, err)

	c := twoUserChat(string(types.ChatPrivate))
	c.LastMessageId = 42

	repo.On("ListChatsForUser", 1).Return([]database.Chat{c}, nil)
	repo.On("GetPreference", 1, c.Id).Return(database.Preference{Pinned: true}, nil)
	repo.On("CountUnreadMessages", c.Id, 1).Return(5, nil)
	repo.On("GetMessageById", 42).Return(database.Message{
		Id:         42,
		ChatId:     c.Id,
		SenderId:   2,
		Ciphertext: ciphertext,
		Type:       string(types.MessageText),
		Status:     string(types.MessageSent),
	}, nil)

	summaries, err := svc.ListChats(1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	assert.True(t, summaries[0].Pinned)
	assert.False(t, summaries[0].Archived)
	assert.Equal(t, 5, summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "last message", summaries[0].LastMessage.Content)
}

func TestUpdateChat(t *testing.T) {
	t.Run("admin renames group", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatGroup))
		c.AdminId = 1
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("UpdateChat", c.Id, "renamed", "desc").Return(c, nil)

		_, err := svc.UpdateChat(1, "abc123", "renamed", "desc")
		assert.NoError(t, err)
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatGroup))
		c.AdminId = 1
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)

		_, err := svc.UpdateChat(2, "abc123", "renamed", "")
		assert.ErrorIs(t, err, ErrNotAdmin)
	})

	t.Run("private chat rejected", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		repo.On("GetChatByExternalId", "abc123").Return(twoUserChat(string(types.ChatPrivate)), nil)

		_, err := svc.UpdateChat(1, "abc123", "renamed", "")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestDeleteChat(t *testing.T) {
	t.Run("private participant deletes", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatPrivate))
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("DeactivateChat", c.Id).Return(nil)

		assert.NoError(t, svc.DeleteChat(2, "abc123"))
	})

	t.Run("group non-admin rejected", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatGroup))
		c.AdminId = 1
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)

		assert.ErrorIs(t, svc.DeleteChat(2, "abc123"), ErrNotAdmin)
		repo.AssertNotCalled(t, "DeactivateChat", mock.Anything)
	})
}

func TestParticipants(t *testing.T) {
	t.Run("admin adds user", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatGroup))
		c.AdminId = 1
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("GetAccountById", 3).Return(database.User{Id: 3}, nil)
		repo.On("AddParticipant", c.Id, 3).Return(nil)

		assert.NoError(t, svc.AddParticipant(1, "abc123", 3))
	})

	t.Run("add unknown user", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatGroup))
		c.AdminId = 1
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("GetAccountById", 99).Return(database.User{}, sql.ErrNoRows)

		assert.ErrorIs(t, svc.AddParticipant(1, "abc123", 99), ErrUserNotFound)
	})

	t.Run("self removal allowed", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatGroup))
		c.AdminId = 1
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("RemoveParticipant", c.Id, 2).Return(nil)

		assert.NoError(t, svc.RemoveParticipant(2, "abc123", 2))
	})

	t.Run("list participants", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatGroup))
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("GetParticipants", c.Id).Return([]database.User{
			{Id: 1, Username: "alice", Status: "online"},
			{Id: 2, Username: "bob", Status: "offline"},
		}, nil)

		participants, err := svc.Participants(1, "abc123")
		require.NoError(t, err)
		require.Len(t, participants, 2)
		assert.Equal(t, types.StatusOnline, participants[0].Status)
	})

	t.Run("removing another user requires admin", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatGroup))
		c.AdminId = 1
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)

		assert.ErrorIs(t, svc.RemoveParticipant(2, "abc123", 1), ErrNotAdmin)
	})
}

func TestTogglePin(t *testing.T) {
	t.Run("pin under limit", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatPrivate))
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("GetPreference", 1, c.Id).Return(database.Preference{}, nil)
		repo.On("CountPinnedChats", 1).Return(2, nil)
		repo.On("SetChatPinned", 1, c.Id, true).Return(nil)

		assert.NoError(t, svc.TogglePin(1, "abc123", true))
	})

	t.Run("pin at limit rejected without mutation", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatPrivate))
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("GetPreference", 1, c.Id).Return(database.Preference{}, nil)
		repo.On("CountPinnedChats", 1).Return(MaxPinnedChats, nil)

		assert.ErrorIs(t, svc.TogglePin(1, "abc123", true), ErrPinLimitExceeded)
		repo.AssertNotCalled(t, "SetChatPinned", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("re-pinning an already pinned chat skips the count", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatPrivate))
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("GetPreference", 1, c.Id).Return(database.Preference{Pinned: true}, nil)
		repo.On("SetChatPinned", 1, c.Id, true).Return(nil)

		assert.NoError(t, svc.TogglePin(1, "abc123", true))
		repo.AssertNotCalled(t, "CountPinnedChats", mock.Anything)
	})

	t.Run("unpin never checks the limit", func(t *testing.T) {
		repo := &database.MockChatSyncRepository{}
		svc, _ := newTestService(t, repo)

		c := twoUserChat(string(types.ChatPrivate))
		repo.On("GetChatByExternalId", "abc123").Return(c, nil)
		repo.On("SetChatPinned", 1, c.Id, false).Return(nil)

		assert.NoError(t, svc.TogglePin(1, "abc123", false))
		repo.AssertNotCalled(t, "CountPinnedChats", mock.Anything)
	})
}

func TestToggleArchive(t *testing.T) {
	repo := &database.MockChatSyncRepository{}
	svc, _ := newTestService(t, repo)

	c := twoUserChat(string(types.ChatPrivate))
	repo.On("GetChatByExternalId", "abc123").Return(c, nil)
	repo.On("SetChatArchived", 2, c.Id, true).Return(nil)

	assert.NoError(t, svc.ToggleArchive(2, "abc123", true))
}

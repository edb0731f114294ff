package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// relayClients registers a sender plus targets; every client is auto-joined
// to its personal room on addClient.
func relayClients(t *testing.T, gw *Gateway, ids ...int) []*Client {
	t.Helper()

	clients := make([]*Client, 0, len(ids))
	for _, id := range ids {
		c := newTestClient(gw, t, id)
		gw.addClient(c)
		clients = append(clients, c)
	}
	// drain after all registrations so no client keeps another's
	// user:online presence event from setup
	for _, c := range clients {
		drain(c)
	}
	return clients
}

func TestHandleGroupCreateRelay(t *testing.T) {
	gw, repo := newTestGateway(t)
	repo.On("UpdateUserStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clients := relayClients(t, gw, 1, 2, 3)
	sender, memberA, memberB := clients[0], clients[1], clients[2]

	data, err := json.Marshal(GroupCreatePayload{GroupId: "grp1", Name: "team", Members: []int{2, 3}})
	require.NoError(t, err)
	sender.handleGroupCreate(data)

	// one personal-room broadcast per member
	for i := 0; i < 2; i++ {
		gw.deliver(<-gw.broadcastChan)
	}

	assert.Empty(t, drain(sender))
	for _, member := range []*Client{memberA, memberB} {
		events := drain(member)
		require.Len(t, events, 1)
		assert.Equal(t, EventGroupCreate, events[0].Event)

		payload, ok := events[0].Data.(GroupCreatedPayload)
		require.True(t, ok)
		assert.Equal(t, "grp1", payload.GroupId)
		assert.Equal(t, "team", payload.Name)
		assert.Equal(t, []int{2, 3}, payload.Members)
		assert.Equal(t, 1, payload.CreatedBy)
		assert.False(t, payload.CreatedAt.IsZero())
	}
}

func TestHandleGroupMembershipRelay(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		handler func(*Client, json.RawMessage)
		check   func(t *testing.T, data any)
	}{
		{
			name:    "member added",
			event:   EventGroupMemberAdd,
			handler: (*Client).handleGroupMemberAdd,
			check: func(t *testing.T, data any) {
				payload, ok := data.(GroupMemberAddedPayload)
				require.True(t, ok)
				assert.Equal(t, "grp1", payload.GroupId)
				assert.Equal(t, 2, payload.UserId)
				assert.Equal(t, 1, payload.AddedBy)
				assert.False(t, payload.AddedAt.IsZero())
			},
		},
		{
			name:    "member removed",
			event:   EventGroupMemberRemove,
			handler: (*Client).handleGroupMemberRemove,
			check: func(t *testing.T, data any) {
				payload, ok := data.(GroupMemberRemovedPayload)
				require.True(t, ok)
				assert.Equal(t, "grp1", payload.GroupId)
				assert.Equal(t, 2, payload.UserId)
				assert.Equal(t, 1, payload.RemovedBy)
				assert.False(t, payload.RemovedAt.IsZero())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw, repo := newTestGateway(t)
			repo.On("UpdateUserStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

			clients := relayClients(t, gw, 1, 2)
			sender, member := clients[0], clients[1]

			data, err := json.Marshal(GroupMemberPayload{GroupId: "grp1", UserId: 2})
			require.NoError(t, err)
			tc.handler(sender, data)

			gw.deliver(<-gw.broadcastChan)

			assert.Empty(t, drain(sender))
			events := drain(member)
			require.Len(t, events, 1)
			assert.Equal(t, tc.event, events[0].Event)
			tc.check(t, events[0].Data)
		})
	}
}

func TestHandleCallInitiateRelay(t *testing.T) {
	gw, repo := newTestGateway(t)
	repo.On("UpdateUserStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clients := relayClients(t, gw, 1, 2)
	caller, receiver := clients[0], clients[1]

	data, err := json.Marshal(CallInitiatePayload{
		ReceiverId: 2,
		CallId:     "call-1",
		CallType:   "video",
		CallerName: "alice",
	})
	require.NoError(t, err)
	caller.handleCallInitiate(data)

	gw.deliver(<-gw.broadcastChan)

	assert.Empty(t, drain(caller))
	events := drain(receiver)
	require.Len(t, events, 1)
	assert.Equal(t, EventCallInitiate, events[0].Event)

	payload, ok := events[0].Data.(CallRingPayload)
	require.True(t, ok)
	assert.Equal(t, "call-1", payload.CallId)
	assert.Equal(t, 1, payload.CallerId)
	assert.Equal(t, "alice", payload.CallerName)
	assert.Equal(t, "video", payload.CallType)
	assert.False(t, payload.Timestamp.IsZero())
}

func TestHandleCallDecisionRelay(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		handler func(*Client, json.RawMessage)
		check   func(t *testing.T, data any)
	}{
		{
			name:    "accepted",
			event:   EventCallAccept,
			handler: (*Client).handleCallAccept,
			check: func(t *testing.T, data any) {
				payload, ok := data.(CallAcceptedPayload)
				require.True(t, ok)
				assert.Equal(t, "call-1", payload.CallId)
				assert.Equal(t, 2, payload.AcceptedBy)
				assert.False(t, payload.Timestamp.IsZero())
			},
		},
		{
			name:    "rejected",
			event:   EventCallReject,
			handler: (*Client).handleCallReject,
			check: func(t *testing.T, data any) {
				payload, ok := data.(CallRejectedPayload)
				require.True(t, ok)
				assert.Equal(t, "call-1", payload.CallId)
				assert.Equal(t, 2, payload.RejectedBy)
				assert.False(t, payload.Timestamp.IsZero())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw, repo := newTestGateway(t)
			repo.On("UpdateUserStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

			clients := relayClients(t, gw, 1, 2)
			caller, receiver := clients[0], clients[1]

			data, err := json.Marshal(CallDecisionPayload{CallId: "call-1", CallerId: 1})
			require.NoError(t, err)
			tc.handler(receiver, data)

			gw.deliver(<-gw.broadcastChan)

			assert.Empty(t, drain(receiver))
			events := drain(caller)
			require.Len(t, events, 1)
			assert.Equal(t, tc.event, events[0].Event)
			tc.check(t, events[0].Data)
		})
	}
}

func TestHandleCallEndRelay(t *testing.T) {
	gw, repo := newTestGateway(t)
	repo.On("UpdateUserStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clients := relayClients(t, gw, 1, 2)
	caller, receiver := clients[0], clients[1]

	data, err := json.Marshal(CallEndPayload{CallId: "call-1", ReceiverId: 2})
	require.NoError(t, err)
	caller.handleCallEnd(data)

	gw.deliver(<-gw.broadcastChan)

	events := drain(receiver)
	require.Len(t, events, 1)
	assert.Equal(t, EventCallEnd, events[0].Event)

	payload, ok := events[0].Data.(CallEndedPayload)
	require.True(t, ok)
	assert.Equal(t, "call-1", payload.CallId)
	assert.Equal(t, 1, payload.EndedBy)
}

func TestHandleCallSignalRelay(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		handler func(*Client, json.RawMessage)
		inbound CallSignalPayload
		check   func(t *testing.T, payload CallSignalRelayPayload)
	}{
		{
			name:    "offer to receiver",
			event:   EventCallOffer,
			handler: (*Client).handleCallOffer,
			inbound: CallSignalPayload{ReceiverId: 2, Offer: json.RawMessage(`{"sdp":"v=0"}`)},
			check: func(t *testing.T, payload CallSignalRelayPayload) {
				assert.JSONEq(t, `{"sdp":"v=0"}`, string(payload.Offer))
			},
		},
		{
			name:    "answer back to caller",
			event:   EventCallAnswer,
			handler: (*Client).handleCallAnswer,
			inbound: CallSignalPayload{CallerId: 2, Answer: json.RawMessage(`{"sdp":"v=1"}`)},
			check: func(t *testing.T, payload CallSignalRelayPayload) {
				assert.JSONEq(t, `{"sdp":"v=1"}`, string(payload.Answer))
			},
		},
		{
			name:    "ice candidate to receiver",
			event:   EventCallIceCandidate,
			handler: (*Client).handleCallIceCandidate,
			inbound: CallSignalPayload{ReceiverId: 2, Candidate: json.RawMessage(`{"candidate":"c0"}`)},
			check: func(t *testing.T, payload CallSignalRelayPayload) {
				assert.JSONEq(t, `{"candidate":"c0"}`, string(payload.Candidate))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw, repo := newTestGateway(t)
			repo.On("UpdateUserStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

			clients := relayClients(t, gw, 1, 2)
			sender, target := clients[0], clients[1]

			data, err := json.Marshal(tc.inbound)
			require.NoError(t, err)
			tc.handler(sender, data)

			gw.deliver(<-gw.broadcastChan)

			events := drain(target)
			require.Len(t, events, 1)
			assert.Equal(t, tc.event, events[0].Event)

			payload, ok := events[0].Data.(CallSignalRelayPayload)
			require.True(t, ok)
			assert.Equal(t, 1, payload.SenderId)
			tc.check(t, payload)
		})
	}
}

func TestHandleNotificationSendRelay(t *testing.T) {
	gw, repo := newTestGateway(t)
	repo.On("UpdateUserStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clients := relayClients(t, gw, 1, 2)
	sender, target := clients[0], clients[1]

	data, err := json.Marshal(NotificationSendPayload{
		UserId:       2,
		Notification: json.RawMessage(`{"title":"ping"}`),
	})
	require.NoError(t, err)
	sender.handleNotificationSend(data)

	gw.deliver(<-gw.broadcastChan)

	events := drain(target)
	require.Len(t, events, 1)
	assert.Equal(t, EventNotificationNew, events[0].Event)

	raw, ok := events[0].Data.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"ping"}`, string(raw))
}

func TestRelayHandlersIgnoreMalformedPayloads(t *testing.T) {
	gw, repo := newTestGateway(t)
	repo.On("UpdateUserStatus", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	clients := relayClients(t, gw, 1)
	sender := clients[0]

	handlers := []func(*Client, json.RawMessage){
		(*Client).handleGroupCreate,
		(*Client).handleGroupMemberAdd,
		(*Client).handleGroupMemberRemove,
		(*Client).handleCallInitiate,
		(*Client).handleCallAccept,
		(*Client).handleCallReject,
		(*Client).handleCallEnd,
		(*Client).handleCallOffer,
		(*Client).handleCallAnswer,
		(*Client).handleCallIceCandidate,
		(*Client).handleNotificationSend,
	}
	for _, handler := range handlers {
		handler(sender, json.RawMessage(`{}`))
		handler(sender, json.RawMessage(`not json`))
	}

	select {
	case req := <-gw.broadcastChan:
		t.Fatalf("unexpected broadcast %q from a malformed payload", req.event)
	default:
	}
}

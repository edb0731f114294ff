package server

import (
	"encoding/json"
	"time"

	"github.com/mfalchik/chatsync/internal/chat"
)

// Group, call and notification events. These are pure relays: the gateway
// stamps the sender and a timestamp and forwards to personal rooms, nothing
// is persisted. Every name is re-emitted unchanged to the target except
// notification:send, which arrives as notification:new.
const (
	EventGroupCreate       = "group:create"
	EventGroupMemberAdd    = "group:member:add"
	EventGroupMemberRemove = "group:member:remove"

	EventCallInitiate     = "call:initiate"
	EventCallAccept       = "call:accept"
	EventCallReject       = "call:reject"
	EventCallEnd          = "call:end"
	EventCallOffer        = "call:offer"
	EventCallAnswer       = "call:answer"
	EventCallIceCandidate = "call:ice_candidate"

	EventNotificationSend = "notification:send"
	EventNotificationNew  = "notification:new"
)

type GroupCreatePayload struct {
	GroupId string `json:"group_id"`
	Name    string `json:"name"`
	Members []int  `json:"members"`
}

type GroupCreatedPayload struct {
	GroupId   string    `json:"group_id"`
	Name      string    `json:"name"`
	Members   []int     `json:"members"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type GroupMemberPayload struct {
	GroupId string `json:"group_id"`
	UserId  int    `json:"user_id"`
}

type GroupMemberAddedPayload struct {
	GroupId string    `json:"group_id"`
	UserId  int       `json:"user_id"`
	AddedBy int       `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

type GroupMemberRemovedPayload struct {
	GroupId   string    `json:"group_id"`
	UserId    int       `json:"user_id"`
	RemovedBy int       `json:"removed_by"`
	RemovedAt time.Time `json:"removed_at"`
}

type CallInitiatePayload struct {
	ReceiverId int    `json:"receiver_id"`
	CallId     string `json:"call_id"`
	CallType   string `json:"call_type"`
	CallerName string `json:"caller_name"`
}

type CallRingPayload struct {
	CallId     string    `json:"call_id"`
	CallerId   int       `json:"caller_id"`
	CallerName string    `json:"caller_name"`
	CallType   string    `json:"call_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// CallDecisionPayload is the inbound accept/reject, addressed back to the
// caller who initiated.
type CallDecisionPayload struct {
	CallId   string `json:"call_id"`
	CallerId int    `json:"caller_id"`
}

type CallAcceptedPayload struct {
	CallId     string    `json:"call_id"`
	AcceptedBy int       `json:"accepted_by"`
	Timestamp  time.Time `json:"timestamp"`
}

type CallRejectedPayload struct {
	CallId     string    `json:"call_id"`
	RejectedBy int       `json:"rejected_by"`
	Timestamp  time.Time `json:"timestamp"`
}

type CallEndPayload struct {
	CallId     string `json:"call_id"`
	ReceiverId int    `json:"receiver_id"`
}

type CallEndedPayload struct {
	CallId    string    `json:"call_id"`
	EndedBy   int       `json:"ended_by"`
	Timestamp time.Time `json:"timestamp"`
}

// CallSignalPayload carries the WebRTC handshake blobs. Offer and candidate
// are addressed by receiver_id, the answer goes back by caller_id. The SDP
// and ICE payloads are opaque to the gateway.
type CallSignalPayload struct {
	ReceiverId int             `json:"receiver_id,omitempty"`
	CallerId   int             `json:"caller_id,omitempty"`
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
}

type CallSignalRelayPayload struct {
	SenderId  int             `json:"sender_id"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type NotificationSendPayload struct {
	UserId       int             `json:"user_id"`
	Notification json.RawMessage `json:"notification"`
}

func (c *Client) relayToUser(userId int, event string, payload any) {
	c.gateway.broadcast([]string{chat.UserRoom(userId)}, event, payload, nil)
}

func (c *Client) handleGroupCreate(data json.RawMessage) {
	var req GroupCreatePayload
	if err := json.Unmarshal(data, &req); err != nil || req.GroupId == "" || len(req.Members) == 0 {
		return
	}

	notice := GroupCreatedPayload{
		GroupId:   req.GroupId,
		Name:      req.Name,
		Members:   req.Members,
		CreatedBy: c.session.UserId,
		CreatedAt: time.Now().UTC(),
	}
	for _, memberId := range req.Members {
		c.relayToUser(memberId, EventGroupCreate, notice)
	}
}

func (c *Client) handleGroupMemberAdd(data json.RawMessage) {
	var req GroupMemberPayload
	if err := json.Unmarshal(data, &req); err != nil || req.GroupId == "" || req.UserId == 0 {
		return
	}

	c.relayToUser(req.UserId, EventGroupMemberAdd, GroupMemberAddedPayload{
		GroupId: req.GroupId,
		UserId:  req.UserId,
		AddedBy: c.session.UserId,
		AddedAt: time.Now().UTC(),
	})
}

func (c *Client) handleGroupMemberRemove(data json.RawMessage) {
	var req GroupMemberPayload
	if err := json.Unmarshal(data, &req); err != nil || req.GroupId == "" || req.UserId == 0 {
		return
	}

	c.relayToUser(req.UserId, EventGroupMemberRemove, GroupMemberRemovedPayload{
		GroupId:   req.GroupId,
		UserId:    req.UserId,
		RemovedBy: c.session.UserId,
		RemovedAt: time.Now().UTC(),
	})
}

func (c *Client) handleCallInitiate(data json.RawMessage) {
	var req CallInitiatePayload
	if err := json.Unmarshal(data, &req); err != nil || req.ReceiverId == 0 || req.CallId == "" {
		return
	}

	c.relayToUser(req.ReceiverId, EventCallInitiate, CallRingPayload{
		CallId:     req.CallId,
		CallerId:   c.session.UserId,
		CallerName: req.CallerName,
		CallType:   req.CallType,
		Timestamp:  time.Now().UTC(),
	})
}

func (c *Client) handleCallAccept(data json.RawMessage) {
	var req CallDecisionPayload
	if err := json.Unmarshal(data, &req); err != nil || req.CallId == "" || req.CallerId == 0 {
		return
	}

	c.relayToUser(req.CallerId, EventCallAccept, CallAcceptedPayload{
		CallId:     req.CallId,
		AcceptedBy: c.session.UserId,
		Timestamp:  time.Now().UTC(),
	})
}

func (c *Client) handleCallReject(data json.RawMessage) {
	var req CallDecisionPayload
	if err := json.Unmarshal(data, &req); err != nil || req.CallId == "" || req.CallerId == 0 {
		return
	}

	c.relayToUser(req.CallerId, EventCallReject, CallRejectedPayload{
		CallId:     req.CallId,
		RejectedBy: c.session.UserId,
		Timestamp:  time.Now().UTC(),
	})
}

func (c *Client) handleCallEnd(data json.RawMessage) {
	var req CallEndPayload
	if err := json.Unmarshal(data, &req); err != nil || req.CallId == "" || req.ReceiverId == 0 {
		return
	}

	c.relayToUser(req.ReceiverId, EventCallEnd, CallEndedPayload{
		CallId:    req.CallId,
		EndedBy:   c.session.UserId,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Client) handleCallOffer(data json.RawMessage) {
	var req CallSignalPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ReceiverId == 0 || len(req.Offer) == 0 {
		return
	}

	c.relayToUser(req.ReceiverId, EventCallOffer, CallSignalRelayPayload{
		SenderId: c.session.UserId,
		Offer:    req.Offer,
	})
}

func (c *Client) handleCallAnswer(data json.RawMessage) {
	var req CallSignalPayload
	if err := json.Unmarshal(data, &req); err != nil || req.CallerId == 0 || len(req.Answer) == 0 {
		return
	}

	c.relayToUser(req.CallerId, EventCallAnswer, CallSignalRelayPayload{
		SenderId: c.session.UserId,
		Answer:   req.Answer,
	})
}

func (c *Client) handleCallIceCandidate(data json.RawMessage) {
	var req CallSignalPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ReceiverId == 0 || len(req.Candidate) == 0 {
		return
	}

	c.relayToUser(req.ReceiverId, EventCallIceCandidate, CallSignalRelayPayload{
		SenderId:  c.session.UserId,
		Candidate: req.Candidate,
	})
}

func (c *Client) handleNotificationSend(data json.RawMessage) {
	var req NotificationSendPayload
	if err := json.Unmarshal(data, &req); err != nil || req.UserId == 0 || len(req.Notification) == 0 {
		return
	}

	c.relayToUser(req.UserId, EventNotificationNew, req.Notification)
}

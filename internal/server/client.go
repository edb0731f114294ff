package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mfalchik/chatsync/internal/chat"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one live websocket connection for one device of one user.
type Client struct {
	conn    *websocket.Conn
	gateway *Gateway
	log     *log.Logger
	session Session
	send    chan ServerEvent
	stop    chan struct{}
	once    sync.Once
}

func NewClient(session Session, conn *websocket.Conn, gw *Gateway, l *log.Logger) *Client {
	return &Client{
		conn:    conn,
		gateway: gw,
		log:     l,
		session: session,
		send:    make(chan ServerEvent, 256),
		stop:    make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event := <-c.send:
			bytes, err := json.Marshal(event)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.gateway.Deregister(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var event ClientEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueEvent(errEvent("invalid event format"))
			continue
		}

		handler, ok := c.gateway.handlers[event.Event]
		if !ok {
			c.queueEvent(errEvent("unknown event " + event.Event))
			continue
		}

		handler(c, event.Data)
	}
}

func (c *Client) queueEvent(event ServerEvent) bool {
	select {
	case c.send <- event:
	default:
		c.log.Printf("send buffer full for user %d, dropping %q", c.session.UserId, event.Event)
		return false
	}

	return true
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Client) handleChatJoin(data json.RawMessage) {
	var req ChatRoomPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ChatId == "" {
		c.queueEvent(errEvent("chat:join requires chat_id"))
		return
	}

	reply := make(chan int, 1)
	select {
	case c.gateway.joinChan <- joinRequest{client: c, room: chat.ChatRoom(req.ChatId), reply: reply}:
	default:
		c.queueEvent(errEvent("service unavailable"))
		return
	}

	select {
	case size := <-reply:
		c.queueEvent(ServerEvent{
			Event: chat.EventChatJoined,
			Data:  ChatJoinedPayload{ChatId: req.ChatId, RoomSize: size},
		})
	case <-c.stop:
	}
}

func (c *Client) handleChatLeave(data json.RawMessage) {
	var req ChatRoomPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ChatId == "" {
		c.queueEvent(errEvent("chat:leave requires chat_id"))
		return
	}

	select {
	case c.gateway.leaveChan <- leaveRequest{client: c, room: chat.ChatRoom(req.ChatId)}:
	default:
		c.queueEvent(errEvent("service unavailable"))
	}
}

// handleEphemeralSend echoes an unpersisted message to the chat room. The
// durable send path is the REST pipeline; this path exists for connectivity
// testing.
func (c *Client) handleEphemeralSend(data json.RawMessage) {
	var req EphemeralSendPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ChatId == "" {
		c.queueEvent(errEvent("message:send requires chat_id"))
		return
	}

	c.gateway.broadcast([]string{chat.ChatRoom(req.ChatId)}, chat.EventMessageReceive, EphemeralMessage{
		ChatId:    req.ChatId,
		SenderId:  c.session.UserId,
		Content:   req.Content,
		Type:      req.Type,
		Status:    "sent",
		Timestamp: time.Now().UTC(),
	}, nil)
}

func (c *Client) handleTyping(data json.RawMessage) {
	c.relayTyping(data, chat.EventUserTyping)
}

func (c *Client) handleStopTyping(data json.RawMessage) {
	c.relayTyping(data, chat.EventUserStopTyping)
}

// relayTyping forwards a typing indicator to everyone else in the chat room.
// Typing state is ephemeral and never persisted.
func (c *Client) relayTyping(data json.RawMessage, event string) {
	var req TypingPayload
	if err := json.Unmarshal(data, &req); err != nil || req.ChatId == "" {
		return
	}

	c.gateway.broadcast([]string{chat.ChatRoom(req.ChatId)}, event, TypingPayload{
		UserId: c.session.UserId,
		ChatId: req.ChatId,
	}, c)
}

// handleDelivered relays a client's delivery acknowledgment to the chat
// room. The stored message status is not changed: there is no wired
// sent-to-delivered persistence transition.
func (c *Client) handleDelivered(data json.RawMessage) {
	var req DeliveredPayload
	if err := json.Unmarshal(data, &req); err != nil || req.MessageId == 0 {
		return
	}

	rooms := []string{}
	if req.ChatId != "" {
		rooms = append(rooms, chat.ChatRoom(req.ChatId))
	}
	if len(rooms) == 0 {
		return
	}

	c.gateway.broadcast(rooms, chat.EventMessageDelivered, DeliveredPayload{
		MessageId:   req.MessageId,
		ChatId:      req.ChatId,
		DeliveredAt: time.Now().UTC(),
	}, c)
}

package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/mfalchik/chatsync/internal/chat"
	"github.com/mfalchik/chatsync/internal/database"
	"github.com/mfalchik/chatsync/internal/stats"
	"github.com/mfalchik/chatsync/internal/types"
)

// Session is the verified identity handed to the gateway when a connection
// is accepted. Issuing and verifying the credential is the API layer's job.
type Session struct {
	UserId   int
	DeviceId string
}

type joinRequest struct {
	client *Client
	room   string
	// reply carries the room size after the join, for the ack.
	reply chan int
}

type leaveRequest struct {
	client *Client
	room   string
}

type broadcastRequest struct {
	rooms   []string
	event   string
	payload any
	skip    *Client
}

// Gateway owns the in-memory room table. All membership mutations and
// broadcasts are serialized through its run loop; domain services only name
// rooms, they never touch membership.
type Gateway struct {
	log   *log.Logger
	repo  database.ChatSyncRepository
	stats stats.StatsProvider

	clients map[*Client]struct{}
	// rooms maps room name to its member connections. A connection appears
	// at most once per room regardless of how many joins it issued.
	rooms map[string]map[*Client]struct{}
	// connsByUser counts live connections per user so presence flips only on
	// the first connect and the last disconnect.
	connsByUser map[int]int

	handlers map[string]func(*Client, json.RawMessage)

	registerChan   chan *Client
	deRegisterChan chan *Client
	joinChan       chan joinRequest
	leaveChan      chan leaveRequest
	broadcastChan  chan broadcastRequest

	stop chan struct{}
	done chan struct{}
}

func NewGateway(logger *log.Logger, repo database.ChatSyncRepository, sp stats.StatsProvider) *Gateway {
	gw := &Gateway{
		log:            logger,
		repo:           repo,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]map[*Client]struct{}),
		connsByUser:    make(map[int]int),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		joinChan:       make(chan joinRequest, 256),
		leaveChan:      make(chan leaveRequest, 256),
		broadcastChan:  make(chan broadcastRequest, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	gw.handlers = map[string]func(*Client, json.RawMessage){
		EventChatJoin:     (*Client).handleChatJoin,
		EventChatLeave:    (*Client).handleChatLeave,
		EventMessageSend:  (*Client).handleEphemeralSend,
		EventTyping:       (*Client).handleTyping,
		EventStopTyping:   (*Client).handleStopTyping,
		EventMsgDelivered: (*Client).handleDelivered,

		EventGroupCreate:       (*Client).handleGroupCreate,
		EventGroupMemberAdd:    (*Client).handleGroupMemberAdd,
		EventGroupMemberRemove: (*Client).handleGroupMemberRemove,
		EventCallInitiate:      (*Client).handleCallInitiate,
		EventCallAccept:        (*Client).handleCallAccept,
		EventCallReject:        (*Client).handleCallReject,
		EventCallEnd:           (*Client).handleCallEnd,
		EventCallOffer:         (*Client).handleCallOffer,
		EventCallAnswer:        (*Client).handleCallAnswer,
		EventCallIceCandidate:  (*Client).handleCallIceCandidate,
		EventNotificationSend:  (*Client).handleNotificationSend,
	}

	sp.RegisterMetric(stats.MetricConnections)
	sp.RegisterMetric(stats.MetricRooms)
	sp.RegisterMetric(stats.MetricBroadcasts)

	return gw
}

// Start launches the run loop. The gateway accepts no traffic before Start
// and none after Stop.
func (gw *Gateway) Start() {
	go gw.run()
}

// Stop closes every client connection and waits for the run loop to drain.
func (gw *Gateway) Stop() {
	close(gw.stop)
	<-gw.done
}

func (gw *Gateway) run() {
	for {
		select {
		case c := <-gw.registerChan:
			gw.addClient(c)
		case c := <-gw.deRegisterChan:
			gw.removeClient(c)
		case req := <-gw.joinChan:
			gw.joinRoom(req)
		case req := <-gw.leaveChan:
			gw.leaveRoom(req.client, req.room)
		case req := <-gw.broadcastChan:
			gw.deliver(req)
		case <-gw.stop:
			gw.log.Println("gateway shutting down")
			for c := range gw.clients {
				c.stopClient()
			}
			close(gw.done)
			return
		}
	}
}

// Register hands a freshly upgraded connection to the gateway. The
// connection is auto-joined to its personal room and, if it is the user's
// first live connection, the user is marked online and a presence event is
// broadcast to everyone else.
func (gw *Gateway) Register(c *Client) {
	select {
	case gw.registerChan <- c:
	case <-gw.stop:
		c.stopClient()
	}
}

func (gw *Gateway) Deregister(c *Client) {
	select {
	case gw.deRegisterChan <- c:
	case <-gw.stop:
	}
}

// Broadcast implements chat.Broadcaster: the payload reaches every member of
// the union of the named rooms exactly once.
func (gw *Gateway) Broadcast(rooms []string, event string, payload any) {
	gw.broadcast(rooms, event, payload, nil)
}

func (gw *Gateway) broadcast(rooms []string, event string, payload any, skip *Client) {
	select {
	case gw.broadcastChan <- broadcastRequest{rooms: rooms, event: event, payload: payload, skip: skip}:
	default:
		gw.log.Printf("broadcast channel full, dropping %q", event)
	}
}

func (gw *Gateway) addClient(c *Client) {
	gw.clients[c] = struct{}{}
	gw.addToRoom(c, chat.UserRoom(c.session.UserId))
	gw.stats.Incr(stats.MetricConnections)

	gw.connsByUser[c.session.UserId]++
	if gw.connsByUser[c.session.UserId] > 1 {
		return
	}

	now := time.Now().UTC()
	if err := gw.repo.UpdateUserStatus(c.session.UserId, string(types.StatusOnline), now); err != nil {
		gw.log.Printf("mark user %d online: %v", c.session.UserId, err)
	}

	gw.deliver(broadcastRequest{
		rooms:   gw.allRoomNames(),
		event:   chat.EventUserOnline,
		payload: PresencePayload{UserId: c.session.UserId, Timestamp: now},
		skip:    c,
	})
}

func (gw *Gateway) removeClient(c *Client) {
	if _, ok := gw.clients[c]; !ok {
		return
	}

	delete(gw.clients, c)
	for name, members := range gw.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(gw.rooms, name)
			gw.stats.Decr(stats.MetricRooms)
		}
	}
	gw.stats.Decr(stats.MetricConnections)
	c.stopClient()

	gw.connsByUser[c.session.UserId]--
	if gw.connsByUser[c.session.UserId] > 0 {
		return
	}
	delete(gw.connsByUser, c.session.UserId)

	now := time.Now().UTC()
	if err := gw.repo.UpdateUserStatus(c.session.UserId, string(types.StatusOffline), now); err != nil {
		gw.log.Printf("mark user %d offline: %v", c.session.UserId, err)
	}

	gw.deliver(broadcastRequest{
		rooms:   gw.allRoomNames(),
		event:   chat.EventUserOffline,
		payload: PresencePayload{UserId: c.session.UserId, Timestamp: now},
	})
}

func (gw *Gateway) joinRoom(req joinRequest) {
	gw.addToRoom(req.client, req.room)
	if req.reply != nil {
		req.reply <- len(gw.rooms[req.room])
	}
}

func (gw *Gateway) addToRoom(c *Client, room string) {
	members, ok := gw.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		gw.rooms[room] = members
		gw.stats.Incr(stats.MetricRooms)
	}

	// set-add: joining twice is a no-op
	members[c] = struct{}{}
}

func (gw *Gateway) leaveRoom(c *Client, room string) {
	members, ok := gw.rooms[room]
	if !ok {
		return
	}

	delete(members, c)
	if len(members) == 0 {
		delete(gw.rooms, room)
		gw.stats.Decr(stats.MetricRooms)
	}
}

func (gw *Gateway) deliver(req broadcastRequest) {
	targets := make(map[*Client]struct{})
	for _, room := range req.rooms {
		for c := range gw.rooms[room] {
			if c == req.skip {
				continue
			}
			targets[c] = struct{}{}
		}
	}

	if len(targets) == 0 {
		return
	}

	event := ServerEvent{Event: req.event, Data: req.payload}
	for c := range targets {
		c.queueEvent(event)
	}
	gw.stats.Incr(stats.MetricBroadcasts)
}

// allRoomNames lists every current room; used for presence which goes to all
// live connections. Every connection is a member of at least its personal
// room, so the union covers everyone.
func (gw *Gateway) allRoomNames() []string {
	names := make([]string, 0, len(gw.rooms))
	for name := range gw.rooms {
		names = append(names, name)
	}
	return names
}

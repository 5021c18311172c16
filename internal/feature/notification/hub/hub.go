// Package hub fans events out to the live connections of users and rooms.
package hub

import (
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mosaic_backend/internal/platform/duration"
	"mosaic_backend/internal/platform/logger"
)

// DefaultQueueSize is the per-connection outbound buffer.
const DefaultQueueSize = 64

// Message is the JSON frame delivered to clients.
type Message struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Room      string `json:"room,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Client is one live connection. Frames queued for it are read from Send.
type Client struct {
	ID     string
	UserID uint
	// TenantID namespaces the rooms the client joins itself.
	TenantID string

	send   chan []byte
	closed bool
	rooms  map[string]struct{}
}

// Send returns the outbound queue. It is closed when the client is
// unregistered.
func (c *Client) Send() <-chan []byte { return c.send }

// Hub tracks connections per user and per room. Delivery never blocks: a
// client whose queue is full is dropped.
type Hub struct {
	mu        sync.RWMutex
	users     map[uint]map[*Client]struct{}
	rooms     map[string]map[*Client]struct{}
	queueSize int
	now       func() time.Time
}

// New creates a Hub. queueSize <= 0 uses DefaultQueueSize.
func New(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		users:     make(map[uint]map[*Client]struct{}),
		rooms:     make(map[string]map[*Client]struct{}),
		queueSize: queueSize,
		now:       time.Now,
	}
}

// Register adds a connection for userID.
func (h *Hub) Register(userID uint, tenantID string) *Client {
	c := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		TenantID: tenantID,
		send:     make(chan []byte, h.queueSize),
		rooms:    make(map[string]struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[userID] = set
	}
	set[c] = struct{}{}
	logger.L().Debug("connection registered", zap.Uint("user_id", userID), zap.String("conn_id", c.ID))
	return c
}

// Unregister removes c from its user and rooms and closes its queue. It is
// safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	if set, ok := h.users[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
	logger.L().Debug("connection unregistered", zap.Uint("user_id", c.UserID), zap.String("conn_id", c.ID))
}

// Join adds c to room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[room] = set
	}
	set[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave removes c from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) frame(event string, payload any, room string) ([]byte, bool) {
	now := h.now()
	b, err := json.Marshal(Message{Event: event, Data: payload, Room: room, Timestamp: duration.CleanISO(&now)})
	if err != nil {
		logger.L().Error("failed to encode notification", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return b, true
}

// deliver queues frame on every client in targets and drops the ones
// whose queue is full. It returns how many clients received the frame.
func (h *Hub) deliver(frame []byte, targets func() []*Client) int {
	h.mu.RLock()
	var slow []*Client
	n := 0
	for _, c := range targets() {
		select {
		case c.send <- frame:
			n++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, c := range slow {
			logger.L().Warn("dropping slow connection", zap.Uint("user_id", c.UserID), zap.String("conn_id", c.ID))
			h.unregisterLocked(c)
		}
		h.mu.Unlock()
	}
	return n
}

func keys(set map[*Client]struct{}) []*Client {
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// SendTo queues an event on one connection.
func (h *Hub) SendTo(c *Client, event string, payload any) bool {
	frame, ok := h.frame(event, payload, "")
	if !ok {
		return false
	}
	return h.deliver(frame, func() []*Client {
		if c.closed {
			return nil
		}
		return []*Client{c}
	}) == 1
}

// SendToUser queues an event on every connection of userID and returns the
// number of connections reached.
func (h *Hub) SendToUser(userID uint, event string, payload any) int {
	frame, ok := h.frame(event, payload, "")
	if !ok {
		return 0
	}
	return h.deliver(frame, func() []*Client { return keys(h.users[userID]) })
}

// Broadcast queues an event on every connection.
func (h *Hub) Broadcast(event string, payload any) int {
	frame, ok := h.frame(event, payload, "")
	if !ok {
		return 0
	}
	return h.deliver(frame, func() []*Client {
		var all []*Client
		for _, set := range h.users {
			all = append(all, keys(set)...)
		}
		return all
	})
}

// SendToRoom queues an event on every connection in room.
func (h *Hub) SendToRoom(room, event string, payload any) int {
	frame, ok := h.frame(event, payload, room)
	if !ok {
		return 0
	}
	return h.deliver(frame, func() []*Client { return keys(h.rooms[room]) })
}

// ConnectedUsers returns the ids of users with at least one connection,
// in ascending order.
func (h *Hub) ConnectedUsers() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]uint, 0, len(h.users))
	for id := range h.users {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// IsUserConnected reports whether userID has a live connection.
func (h *Hub) IsUserConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// Connections returns the number of live connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

// TenantRoom namespaces a client-chosen room name under its tenant.
func TenantRoom(tenantID, room string) string {
	return tenantID + "/" + room
}

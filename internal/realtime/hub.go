package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/ArowuTest/tambola-backend/internal/metrics"
	"github.com/ArowuTest/tambola-backend/internal/models"
	"github.com/ArowuTest/tambola-backend/internal/services"
)

// Compile-time check to ensure Hub implements services.Broadcaster
var _ services.Broadcaster = (*Hub)(nil)

// Publisher forwards locally originated events to other instances
type Publisher interface {
	Publish(room string, users []string, payload []byte)
}

// Hub tracks connections, their rooms and their users
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	users   map[string]map[*Client]struct{}

	publisher Publisher
	logger    *zap.Logger
}

// NewHub creates an empty Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		users:   make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// SetPublisher enables cross-instance fan-out
func (h *Hub) SetPublisher(p Publisher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.publisher = p
}

// BroadcastToRoom delivers event to every member of the game room
func (h *Hub) BroadcastToRoom(gameID string, event models.Event) {
	payload, ok := h.encode(event)
	if !ok {
		return
	}
	h.DeliverToRoom(gameID, payload, nil)
	if p := h.getPublisher(); p != nil {
		p.Publish(gameID, nil, payload)
	}
}

// SendToUsers delivers event to every connection of the given users
func (h *Hub) SendToUsers(userIDs []string, event models.Event) {
	if len(userIDs) == 0 {
		return
	}
	payload, ok := h.encode(event)
	if !ok {
		return
	}
	h.DeliverToUsers(userIDs, payload)
	if p := h.getPublisher(); p != nil {
		p.Publish("", userIDs, payload)
	}
}

// DeliverToRoom writes payload to local room members, skipping except
func (h *Hub) DeliverToRoom(room string, payload []byte, except *Client) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != except {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(payload)
	}
}

// DeliverToUsers writes payload to the local connections of userIDs
func (h *Hub) DeliverToUsers(userIDs []string, payload []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(userIDs))
	for _, id := range userIDs {
		for c := range h.users[id] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(payload)
	}
}

// Join adds c to a room
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave removes c from a room
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// RoomSize returns the number of local members of a room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount returns the number of local connections
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.closeWithReason(ReasonShutdown, nil)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if c.identity.UserID != "" {
		conns, ok := h.users[c.identity.UserID]
		if !ok {
			conns = make(map[*Client]struct{})
			h.users[c.identity.UserID] = conns
		}
		conns[c] = struct{}{}
	}
	metrics.ConnectionOpened()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	if conns, ok := h.users[c.identity.UserID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.identity.UserID)
		}
	}
	metrics.ConnectionClosed()
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) getPublisher() Publisher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.publisher
}

func (h *Hub) encode(event models.Event) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event.Event), zap.Error(err))
		return nil, false
	}
	return payload, true
}

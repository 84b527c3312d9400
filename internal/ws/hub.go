// Package ws pushes notification events to connected users over websockets.
package ws

import (
	"encoding/json"
	"sync"
)

// Client is one websocket session of a user.
type Client struct {
	UserID uint64
	Send   chan []byte

	hub    *Hub
	mu     sync.Mutex
	closed bool
}

// NewClient builds a client with a buffered outbound queue.
func NewClient(userID uint64, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{UserID: userID, Send: make(chan []byte, buffer)}
}

// Close unregisters the client and closes its queue. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	hub := c.hub
	c.mu.Unlock()

	if hub != nil {
		hub.unregister(c)
	}
	c.mu.Lock()
	close(c.Send)
	c.mu.Unlock()
}

// offer queues data without blocking; full or closed queues drop the message.
func (c *Client) offer(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Hub tracks live clients per user.
type Hub struct {
	mu     sync.RWMutex
	byUser map[uint64]map[*Client]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{byUser: make(map[uint64]map[*Client]struct{})}
}

// Register adds c to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.mu.Lock()
	c.hub = h
	c.mu.Unlock()
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

// SendToUser queues payload for every session of userID and reports how many accepted it.
func (h *Hub) SendToUser(userID uint64, payload any) (int, error) {
	data, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return 0, errMarshal
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.byUser[userID]))
	for c := range h.byUser[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if c.offer(data) {
			delivered++
		}
	}
	return delivered, nil
}

// ClientCount returns the number of live sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byUser {
		n += len(m)
	}
	return n
}

package ws

import (
	"encoding/json"
	"log"
	"sync"
)

const sendBuffer = 64

// Client is one websocket connection of a signed-in user. A user may hold
// several (one per browser tab).
type Client struct {
	hub    *Hub
	conn   connection
	userID int
	send   chan []byte
}

// Hub keeps the connected clients per user.
type Hub struct {
	clients map[int]map[*Client]struct{}
	mu      sync.RWMutex
}

// NotificationHub is the hub used by the server.
var NotificationHub = NewHub()

// NewHub creates an empty Hub
func NewHub() *Hub {
	return &Hub{clients: make(map[int]map[*Client]struct{})}
}

func (h *Hub) newClient(conn connection, userID int) *Client {
	return &Client{hub: h, conn: conn, userID: userID, send: make(chan []byte, sendBuffer)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	log.Printf("[WS] user %d connected (connections=%d)", c.userID, len(set))
}

// unregister removes the client and closes its send channel. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	log.Printf("[WS] user %d disconnected", c.userID)
}

// SendToUser delivers a message to every connection of a user. Slow clients
// drop messages instead of blocking the sender.
func (h *Hub) SendToUser(userID int, message interface{}) int {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] marshal message for user %d: %v", userID, err)
		return 0
	}
	return h.sendRaw(userID, data)
}

func (h *Hub) sendRaw(userID int, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
			delivered++
		default:
			log.Printf("[WS] send buffer full for user %d, dropping message", userID)
		}
	}
	return delivered
}

// Online reports whether a user has at least one open connection.
func (h *Hub) Online(userID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

package websocket

import (
	"context"
	"sync"
)

// roomRequest represents a room join/leave request
type roomRequest struct {
	client *Client
	room   string
	join   bool // true = join, false = leave
}

// Hub manages WebSocket client connections and room membership
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// rooms maps room id to set of clients currently in it
	rooms map[string]map[*Client]struct{}

	// Control channels
	register   chan *Client     // New client connections
	unregister chan *Client     // Client disconnections
	membership chan roomRequest // Join/leave requests
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		membership: make(chan roomRequest, 512),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.membership:
			if req.join {
				h.joinRoom(req.client, req.room)
			} else {
				h.leaveRoom(req.client, req.room)
			}
		}
	}
}

// Register adds a new client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join puts a client into a room
func (h *Hub) Join(client *Client, room string) {
	h.membership <- roomRequest{client: client, room: room, join: true}
}

// Leave takes a client out of a room
func (h *Hub) Leave(client *Client, room string) {
	h.membership <- roomRequest{client: client, room: room, join: false}
}

// Broadcast sends a message to every client in a room
func (h *Hub) Broadcast(room string, payload []byte) {
	h.mu.RLock()
	for c := range h.rooms[room] {
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

// BroadcastExcept sends a message to every client in a room except one.
// Typing relays use this so the typist never echoes to themselves.
func (h *Hub) BroadcastExcept(room string, payload []byte, except *Client) {
	h.mu.RLock()
	for c := range h.rooms[room] {
		if c != except {
			c.SendMessage(payload)
		}
	}
	h.mu.RUnlock()
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetRoomSize returns the number of clients in a room
func (h *Hub) GetRoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// addClient adds a new client to the hub (internal)
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

// removeClient removes a client and all its room memberships (internal)
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range client.rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	delete(h.clients, client.ID)

	close(client.Send)
}

// joinRoom puts a client into a room (internal)
func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}

	client.trackRoom(room)
}

// leaveRoom takes a client out of a room (internal)
func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	client.untrackRoom(room)
}

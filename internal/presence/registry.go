// Package presence maps logical user ids to live-connection handles. The
// registry is purely in-memory: a process restart drops every entry and all
// users are considered offline until they announce themselves again.
package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is the handle delivery pushes payloads through. The websocket client
// satisfies it.
type Conn interface {
	SendMessage(payload []byte)
}

// Registry holds at most one active connection per user.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]Conn)}
}

// Register maps userID to conn, overwriting any prior mapping. A user
// reconnecting from elsewhere supersedes the old handle; the old handle is
// left to disconnect on its own.
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	r.conns[userID] = conn
	r.mu.Unlock()
}

// Lookup returns the live connection for userID, if any.
func (r *Registry) Lookup(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Unregister removes the entry whose handle matches conn. A superseded
// handle disconnecting does not evict the user's newer connection.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.conns {
		if c == conn {
			delete(r.conns, userID)
			return
		}
	}
}

// Online returns the number of registered users.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

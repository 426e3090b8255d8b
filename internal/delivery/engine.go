// Package delivery fans persisted messages and group updates out to live
// connections. Delivery is best-effort: offline recipients are skipped and
// catch up from the persisted log on their next fetch.
package delivery

import (
	"linkup-chat/internal/events"
	"linkup-chat/internal/presence"
	"linkup-chat/pkg/logger"

	"github.com/google/uuid"
)

type Engine struct {
	presence *presence.Registry
	log      *logger.Logger
}

func NewEngine(registry *presence.Registry, log *logger.Logger) *Engine {
	return &Engine{presence: registry, log: log}
}

// Push delivers one event to a single user's live connection, if any.
// Callers must only invoke this after the underlying state change has been
// persisted.
func (e *Engine) Push(userID uuid.UUID, eventType string, payload interface{}) {
	conn, ok := e.presence.Lookup(userID)
	if !ok {
		return
	}
	data, err := events.Marshal(eventType, payload)
	if err != nil {
		if e.log != nil {
			e.log.Errorf("delivery: failed to encode %s event: %v", eventType, err)
		}
		return
	}
	conn.SendMessage(data)
}

// FanOut delivers one event to every listed participant except exclude.
func (e *Engine) FanOut(participants []uuid.UUID, exclude uuid.UUID, eventType string, payload interface{}) {
	data, err := events.Marshal(eventType, payload)
	if err != nil {
		if e.log != nil {
			e.log.Errorf("delivery: failed to encode %s event: %v", eventType, err)
		}
		return
	}
	for _, userID := range participants {
		if userID == exclude {
			continue
		}
		if conn, ok := e.presence.Lookup(userID); ok {
			conn.SendMessage(data)
		}
	}
}

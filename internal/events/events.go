// Package events defines the live-connection wire protocol: a closed set of
// tagged JSON variants exchanged over the socket boundary. Every message is an
// envelope with a "type" discriminator; unknown or malformed inbound messages
// are dropped by the caller, never answered with an error.
package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Client -> Server event types.
const (
	TypeSetup       = "setup"
	TypeJoinChat    = "join-chat"
	TypeSendMessage = "send-message"
	TypeTyping      = "typing"
	TypeStopTyping  = "stop-typing"
)

// Server -> Client event types.
const (
	TypeConnected            = "connected"
	TypeReceiveMessage       = "receive-message"
	TypeNewMessage           = "newMessage"
	TypeNewGroupMessage      = "newGroupMessage"
	TypeNewGroupConversation = "newGroupConversation"
	TypeGroupUpdated         = "groupUpdated"
	TypeRemovedFromGroup     = "removedFromGroup"
	TypeGroupTyping          = "groupTyping"
	TypeGroupStopTyping      = "groupStopTyping"
)

// UserSummary is the sender/participant projection carried in event payloads.
type UserSummary struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	Username       string `json:"username,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	Headline       string `json:"headline,omitempty"`
}

// MessageBody is the message projection carried in event payloads.
type MessageBody struct {
	ID              string    `json:"_id"`
	SenderID        string    `json:"senderId"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	IsSystemMessage bool      `json:"isSystemMessage"`
}

// GroupState is the group projection pushed on membership and rename events.
type GroupState struct {
	ID           string        `json:"_id"`
	Name         string        `json:"groupName"`
	AdminID      string        `json:"groupAdmin"`
	Participants []UserSummary `json:"participants"`
}

// ---------------------------------------------------------------------------
// Client -> Server payloads
// ---------------------------------------------------------------------------

// SetupEvent announces the user behind a fresh connection.
type SetupEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// JoinChatEvent subscribes the connection to a room.
type JoinChatEvent struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// SendMessageEvent asks the server to relay a message payload to a receiver's
// live connection. Persistence happens over the REST boundary; this is the
// socket fast path.
type SendMessageEvent struct {
	Type           string      `json:"type"`
	ReceiverID     string      `json:"receiverId"`
	ConversationID string      `json:"conversationId"`
	Message        MessageBody `json:"message"`
	Sender         UserSummary `json:"sender"`
}

// TypingEvent signals typing activity in a room.
type TypingEvent struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// ---------------------------------------------------------------------------
// Server -> Client payloads
// ---------------------------------------------------------------------------

// ConnectedEvent acknowledges a successful setup.
type ConnectedEvent struct {
	Type string `json:"type"`
}

// MessageEvent carries a freshly persisted message to a recipient. Used for
// newMessage, receive-message and newGroupMessage; GroupName is set for the
// group variant only.
type MessageEvent struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversationId"`
	Message        MessageBody `json:"message"`
	Sender         UserSummary `json:"sender"`
	GroupName      string      `json:"groupName,omitempty"`
}

// GroupEvent carries the updated group state on creation, membership and
// rename changes.
type GroupEvent struct {
	Type         string     `json:"type"`
	Conversation GroupState `json:"conversation"`
}

// RemovedFromGroupEvent tells a participant they were removed.
type RemovedFromGroupEvent struct {
	Type      string `json:"type"`
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
}

// RoomEvent relays a typing or stop-typing signal within a room.
type RoomEvent struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// ---------------------------------------------------------------------------
// Envelope handling
// ---------------------------------------------------------------------------

// Envelope holds the type discriminator and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("events: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("events: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ParseClientEvent parses raw socket bytes into a typed client event. It
// returns the event type, the decoded struct, and any error for unknown or
// server-only types.
func ParseClientEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("events: failed to parse event: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeSetup:
		var m SetupEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeJoinChat:
		var m JoinChatEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping, TypeStopTyping:
		var m TypingEvent
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("events: unknown client event type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("events: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// Marshal encodes a server event, injecting the type discriminator.
func Marshal(eventType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("events: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("events: failed to remarshal payload: %w", err)
	}
	m["type"] = eventType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("events: failed to marshal server event: %w", err)
	}
	return out, nil
}

// DirectRoomID derives the room id for a direct chat between two users: sort
// the pair and join. Both sides compute the same id without a lookup.
func DirectRoomID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// IsDirectRoom reports whether a room id names a direct chat. Group rooms are
// bare conversation ids and contain no separator.
func IsDirectRoom(room string) bool {
	return strings.Contains(room, ":")
}

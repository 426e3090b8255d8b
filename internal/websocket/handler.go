package websocket

import (
	"context"
	"net/http"
	"time"

	"linkup-chat/internal/events"
	"linkup-chat/internal/presence"
	"linkup-chat/internal/services"
	"linkup-chat/internal/transport/httpdto"
	"linkup-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler upgrades HTTP requests to socket connections and runs the per
// connection read loop, dispatching the client event protocol.
type Handler struct {
	auth     *services.AuthService
	hub      *Hub
	presence *presence.Registry
	log      *logger.Logger
}

func NewHandler(auth *services.AuthService, hub *Hub, registry *presence.Registry, log *logger.Logger) *Handler {
	return &Handler{auth: auth, hub: hub, presence: registry, log: log}
}

func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		h.dispatch(client, data)
	}

	h.hub.Unregister(client)
	h.presence.Unregister(client)
}

// dispatch routes one inbound frame. Unknown or malformed frames are logged
// and dropped; the connection stays up.
func (h *Handler) dispatch(client *Client, data []byte) {
	eventType, msg, err := events.ParseClientEvent(data)
	if err != nil {
		h.log.Warnf("ws: dropping frame from %s: %v", client.UserID, err)
		return
	}

	switch eventType {
	case events.TypeSetup:
		// The announced user id is ignored; the JWT identity wins.
		h.presence.Register(client.UserID, client)
		h.reply(client, events.TypeConnected, events.ConnectedEvent{})

	case events.TypeJoinChat:
		ev := msg.(events.JoinChatEvent)
		if ev.Room == "" {
			return
		}
		h.hub.Join(client, ev.Room)

	case events.TypeSendMessage:
		ev := msg.(events.SendMessageEvent)
		receiverID, err := uuid.Parse(ev.ReceiverID)
		if err != nil {
			return
		}
		h.relay(receiverID, events.TypeReceiveMessage, events.MessageEvent{
			ConversationID: ev.ConversationID,
			Message:        ev.Message,
			Sender:         ev.Sender,
		})

	case events.TypeTyping:
		ev := msg.(events.TypingEvent)
		h.relayToRoom(client, ev.Room, events.TypeTyping, events.TypeGroupTyping)

	case events.TypeStopTyping:
		ev := msg.(events.TypingEvent)
		h.relayToRoom(client, ev.Room, events.TypeStopTyping, events.TypeGroupStopTyping)
	}
}

// relayToRoom rebroadcasts a typing signal to everyone else in the room. The
// room shape picks the outbound variant: direct rooms carry a separator,
// group rooms are bare conversation ids.
func (h *Handler) relayToRoom(client *Client, room, directType, groupType string) {
	if room == "" {
		return
	}
	outType := groupType
	if events.IsDirectRoom(room) {
		outType = directType
	}
	payload, err := events.Marshal(outType, events.RoomEvent{Room: room})
	if err != nil {
		h.log.Errorf("ws: failed to marshal %s event: %v", outType, err)
		return
	}
	h.hub.BroadcastExcept(room, payload, client)
}

// relay pushes an event to a user's live connection, if any.
func (h *Handler) relay(userID uuid.UUID, eventType string, payload interface{}) {
	conn, ok := h.presence.Lookup(userID)
	if !ok {
		return
	}
	data, err := events.Marshal(eventType, payload)
	if err != nil {
		h.log.Errorf("ws: failed to marshal %s event: %v", eventType, err)
		return
	}
	conn.SendMessage(data)
}

func (h *Handler) reply(client *Client, eventType string, payload interface{}) {
	data, err := events.Marshal(eventType, payload)
	if err != nil {
		h.log.Errorf("ws: failed to marshal %s event: %v", eventType, err)
		return
	}
	client.SendMessage(data)
}

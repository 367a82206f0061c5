package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"visaconnect/internal/events"
	"visaconnect/internal/models"
	"visaconnect/internal/observability"
)

// Room kinds. A conversation room carries message events for one open
// conversation; an inbox room carries conversation-summary events for one
// user.
const (
	KindConversation = "conversation"
	KindInbox        = "inbox"
)

// Hub maintains active websocket rooms for push mode. Clients that cannot
// reach it fall back to polling on their own.
type Hub struct {
	conversationRooms map[string]map[*websocket.Conn]bool
	inboxRooms        map[string]map[*websocket.Conn]bool
	connInfo          map[*websocket.Conn]ConnInfo
	writeMu           map[*websocket.Conn]*sync.Mutex
	mu                sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conversationRooms: make(map[string]map[*websocket.Conn]bool),
		inboxRooms:        make(map[string]map[*websocket.Conn]bool),
		connInfo:          make(map[*websocket.Conn]ConnInfo),
		writeMu:           make(map[*websocket.Conn]*sync.Mutex),
	}
}

// AddClient registers a websocket connection to a room.
func (h *Hub) AddClient(kind, roomID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := h.rooms(kind)
	if _, ok := rooms[roomID]; !ok {
		rooms[roomID] = make(map[*websocket.Conn]bool)
	}
	rooms[roomID][conn] = true
	h.connInfo[conn] = info
	h.writeMu[conn] = &sync.Mutex{}
}

// RemoveClient removes a websocket connection from a room.
func (h *Hub) RemoveClient(kind, roomID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := h.rooms(kind)
	if conns, ok := rooms[roomID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(rooms, roomID)
		}
	}
	delete(h.connInfo, conn)
	delete(h.writeMu, conn)
}

// rooms must be called with the lock held.
func (h *Hub) rooms(kind string) map[string]map[*websocket.Conn]bool {
	if kind == KindInbox {
		return h.inboxRooms
	}
	return h.conversationRooms
}

// BroadcastMessage pushes a new message to every client watching the
// conversation.
func (h *Hub) BroadcastMessage(conversationID string, msg models.Message) {
	event := models.ChatEvent{Type: "message", Message: &msg}
	payload, _ := json.Marshal(event)
	h.broadcast(KindConversation, conversationID, payload)
}

// BroadcastConversation pushes an updated conversation summary to the user's
// inbox room.
func (h *Hub) BroadcastConversation(userID string, conversation models.Conversation) {
	event := models.InboxEvent{Type: "conversation", Conversation: &conversation}
	payload, _ := json.Marshal(event)
	h.broadcast(KindInbox, userID, payload)
}

func (h *Hub) broadcast(kind, roomID string, payload []byte) {
	type target struct {
		conn    *websocket.Conn
		writeMu *sync.Mutex
	}

	h.mu.RLock()
	room := h.rooms(kind)[roomID]
	targets := make([]target, 0, len(room))
	for conn := range room {
		targets = append(targets, target{conn: conn, writeMu: h.writeMu[conn]})
	}
	h.mu.RUnlock()

	// Writes serialize per connection: gorilla/websocket supports at most
	// one concurrent writer, and broadcasts to the same room can overlap.
	for _, t := range targets {
		t.writeMu.Lock()
		err := t.conn.WriteMessage(websocket.TextMessage, payload)
		t.writeMu.Unlock()
		if err != nil {
			log.Printf("websocket write error kind=%s room=%s: %v", kind, roomID, err)
			t.conn.Close()
			h.publishWSError(kind, roomID, t.conn, err)
			h.RemoveClient(kind, roomID, t.conn)
		}
	}
}

func (h *Hub) publishWSError(kind, roomID string, conn *websocket.Conn, err error) {
	h.mu.RLock()
	info, ok := h.connInfo[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   wsEventPayload(kind, roomID, "ws_error", info, time.Since(info.ConnectedAt), err.Error()),
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func wsRoutingKey(kind string) string {
	if kind == KindInbox {
		return events.KeyWSInbox
	}
	return events.KeyWSConversations
}

func wsEventPayload(kind, roomID, event string, info ConnInfo, elapsed time.Duration, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"room_id":     roomID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": elapsed.Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}

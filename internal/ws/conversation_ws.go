package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"visaconnect/internal/chat"
	"visaconnect/internal/identity"
	"visaconnect/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ConversationHandler upgrades push-mode subscriptions for one open
// conversation.
type ConversationHandler struct {
	hub      *Hub
	service  *chat.Service
	verifier identity.Verifier
}

// NewConversationHandler constructs a ConversationHandler.
func NewConversationHandler(hub *Hub, service *chat.Service, verifier identity.Verifier) *ConversationHandler {
	return &ConversationHandler{hub: hub, service: service, verifier: verifier}
}

// Handle authenticates, checks membership, upgrades, and parks the
// connection in the conversation room until the peer goes away.
func (h *ConversationHandler) Handle(c *gin.Context) {
	conversationID := c.Param("conversation_id")

	ctx, span := otel.Tracer("visaconnect/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := authenticate(ctx, h.verifier, c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
		return
	}

	conversation, err := h.service.GetConversation(ctx, conversationID)
	if err != nil || !conversation.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "not a conversation participant"})
		return
	}

	serve(c, h.hub, KindConversation, conversationID, userID, span.SpanContext().TraceID().String())
}

// authenticate accepts the bearer header or, for browser websocket clients
// that cannot set headers, a token query parameter.
func authenticate(ctx context.Context, verifier identity.Verifier, c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	token := ""
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		token = parts[1]
	}
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		return "", fmt.Errorf("missing token")
	}

	id, err := verifier.VerifyToken(ctx, token)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

// serve upgrades the connection, registers it in the hub, and blocks a
// reader goroutine on the connection to detect the close.
func serve(c *gin.Context, hub *Hub, kind, roomID, userID, traceID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	ctx := c.Request.Context()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	hub.AddClient(kind, roomID, conn, info)

	observability.IncWSActive(kind)
	observability.IncWSEvent(kind, "ws_connect")
	headers := observability.BuildHeaders(requestID, traceID)
	_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload(kind, roomID, "ws_connect", info, 0, ""),
	}, headers)

	go func() {
		var closeReason string
		defer func() {
			hub.RemoveClient(kind, roomID, conn)
			observability.DecWSActive(kind)
			observability.IncWSEvent(kind, "ws_disconnect")
			_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   wsEventPayload(kind, roomID, "ws_disconnect", info, time.Since(info.ConnectedAt), closeReason),
			}, headers)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(kind, "ws_error")
				}
				return
			}
		}
	}()
}

package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"visaconnect/internal/identity"
)

// InboxHandler upgrades push-mode subscriptions for a user's conversation
// list.
type InboxHandler struct {
	hub      *Hub
	verifier identity.Verifier
}

// NewInboxHandler constructs an InboxHandler.
func NewInboxHandler(hub *Hub, verifier identity.Verifier) *InboxHandler {
	return &InboxHandler{hub: hub, verifier: verifier}
}

// Handle authenticates and parks the connection in the caller's inbox room.
// The room id is the authenticated user id, so users can only watch their
// own inbox.
func (h *InboxHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("visaconnect/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := authenticate(ctx, h.verifier, c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
		return
	}

	serve(c, h.hub, KindInbox, userID, userID, span.SpanContext().TraceID().String())
}

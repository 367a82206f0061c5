package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"visaconnect/internal/chat"
	"visaconnect/internal/events"
	"visaconnect/internal/models"
	"visaconnect/internal/observability"
	"visaconnect/internal/repositories"
	"visaconnect/internal/telemetry"
	"visaconnect/internal/ws"
)

// ChatHandler exposes the messaging endpoints.
type ChatHandler struct {
	service *chat.Service
	users   repositories.UserRepository
	hub     *ws.Hub
	audit   *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(service *chat.Service, users repositories.UserRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{service: service, users: users, hub: hub, audit: audit}
}

// ListConversations returns the caller's conversations, most recent first,
// enriched with the other participant's directory profile. A failed read
// presents as an empty inbox.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	conversations := h.service.GetUserConversations(c.Request.Context(), userID)

	otherIDs := make([]string, 0, len(conversations))
	seen := map[string]struct{}{}
	for _, conversation := range conversations {
		other := conversation.OtherParticipant(userID)
		if _, ok := seen[other]; other != "" && !ok {
			seen[other] = struct{}{}
			otherIDs = append(otherIDs, other)
		}
	}

	profiles := h.lookupProfiles(c, otherIDs)

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		summary := models.ConversationSummary{Conversation: conversation}
		if profile, ok := profiles[conversation.OtherParticipant(userID)]; ok {
			summary.OtherUser = &profile
		}
		summaries = append(summaries, summary)
	}

	respondOK(c, summaries)
}

type startConversationRequest struct {
	ParticipantIDs []string `json:"participantIds"`
	OtherUserID    string   `json:"otherUserId"`
}

// StartConversation creates or returns the conversation between the caller
// and the other participant. Accepts either {participantIds:[a,b]} or
// {otherUserId}.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := c.GetString("userID")
	otherID := req.OtherUserID
	if otherID == "" {
		if len(req.ParticipantIDs) != 2 {
			respondError(c, http.StatusBadRequest, "missing or invalid participant ids")
			return
		}
		for _, id := range req.ParticipantIDs {
			if id != userID {
				otherID = id
			}
		}
	}
	if otherID == "" || otherID == userID {
		respondError(c, http.StatusBadRequest, "invalid participant ids")
		return
	}

	conversation, err := h.service.GetOrCreateConversation(c.Request.Context(), userID, otherID)
	if err != nil {
		if errors.Is(err, chat.ErrSameParticipant) {
			respondError(c, http.StatusBadRequest, "invalid participant ids")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	respondOK(c, gin.H{"id": conversation.ID})
}

// GetMessages returns the conversation history oldest first, with sender
// display names attached.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetString("userID")

	conversation, err := h.service.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		respondNotFoundOrError(c, err, "conversation not found")
		return
	}
	if !conversation.HasParticipant(userID) {
		respondError(c, http.StatusForbidden, "not a conversation participant")
		return
	}

	msgs := h.service.GetConversationMessages(c.Request.Context(), conversationID, userID)

	senderIDs := make([]string, 0, 2)
	seen := map[string]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	profiles := h.lookupProfiles(c, senderIDs)

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.MessageView{Message: m}
		if profile, ok := profiles[m.SenderID]; ok {
			view.SenderName = profile.FirstName + " " + profile.LastName
		}
		views = append(views, view)
	}

	respondOK(c, views)
}

type postMessageRequest struct {
	Content    string `json:"content" binding:"required"`
	ReceiverID string `json:"receiverId" binding:"required"`
}

// PostMessage stores a message, updates the conversation summary, and pushes
// the result to websocket subscribers.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetString("userID")

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "missing required fields")
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), conversationID, userID, req.ReceiverID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConversationNotFound):
			respondError(c, http.StatusNotFound, "conversation not found")
		case errors.Is(err, chat.ErrNotParticipant):
			respondError(c, http.StatusForbidden, "not a conversation participant")
		case errors.Is(err, chat.ErrEmptyContent):
			respondError(c, http.StatusBadRequest, "missing required fields")
		default:
			respondError(c, http.StatusInternalServerError, "failed to send message")
		}
		return
	}

	observability.IncMessagesSent()
	h.audit.Emit(c.Request.Context(), "message_sent", conversationID, msg.ID, requestIDFromContext(c), userID)
	publishChatEvent(c, events.KeyMessageSent, "message_sent", map[string]interface{}{
		"conversation_id": conversationID,
		"message_id":      msg.ID,
		"sender_id":       userID,
		"receiver_id":     req.ReceiverID,
	})

	h.hub.BroadcastMessage(conversationID, msg)
	h.pushInboxUpdate(c, conversationID)

	respondOK(c, gin.H{"messageId": msg.ID})
}

// MarkRead zeroes the caller's unread counter for the conversation.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetString("userID")

	conversation, err := h.service.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		respondNotFoundOrError(c, err, "conversation not found")
		return
	}
	if !conversation.HasParticipant(userID) {
		respondError(c, http.StatusForbidden, "not a conversation participant")
		return
	}

	if err := h.service.MarkMessagesAsRead(c.Request.Context(), conversationID, userID); err != nil {
		respondError(c, http.StatusInternalServerError, "failed to mark messages as read")
		return
	}

	observability.IncConversationsRead()
	h.audit.Emit(c.Request.Context(), "conversation_read", conversationID, "", requestIDFromContext(c), userID)
	publishChatEvent(c, events.KeyConversationRead, "conversation_read", map[string]interface{}{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	h.pushInboxUpdate(c, conversationID)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnreadCount returns the caller's total unread counter. Always succeeds;
// backend failure reads as zero.
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	userID := c.GetString("userID")
	respondOK(c, gin.H{"count": h.service.GetUnreadCount(c.Request.Context(), userID)})
}

// pushInboxUpdate re-reads the conversation and pushes the fresh summary to
// both participants' inbox rooms. Best effort: push failures never affect
// the HTTP response.
func (h *ChatHandler) pushInboxUpdate(c *gin.Context, conversationID string) {
	conversation, err := h.service.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		log.Printf("inbox push skipped conversation=%s: %v", conversationID, err)
		return
	}
	for _, participant := range conversation.Participants {
		h.hub.BroadcastConversation(participant, conversation)
	}
}

// publishChatEvent emits a chat domain event to the topic exchange. Best
// effort: publish failures are counted, never surfaced to the caller.
func publishChatEvent(c *gin.Context, routingKey, eventName string, payload map[string]interface{}) {
	headers := observability.BuildHeaders(requestIDFromContext(c), "")
	_ = observability.PublishEvent(c.Request.Context(), routingKey, observability.EventEnvelope{
		EventType: "chat",
		EventName: eventName,
		Payload:   payload,
	}, headers)
}

// lookupProfiles fetches directory profiles; enrichment is best effort and a
// directory outage must not break the chat read path.
func (h *ChatHandler) lookupProfiles(c *gin.Context, userIDs []string) map[string]models.ChatUser {
	profiles := map[string]models.ChatUser{}
	if len(userIDs) == 0 {
		return profiles
	}

	users, err := h.users.GetMany(c.Request.Context(), userIDs)
	if err != nil {
		log.Printf("directory lookup failed: %v", err)
		return profiles
	}
	for _, u := range users {
		profiles[u.ID] = u.ChatProfile()
	}
	return profiles
}

package chat

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"visaconnect/internal/models"
	"visaconnect/internal/repositories"
)

var (
	ErrSameParticipant = errors.New("conversation requires two distinct participants")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrNotParticipant  = errors.New("user is not a conversation participant")
)

// Service orchestrates conversation and message persistence. Read paths
// degrade to empty results on backend failure (messaging visibility is
// advisory); write paths surface failures to the caller.
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
}

// NewService builds a Service.
func NewService(conversations repositories.ConversationRepository, messages repositories.MessageRepository) *Service {
	return &Service{conversations: conversations, messages: messages}
}

// SortedPair canonicalizes a participant pair so lookups are
// order-independent.
func SortedPair(userA, userB string) []string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return pair
}

// GetOrCreateConversation returns the conversation for the pair, creating it
// when absent. Lookup-before-create only: two concurrent first contacts can
// both create a conversation. See DESIGN.md for the open product decision.
func (s *Service) GetOrCreateConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return models.Conversation{}, ErrSameParticipant
	}
	pair := SortedPair(userA, userB)

	conversation, err := s.conversations.FindByParticipants(ctx, pair)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, err
	}

	return s.conversations.Create(ctx, pair)
}

// SendMessage appends a message and then updates the conversation summary.
// The two writes are sequential, not atomic: a failure after the append
// leaves the message stored with a stale summary, a state RebuildSummary can
// reconcile.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, receiverID, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}

	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if !conversation.HasParticipant(senderID) || !conversation.HasParticipant(receiverID) {
		return models.Message{}, ErrNotParticipant
	}

	msg, err := s.messages.Append(ctx, models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	})
	if err != nil {
		return models.Message{}, err
	}

	// Self-messages never count as unread. The counter is set, not
	// accumulated: the badge means "something new", not a tally.
	unread := 1
	if receiverID == senderID {
		unread = 0
	}
	if err := s.conversations.UpdateSummary(ctx, conversationID, msg, unread); err != nil {
		return models.Message{}, err
	}

	return msg, nil
}

// GetConversationMessages returns the full history oldest first. Backend
// failures degrade to an empty list.
func (s *Service) GetConversationMessages(ctx context.Context, conversationID, userID string) []models.Message {
	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		log.Printf("message list read failed conversation=%s user=%s: %v", conversationID, userID, err)
		return []models.Message{}
	}
	return msgs
}

// GetUserConversations returns the user's conversations most-recent first.
// Backend failures degrade to an empty list.
func (s *Service) GetUserConversations(ctx context.Context, userID string) []models.Conversation {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		log.Printf("conversation list read failed user=%s: %v", userID, err)
		return []models.Conversation{}
	}
	return conversations
}

// GetConversation fetches one conversation for membership checks.
func (s *Service) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	return s.conversations.Get(ctx, conversationID)
}

// MarkMessagesAsRead zeroes the caller's unread counter. Individual message
// read flags are left alone: the aggregate counter is the authoritative
// unread signal.
func (s *Service) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) error {
	return s.conversations.SetUnread(ctx, conversationID, userID, 0)
}

// GetUnreadCount sums the user's unread counters across all conversations.
// Any failure degrades to zero: the badge is best effort.
func (s *Service) GetUnreadCount(ctx context.Context, userID string) int {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		log.Printf("unread count read failed user=%s: %v", userID, err)
		return 0
	}

	total := 0
	for _, c := range conversations {
		total += c.UnreadFor(userID)
	}
	return total
}

// RebuildSummary re-derives lastMessage/lastMessageTime from the message
// list, repairing a conversation whose summary write was lost between the
// append and the summary update. Unread counters are preserved as stored.
func (s *Service) RebuildSummary(ctx context.Context, conversationID string) error {
	latest, err := s.messages.Latest(ctx, conversationID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	return s.conversations.UpdateSummary(ctx, conversationID, latest, conversation.UnreadFor(latest.ReceiverID))
}

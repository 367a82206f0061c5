package models

import "time"

// Conversation is a two-party messaging thread. Participants are stored
// sorted so the pair can be looked up regardless of argument order.
type Conversation struct {
	ID              string         `bson:"-" json:"id"`
	Participants    []string       `bson:"participants" json:"participants"`
	LastMessage     *Message       `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastMessageTime *time.Time     `bson:"lastMessageTime,omitempty" json:"lastMessageTime,omitempty"`
	UnreadCount     map[string]int `bson:"unreadCount" json:"unreadCount"`
	CreatedAt       time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// UnreadFor returns the unread counter for a participant.
func (c Conversation) UnreadFor(userID string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}

// HasParticipant reports whether the user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID. Empty when the
// user is not a member.
func (c Conversation) OtherParticipant(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ConversationSummary is the API view of a conversation for one user,
// enriched with the other participant's directory profile.
type ConversationSummary struct {
	Conversation
	OtherUser *ChatUser `json:"otherUser,omitempty"`
}

// ChatEvent is pushed over websocket connections for an open conversation.
type ChatEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}

// InboxEvent is pushed over a user's inbox websocket when any of their
// conversations changes.
type InboxEvent struct {
	Type         string        `json:"type"`
	Conversation *Conversation `json:"conversation,omitempty"`
}

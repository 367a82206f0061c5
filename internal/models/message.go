package models

import "time"

// Message is a single directed text payload within a conversation. Messages
// are created once and never mutated; read state lives on the conversation's
// unread counters, not on the message.
type Message struct {
	ID             string    `bson:"-" json:"id"`
	ConversationID string    `bson:"conversationId" json:"conversationId"`
	SenderID       string    `bson:"senderId" json:"senderId"`
	ReceiverID     string    `bson:"receiverId" json:"receiverId"`
	Content        string    `bson:"content" json:"content"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
	Read           bool      `bson:"read" json:"read"`
}

// MessageView is a message enriched with the sender's display name for API
// responses.
type MessageView struct {
	Message
	SenderName string `json:"senderName,omitempty"`
}

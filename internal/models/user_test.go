package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletionPercent(t *testing.T) {
	assert.Equal(t, 0, User{}.CompletionPercent())

	half := User{
		FirstName:  "Alice",
		LastName:   "Ng",
		VisaType:   "H-1B",
		Occupation: "Engineer",
	}
	assert.Equal(t, 44, half.CompletionPercent())

	full := User{
		FirstName:       "Alice",
		LastName:        "Ng",
		VisaType:        "H-1B",
		Occupation:      "Engineer",
		Employer:        "Acme",
		CurrentLocation: json.RawMessage(`{"city":"Austin"}`),
		ProfilePhotoURL: "https://example.com/p.jpg",
		Bio:             "hi",
		Nationality:     "Vietnamese",
	}
	assert.Equal(t, 100, full.CompletionPercent())
}

func TestChatProfileProjection(t *testing.T) {
	u := User{ID: "alice", FirstName: "Alice", LastName: "Ng", Email: "alice@example.com", Occupation: "Engineer"}

	p := u.ChatProfile()
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, "Engineer", p.Occupation)
}

func TestConversationHelpers(t *testing.T) {
	c := Conversation{
		Participants: []string{"alice", "bob"},
		UnreadCount:  map[string]int{"bob": 2},
	}

	assert.True(t, c.HasParticipant("alice"))
	assert.False(t, c.HasParticipant("carol"))
	assert.Equal(t, "bob", c.OtherParticipant("alice"))
	assert.Equal(t, 2, c.UnreadFor("bob"))
	assert.Zero(t, c.UnreadFor("alice"))
	assert.Zero(t, Conversation{}.UnreadFor("alice"))
}

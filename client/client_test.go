package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/models"
)

func TestClientSendsBearerAndDecodesEnvelope(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"count":3}}`))
	}))
	defer server.Close()

	c := New(server.URL, NewSession("tok-1", "alice"))

	count, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, "Bearer tok-1", gotAuth)
}

func TestClientSurfacesErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"conversation not found"}`))
	}))
	defer server.Close()

	c := New(server.URL, NewSession("tok-1", "alice"))

	_, err := c.GetMessages(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversation not found")
}

func TestStartConversationReturnsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat/conversations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"id":"c7"}}`))
	}))
	defer server.Close()

	c := New(server.URL, NewSession("tok-1", "alice"))

	id, err := c.StartConversation(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "c7", id)
}

func TestMeStoresProfileOnSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"user":{"id":"alice","firstName":"Alice"},"completionPercent":44}}`))
	}))
	defer server.Close()

	session := NewSession("tok-1", "alice")
	c := New(server.URL, session)

	user, completion, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.FirstName)
	assert.Equal(t, 44, completion)

	stored := session.Profile()
	require.NotNil(t, stored)
	assert.Equal(t, "alice", stored.ID)
	assert.Equal(t, 44, session.CompletionPercent())
}

func TestSessionClear(t *testing.T) {
	session := NewSession("tok-1", "alice")
	session.SetProfile(models.User{ID: "alice"}, 80)

	session.Clear()

	assert.Empty(t, session.Token())
	assert.Empty(t, session.UserID())
	assert.Nil(t, session.Profile())
	assert.Zero(t, session.CompletionPercent())
}

func TestWebsocketURLSchemes(t *testing.T) {
	c := New("http://chat.example.com", NewSession("tok 1", "alice"))
	wsURL, err := c.WebsocketURL("/ws/inbox")
	require.NoError(t, err)
	assert.Equal(t, "ws://chat.example.com/ws/inbox?token=tok+1", wsURL)

	c = New("https://chat.example.com", NewSession("tok", "alice"))
	wsURL, err = c.WebsocketURL("/ws/inbox")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws/inbox?token=tok", wsURL)
}

package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/models"
)

// deliveryLog collects subscription callbacks without blocking them.
type deliveryLog[T any] struct {
	mu         sync.Mutex
	deliveries [][]T
}

func (l *deliveryLog[T]) record(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries = append(l.deliveries, items)
}

func (l *deliveryLog[T]) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.deliveries)
}

func (l *deliveryLog[T]) last() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.deliveries) == 0 {
		return nil
	}
	return l.deliveries[len(l.deliveries)-1]
}

func newPollOnlyBackend(t *testing.T, messagesBody, conversationsBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ws/"):
			// No push support: the dial handshake fails here.
			http.Error(w, "not found", http.StatusNotFound)
		case strings.HasSuffix(r.URL.Path, "/messages"):
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(messagesBody))
		case r.URL.Path == "/api/chat/conversations":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(conversationsBody))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
}

func newTestSubscriber(server *httptest.Server) *Subscriber {
	s := NewSubscriber(New(server.URL, NewSession("tok", "alice")))
	s.messageInterval = 10 * time.Millisecond
	s.conversationInterval = 10 * time.Millisecond
	return s
}

func TestSubscribeMessagesPollsWhenPushUnavailable(t *testing.T) {
	server := newPollOnlyBackend(t,
		`{"success":true,"data":[{"id":"m1","senderId":"bob","content":"hey"}]}`,
		`{"success":true,"data":[]}`)
	defer server.Close()

	log := &deliveryLog[models.MessageView]{}
	unsubscribe := newTestSubscriber(server).SubscribeMessages("c1", log.record)
	defer unsubscribe()

	require.Eventually(t, func() bool { return log.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	last := log.last()
	require.Len(t, last, 1)
	assert.Equal(t, "m1", last[0].ID)
	assert.Equal(t, "hey", last[0].Content)
}

func TestSubscribeConversationsPollsInbox(t *testing.T) {
	server := newPollOnlyBackend(t,
		`{"success":true,"data":[]}`,
		`{"success":true,"data":[{"id":"c1","participants":["alice","bob"],"unreadCount":{"alice":1}}]}`)
	defer server.Close()

	log := &deliveryLog[models.ConversationSummary]{}
	unsubscribe := newTestSubscriber(server).SubscribeConversations(log.record)
	defer unsubscribe()

	require.Eventually(t, func() bool { return log.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	last := log.last()
	require.Len(t, last, 1)
	assert.Equal(t, "c1", last[0].ID)
	assert.Equal(t, 1, last[0].UnreadFor("alice"))
}

func TestUnsubscribeStopsDeliveriesAndIsIdempotent(t *testing.T) {
	server := newPollOnlyBackend(t,
		`{"success":true,"data":[]}`,
		`{"success":true,"data":[]}`)
	defer server.Close()

	log := &deliveryLog[models.MessageView]{}
	unsubscribe := newTestSubscriber(server).SubscribeMessages("c1", log.record)

	require.Eventually(t, func() bool { return log.count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()

	settled := log.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, log.count())
}

func TestFetchFailureDeliversEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"message":"backend down"}`))
	}))
	defer server.Close()

	log := &deliveryLog[models.MessageView]{}
	unsubscribe := newTestSubscriber(server).SubscribeMessages("c1", log.record)
	defer unsubscribe()

	require.Eventually(t, func() bool { return log.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, log.last())
}

func TestPushDeliveriesAndFallbackToPoll(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	wsOpened := make(chan *websocket.Conn, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/ws/"):
			conn, err := upgrader.Upgrade(w, r, nil)
			require.NoError(t, err)
			wsOpened <- conn
		case strings.HasSuffix(r.URL.Path, "/messages"):
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":[{"id":"m1","content":"hey"}]}`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer server.Close()

	log := &deliveryLog[models.MessageView]{}
	unsubscribe := newTestSubscriber(server).SubscribeMessages("c1", log.record)
	defer unsubscribe()

	var serverConn *websocket.Conn
	select {
	case serverConn = <-wsOpened:
	case <-time.After(2 * time.Second):
		t.Fatal("websocket was never dialed")
	}

	// Initial snapshot arrives even in push mode.
	require.Eventually(t, func() bool { return log.count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	// A push event triggers a fresh fetch.
	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message"}`)))
	require.Eventually(t, func() bool { return log.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	// Killing the push channel degrades the subscription to polling.
	serverConn.Close()
	afterClose := log.count()
	require.Eventually(t, func() bool { return log.count() >= afterClose+2 }, 2*time.Second, 5*time.Millisecond)
}

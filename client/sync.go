package client

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"visaconnect/internal/models"
)

// State is the delivery mode of a subscription.
type State int

const (
	// StatePush delivers via a websocket: each server event triggers a fresh
	// fetch whose result replaces the subscriber's list.
	StatePush State = iota
	// StatePoll delivers on a timer. A subscription falls from push to poll
	// at most once, when the websocket dies; it never climbs back.
	StatePoll
	// StateStopped means unsubscribed. No callback fires after this.
	StateStopped
)

const (
	messagePollInterval      = 2 * time.Second
	conversationPollInterval = 5 * time.Second
	fetchTimeout             = 10 * time.Second
)

// Subscriber creates live subscriptions over the chat API. Each subscription
// first tries the server's websocket push channel and silently degrades to
// polling when that is unavailable; callers only ever see the callback and
// the returned unsubscribe func.
type Subscriber struct {
	client *Client
	dialer *websocket.Dialer

	// poll cadences, overridable in tests
	messageInterval      time.Duration
	conversationInterval time.Duration
}

// NewSubscriber builds a Subscriber on top of an API client.
func NewSubscriber(client *Client) *Subscriber {
	return &Subscriber{
		client:               client,
		dialer:               websocket.DefaultDialer,
		messageInterval:      messagePollInterval,
		conversationInterval: conversationPollInterval,
	}
}

// SubscribeMessages streams the message history of one conversation. The
// callback receives the full, oldest-first list each time; every delivery
// replaces the previous one. The returned func unsubscribes and is safe to
// call more than once.
func (s *Subscriber) SubscribeMessages(conversationID string, callback func([]models.MessageView)) func() {
	sub := &subscription[models.MessageView]{
		stop:     make(chan struct{}),
		interval: s.messageInterval,
		fetch: func() ([]models.MessageView, error) {
			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			defer cancel()
			return s.client.GetMessages(ctx, conversationID)
		},
		callback: callback,
	}
	s.begin(sub, "/ws/conversations/"+url.PathEscape(conversationID))
	return sub.unsubscribe
}

// SubscribeConversations streams the caller's inbox, most recent first. Same
// contract as SubscribeMessages.
func (s *Subscriber) SubscribeConversations(callback func([]models.ConversationSummary)) func() {
	sub := &subscription[models.ConversationSummary]{
		stop:     make(chan struct{}),
		interval: s.conversationInterval,
		fetch: func() ([]models.ConversationSummary, error) {
			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			defer cancel()
			return s.client.GetConversations(ctx)
		},
		callback: callback,
	}
	s.begin(sub, "/ws/inbox")
	return sub.unsubscribe
}

func (s *Subscriber) begin(starter subscriptionStarter, wsPath string) {
	conn, err := s.dial(wsPath)
	if err != nil {
		log.Printf("push channel unavailable for %s, polling: %v", wsPath, err)
		starter.startPoll()
		return
	}
	starter.startPush(conn)
}

func (s *Subscriber) dial(wsPath string) (*websocket.Conn, error) {
	wsURL, err := s.client.WebsocketURL(wsPath)
	if err != nil {
		return nil, err
	}
	conn, _, err := s.dialer.Dial(wsURL, nil)
	return conn, err
}

// subscriptionStarter lets begin stay non-generic over the element type.
type subscriptionStarter interface {
	startPush(conn *websocket.Conn)
	startPoll()
}

// subscription is one live stream. The mutex guards state transitions and
// callback delivery, so unsubscribe blocks until an in-flight callback
// finishes and nothing fires afterwards.
type subscription[T any] struct {
	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	stop     chan struct{}
	interval time.Duration
	fetch    func() ([]T, error)
	callback func([]T)
}

func (sub *subscription[T]) startPush(conn *websocket.Conn) {
	sub.mu.Lock()
	sub.state = StatePush
	sub.conn = conn
	sub.mu.Unlock()

	go sub.fetchAndDeliver()
	go sub.readLoop(conn)
}

func (sub *subscription[T]) startPoll() {
	sub.mu.Lock()
	sub.state = StatePoll
	sub.mu.Unlock()

	go sub.pollLoop()
}

// readLoop drains push events. The payload is not trusted as state: each
// event triggers a full fetch so a delivery always replaces the whole list.
func (sub *subscription[T]) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			sub.fallToPoll(err)
			return
		}
		sub.fetchAndDeliver()
	}
}

// fallToPoll downgrades a live push subscription. It is a no-op when the
// subscription already left the push state, so the downgrade happens at most
// once and an unsubscribe-triggered read error does not restart polling.
func (sub *subscription[T]) fallToPoll(cause error) {
	sub.mu.Lock()
	if sub.state != StatePush {
		sub.mu.Unlock()
		return
	}
	sub.state = StatePoll
	conn := sub.conn
	sub.conn = nil
	sub.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	log.Printf("push channel lost, polling: %v", cause)
	go sub.pollLoop()
}

// pollLoop fetches on a cadence. The next cycle is scheduled only after the
// previous fetch completes, so a slow backend cannot stack requests.
func (sub *subscription[T]) pollLoop() {
	for {
		sub.fetchAndDeliver()
		select {
		case <-sub.stop:
			return
		case <-time.After(sub.interval):
		}
	}
}

func (sub *subscription[T]) fetchAndDeliver() {
	items, err := sub.fetch()
	if err != nil {
		log.Printf("subscription fetch failed: %v", err)
		items = nil
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.state == StateStopped {
		return
	}
	sub.callback(items)
}

func (sub *subscription[T]) unsubscribe() {
	sub.mu.Lock()
	if sub.state == StateStopped {
		sub.mu.Unlock()
		return
	}
	sub.state = StateStopped
	conn := sub.conn
	sub.conn = nil
	close(sub.stop)
	sub.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

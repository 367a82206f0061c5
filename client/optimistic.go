package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"visaconnect/internal/models"
)

// MessageEntry is one row in a rendered conversation: either a confirmed
// server message or an optimistic local echo still waiting for the server.
// The two cases are distinguished by the tag, not by inspecting id fields.
type MessageEntry struct {
	pending bool
	localID string
	message models.MessageView
}

// Confirmed wraps a server message.
func Confirmed(message models.MessageView) MessageEntry {
	return MessageEntry{message: message}
}

// PendingEntry wraps a local echo under its client-assigned local id.
func PendingEntry(localID string, message models.MessageView) MessageEntry {
	return MessageEntry{pending: true, localID: localID, message: message}
}

// Pending reports whether the entry is still awaiting server confirmation.
func (e MessageEntry) Pending() bool { return e.pending }

// LocalID returns the client-assigned id of a pending entry, empty for
// confirmed ones.
func (e MessageEntry) LocalID() string { return e.localID }

// Message returns the entry's payload.
func (e MessageEntry) Message() models.MessageView { return e.message }

// ChatView maintains the rendered state of one open conversation: the
// server's confirmed history plus locally-echoed sends. Confirmed entries
// come only from subscription deliveries; pending entries are appended on
// send and resolved per send, so concurrent sends never disturb each other.
type ChatView struct {
	client         *Client
	conversationID string
	receiverID     string

	mu        sync.Mutex
	confirmed []MessageEntry
	outbox    []MessageEntry
	onChange  func([]MessageEntry)
}

// NewChatView builds the view for one conversation. onChange receives the
// full entry list after every change; nil is allowed.
func NewChatView(client *Client, conversationID, receiverID string, onChange func([]MessageEntry)) *ChatView {
	return &ChatView{
		client:         client,
		conversationID: conversationID,
		receiverID:     receiverID,
		onChange:       onChange,
	}
}

// Open subscribes the view to the conversation's message stream and returns
// the unsubscribe func.
func (v *ChatView) Open(subscriber *Subscriber) func() {
	return subscriber.SubscribeMessages(v.conversationID, v.applyServerList)
}

// applyServerList replaces the confirmed portion of the view. Pending
// entries survive the swap until their own send resolves; a confirmed echo
// is retired once the server list carries its message id.
func (v *ChatView) applyServerList(messages []models.MessageView) {
	entries := make([]MessageEntry, 0, len(messages))
	serverIDs := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		entries = append(entries, Confirmed(m))
		serverIDs[m.ID] = struct{}{}
	}

	v.mu.Lock()
	v.confirmed = entries
	kept := v.outbox[:0]
	for _, entry := range v.outbox {
		if _, ok := serverIDs[entry.message.ID]; !entry.pending && ok {
			continue
		}
		kept = append(kept, entry)
	}
	v.outbox = kept
	v.notifyLocked()
	v.mu.Unlock()
}

// Send posts a message with an optimistic local echo. The echo appears
// immediately; on success its local id is swapped for the server id in
// place, on failure exactly that echo is removed and the error returned.
func (v *ChatView) Send(ctx context.Context, content string) error {
	localID := uuid.NewString()
	echo := models.MessageView{Message: models.Message{
		ConversationID: v.conversationID,
		SenderID:       v.client.Session().UserID(),
		ReceiverID:     v.receiverID,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}}

	v.mu.Lock()
	v.outbox = append(v.outbox, PendingEntry(localID, echo))
	v.notifyLocked()
	v.mu.Unlock()

	messageID, err := v.client.SendMessage(ctx, v.conversationID, v.receiverID, content)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.removePendingLocked(localID)
		v.notifyLocked()
		return err
	}
	v.confirmPendingLocked(localID, messageID)
	v.notifyLocked()
	return nil
}

// Entries snapshots the current list: confirmed history first, pending
// echoes after it in send order.
func (v *ChatView) Entries() []MessageEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.entriesLocked()
}

func (v *ChatView) entriesLocked() []MessageEntry {
	entries := make([]MessageEntry, 0, len(v.confirmed)+len(v.outbox))
	entries = append(entries, v.confirmed...)
	entries = append(entries, v.outbox...)
	return entries
}

func (v *ChatView) confirmPendingLocked(localID, messageID string) {
	for i, entry := range v.outbox {
		if entry.localID == localID {
			msg := entry.message
			msg.ID = messageID
			v.outbox[i] = Confirmed(msg)
			return
		}
	}
}

func (v *ChatView) removePendingLocked(localID string) {
	for i, entry := range v.outbox {
		if entry.localID == localID {
			v.outbox = append(v.outbox[:i], v.outbox[i+1:]...)
			return
		}
	}
}

func (v *ChatView) notifyLocked() {
	if v.onChange != nil {
		v.onChange(v.entriesLocked())
	}
}

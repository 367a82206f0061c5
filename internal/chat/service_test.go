package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"visaconnect/internal/mocks"
	"visaconnect/internal/models"
	"visaconnect/internal/repositories"
)

func TestGetOrCreateConversationLooksUpCanonicalPair(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	service := NewService(conversations, new(mocks.MessageRepositoryMock))

	existing := models.Conversation{ID: "c1", Participants: []string{"alice", "bob"}}
	conversations.On("FindByParticipants", mock.Anything, []string{"alice", "bob"}).Return(existing, nil).Twice()

	got, err := service.GetOrCreateConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID)

	// Reversed argument order resolves to the same conversation.
	got, err = service.GetOrCreateConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID)

	conversations.AssertExpectations(t)
}

func TestGetOrCreateConversationCreatesWhenAbsent(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	service := NewService(conversations, new(mocks.MessageRepositoryMock))

	pair := []string{"alice", "bob"}
	conversations.On("FindByParticipants", mock.Anything, pair).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()
	conversations.On("Create", mock.Anything, pair).Return(models.Conversation{ID: "c2", Participants: pair}, nil).Once()

	got, err := service.GetOrCreateConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, "c2", got.ID)
	conversations.AssertExpectations(t)
}

func TestGetOrCreateConversationRejectsSelf(t *testing.T) {
	service := NewService(new(mocks.ConversationRepositoryMock), new(mocks.MessageRepositoryMock))

	_, err := service.GetOrCreateConversation(context.Background(), "alice", "alice")
	require.ErrorIs(t, err, ErrSameParticipant)

	_, err = service.GetOrCreateConversation(context.Background(), "", "alice")
	require.ErrorIs(t, err, ErrSameParticipant)
}

func TestGetOrCreateConversationPropagatesLookupError(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	service := NewService(conversations, new(mocks.MessageRepositoryMock))

	conversations.On("FindByParticipants", mock.Anything, mock.Anything).Return(models.Conversation{}, assert.AnError).Once()

	_, err := service.GetOrCreateConversation(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, assert.AnError)
	conversations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendMessageSetsReceiverUnreadToOne(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	service := NewService(conversations, messages)

	conversation := models.Conversation{
		ID:           "c1",
		Participants: []string{"alice", "bob"},
		// An already-unread conversation stays at 1, the counter is set,
		// not incremented.
		UnreadCount: map[string]int{"bob": 1},
	}
	stored := models.Message{ID: "m1", ConversationID: "c1", SenderID: "alice", ReceiverID: "bob", Content: "hi", Timestamp: time.Now()}

	conversations.On("Get", mock.Anything, "c1").Return(conversation, nil).Once()
	messages.On("Append", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.SenderID == "alice" && m.ReceiverID == "bob" && m.Content == "hi"
	})).Return(stored, nil).Once()
	conversations.On("UpdateSummary", mock.Anything, "c1", stored, 1).Return(nil).Once()

	got, err := service.SendMessage(context.Background(), "c1", "alice", "bob", "hi")
	require.NoError(t, err)
	require.Equal(t, "m1", got.ID)
	conversations.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestSendMessageSelfSendLeavesUnreadZero(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	service := NewService(conversations, messages)

	conversation := models.Conversation{ID: "c1", Participants: []string{"alice", "bob"}}
	stored := models.Message{ID: "m2", ConversationID: "c1", SenderID: "alice", ReceiverID: "alice", Content: "note"}

	conversations.On("Get", mock.Anything, "c1").Return(conversation, nil).Once()
	messages.On("Append", mock.Anything, mock.Anything).Return(stored, nil).Once()
	conversations.On("UpdateSummary", mock.Anything, "c1", stored, 0).Return(nil).Once()

	_, err := service.SendMessage(context.Background(), "c1", "alice", "alice", "note")
	require.NoError(t, err)
	conversations.AssertExpectations(t)
}

func TestSendMessageValidation(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	service := NewService(conversations, new(mocks.MessageRepositoryMock))

	_, err := service.SendMessage(context.Background(), "c1", "alice", "bob", "   ")
	require.ErrorIs(t, err, ErrEmptyContent)

	conversation := models.Conversation{ID: "c1", Participants: []string{"alice", "bob"}}
	conversations.On("Get", mock.Anything, "c1").Return(conversation, nil).Once()

	_, err = service.SendMessage(context.Background(), "c1", "mallory", "bob", "hi")
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestSendMessagePropagatesWriteErrors(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	service := NewService(conversations, messages)

	conversation := models.Conversation{ID: "c1", Participants: []string{"alice", "bob"}}

	conversations.On("Get", mock.Anything, "c1").Return(conversation, nil).Twice()
	messages.On("Append", mock.Anything, mock.Anything).Return(models.Message{}, assert.AnError).Once()

	_, err := service.SendMessage(context.Background(), "c1", "alice", "bob", "hi")
	require.ErrorIs(t, err, assert.AnError)

	// Append succeeds but the summary write fails: the error surfaces even
	// though the message is already stored.
	stored := models.Message{ID: "m3", ConversationID: "c1", SenderID: "alice", ReceiverID: "bob", Content: "hi"}
	messages.On("Append", mock.Anything, mock.Anything).Return(stored, nil).Once()
	conversations.On("UpdateSummary", mock.Anything, "c1", stored, 1).Return(assert.AnError).Once()

	_, err = service.SendMessage(context.Background(), "c1", "alice", "bob", "hi")
	require.ErrorIs(t, err, assert.AnError)
}

func TestReadPathsDegradeToEmpty(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	service := NewService(conversations, messages)

	messages.On("ListByConversation", mock.Anything, "c1").Return(([]models.Message)(nil), assert.AnError).Once()
	conversations.On("ListForUser", mock.Anything, "alice").Return(([]models.Conversation)(nil), assert.AnError).Twice()

	got := service.GetConversationMessages(context.Background(), "c1", "alice")
	assert.Empty(t, got)

	list := service.GetUserConversations(context.Background(), "alice")
	assert.Empty(t, list)

	assert.Zero(t, service.GetUnreadCount(context.Background(), "alice"))
}

func TestGetUnreadCountSumsCounters(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	service := NewService(conversations, new(mocks.MessageRepositoryMock))

	list := []models.Conversation{
		{ID: "c1", UnreadCount: map[string]int{"alice": 1, "bob": 4}},
		{ID: "c2", UnreadCount: map[string]int{"alice": 1}},
		{ID: "c3"},
	}
	conversations.On("ListForUser", mock.Anything, "alice").Return(list, nil).Once()

	require.Equal(t, 2, service.GetUnreadCount(context.Background(), "alice"))
}

func TestMarkMessagesAsReadZeroesCounter(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	service := NewService(conversations, new(mocks.MessageRepositoryMock))

	conversations.On("SetUnread", mock.Anything, "c1", "alice", 0).Return(nil).Once()

	require.NoError(t, service.MarkMessagesAsRead(context.Background(), "c1", "alice"))
	conversations.AssertExpectations(t)
}

func TestRebuildSummaryRepairsStaleSummary(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	service := NewService(conversations, messages)

	latest := models.Message{ID: "m9", ConversationID: "c1", SenderID: "alice", ReceiverID: "bob", Content: "latest"}
	conversation := models.Conversation{
		ID:           "c1",
		Participants: []string{"alice", "bob"},
		UnreadCount:  map[string]int{"bob": 1},
	}

	messages.On("Latest", mock.Anything, "c1").Return(latest, nil).Once()
	conversations.On("Get", mock.Anything, "c1").Return(conversation, nil).Once()
	// Stored unread counter is preserved, not recomputed.
	conversations.On("UpdateSummary", mock.Anything, "c1", latest, 1).Return(nil).Once()

	require.NoError(t, service.RebuildSummary(context.Background(), "c1"))
	conversations.AssertExpectations(t)
}

func TestRebuildSummaryNoMessagesIsNoop(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	service := NewService(conversations, messages)

	messages.On("Latest", mock.Anything, "c1").Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	require.NoError(t, service.RebuildSummary(context.Background(), "c1"))
	conversations.AssertNotCalled(t, "UpdateSummary", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFirstContactFlow(t *testing.T) {
	conversations := new(mocks.ConversationRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	service := NewService(conversations, messages)

	pair := []string{"alice", "bob"}
	created := models.Conversation{ID: "c1", Participants: pair, UnreadCount: map[string]int{"alice": 0, "bob": 0}}

	conversations.On("FindByParticipants", mock.Anything, pair).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()
	conversations.On("Create", mock.Anything, pair).Return(created, nil).Once()

	conversation, err := service.GetOrCreateConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)

	stored := models.Message{ID: "m1", ConversationID: conversation.ID, SenderID: "alice", ReceiverID: "bob", Content: "hello bob"}
	conversations.On("Get", mock.Anything, conversation.ID).Return(created, nil).Once()
	messages.On("Append", mock.Anything, mock.Anything).Return(stored, nil).Once()
	conversations.On("UpdateSummary", mock.Anything, conversation.ID, stored, 1).Return(nil).Once()

	msg, err := service.SendMessage(context.Background(), conversation.ID, "alice", "bob", "hello bob")
	require.NoError(t, err)
	require.Equal(t, "m1", msg.ID)

	// Bob's side now lists the conversation with one unread; reading it
	// zeroes his counter.
	withUnread := created
	withUnread.LastMessage = &stored
	withUnread.UnreadCount = map[string]int{"alice": 0, "bob": 1}
	conversations.On("ListForUser", mock.Anything, "bob").Return([]models.Conversation{withUnread}, nil).Once()
	require.Equal(t, 1, service.GetUnreadCount(context.Background(), "bob"))

	conversations.On("SetUnread", mock.Anything, conversation.ID, "bob", 0).Return(nil).Once()
	require.NoError(t, service.MarkMessagesAsRead(context.Background(), conversation.ID, "bob"))

	conversations.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestSortedPair(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SortedPair("b", "a"))
	assert.Equal(t, []string{"a", "b"}, SortedPair("a", "b"))
}

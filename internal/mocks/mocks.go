package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"visaconnect/internal/events"
	"visaconnect/internal/identity"
	"visaconnect/internal/models"
	"visaconnect/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) FindByParticipants(ctx context.Context, participants []string) (models.Conversation, error) {
	args := m.Called(ctx, participants)
	var conversation models.Conversation
	if val := args.Get(0); val != nil {
		conversation = val.(models.Conversation)
	}
	return conversation, args.Error(1)
}

func (m *ConversationRepositoryMock) Create(ctx context.Context, participants []string) (models.Conversation, error) {
	args := m.Called(ctx, participants)
	var conversation models.Conversation
	if val := args.Get(0); val != nil {
		conversation = val.(models.Conversation)
	}
	return conversation, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conversation models.Conversation
	if val := args.Get(0); val != nil {
		conversation = val.(models.Conversation)
	}
	return conversation, args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) UpdateSummary(ctx context.Context, conversationID string, last models.Message, receiverUnread int) error {
	args := m.Called(ctx, conversationID, last, receiverUnread)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) SetUnread(ctx context.Context, conversationID string, userID string, count int) error {
	args := m.Called(ctx, conversationID, userID, count)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Latest(ctx context.Context, conversationID string) (models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Create(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var created models.User
	if val := args.Get(0); val != nil {
		created = val.(models.User)
	}
	return created, args.Error(1)
}

func (m *UserRepositoryMock) Get(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetMany(ctx context.Context, userIDs []string) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) Update(ctx context.Context, userID string, updates map[string]any) (models.User, error) {
	args := m.Called(ctx, userID, updates)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) List(ctx context.Context, excludeUserID string) ([]models.User, error) {
	args := m.Called(ctx, excludeUserID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type BusinessRepositoryMock struct {
	mock.Mock
}

func (m *BusinessRepositoryMock) Create(ctx context.Context, b models.Business) (models.Business, error) {
	args := m.Called(ctx, b)
	var created models.Business
	if val := args.Get(0); val != nil {
		created = val.(models.Business)
	}
	return created, args.Error(1)
}

func (m *BusinessRepositoryMock) Get(ctx context.Context, businessID string) (models.Business, error) {
	args := m.Called(ctx, businessID)
	var b models.Business
	if val := args.Get(0); val != nil {
		b = val.(models.Business)
	}
	return b, args.Error(1)
}

func (m *BusinessRepositoryMock) List(ctx context.Context, ownerUserID, city string) ([]models.Business, error) {
	args := m.Called(ctx, ownerUserID, city)
	var listings []models.Business
	if val := args.Get(0); val != nil {
		listings = val.([]models.Business)
	}
	return listings, args.Error(1)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) VerifyToken(ctx context.Context, token string) (identity.Identity, error) {
	args := m.Called(ctx, token)
	var id identity.Identity
	if val := args.Get(0); val != nil {
		id = val.(identity.Identity)
	}
	return id, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	args := m.Called(ctx, routingKey, message, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.BusinessRepository = (*BusinessRepositoryMock)(nil)
var _ identity.Verifier = (*VerifierMock)(nil)
var _ events.Publisher = (*PublisherMock)(nil)

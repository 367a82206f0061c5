package repositories

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"visaconnect/internal/docstore"
	"visaconnect/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindByParticipants(ctx context.Context, participants []string) (models.Conversation, error)
	Create(ctx context.Context, participants []string) (models.Conversation, error)
	Get(ctx context.Context, conversationID string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	UpdateSummary(ctx context.Context, conversationID string, last models.Message, receiverUnread int) error
	SetUnread(ctx context.Context, conversationID string, userID string, count int) error
}

type conversationDoc struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	models.Conversation `bson:",inline"`
}

func (d conversationDoc) toModel() models.Conversation {
	c := d.Conversation
	c.ID = d.ID.Hex()
	return c
}

// ConversationRepo is a mongo implementation of ConversationRepository.
type ConversationRepo struct {
	coll *mongo.Collection

	// find is the query seam ListForUser goes through; tests stub it to
	// drive the ordered-query fallback without a live store.
	find func(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Conversation, error)
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(database *mongo.Database) *ConversationRepo {
	r := &ConversationRepo{coll: database.Collection(docstore.ConversationsCollection)}
	r.find = r.findConversations
	return r
}

// FindByParticipants looks up the conversation whose participants equal the
// given sorted pair. Callers sort the pair; lookup is an exact array match.
func (r *ConversationRepo) FindByParticipants(ctx context.Context, participants []string) (models.Conversation, error) {
	var doc conversationDoc
	err := r.coll.FindOne(ctx, bson.M{"participants": participants}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return doc.toModel(), nil
}

// Create inserts a new conversation with zeroed unread counters for both
// participants.
func (r *ConversationRepo) Create(ctx context.Context, participants []string) (models.Conversation, error) {
	now := time.Now().UTC()
	conversation := models.Conversation{
		Participants: participants,
		UnreadCount:  map[string]int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, p := range participants {
		conversation.UnreadCount[p] = 0
	}

	res, err := r.coll.InsertOne(ctx, conversationDoc{Conversation: conversation})
	if err != nil {
		return models.Conversation{}, err
	}
	conversation.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return conversation, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return models.Conversation{}, ErrConversationNotFound
	}

	var doc conversationDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return doc.toModel(), nil
}

// ListForUser returns the user's conversations ordered by lastMessageTime
// descending. The primary path is the indexed ordered query; when that query
// fails (the composite index may be absent in some deployments) it falls back
// to the equality-only query and sorts in memory. A missing index must never
// surface as an error.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	filter := bson.M{"participants": userID}

	ordered, err := r.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "lastMessageTime", Value: -1}}).
		SetAllowDiskUse(false))
	if err == nil {
		return ordered, nil
	}
	log.Printf("ordered conversation query failed, using fallback sort: %v", err)

	unordered, err := r.find(ctx, filter, nil)
	if err != nil {
		return nil, err
	}
	sortByLastMessageDesc(unordered)
	return unordered, nil
}

// sortByLastMessageDesc orders conversations most-recent first, matching the
// indexed query. Conversations without a last message sort to the end; ties
// keep their relative order.
func sortByLastMessageDesc(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return lastMessageMillis(conversations[i]) > lastMessageMillis(conversations[j])
	})
}

func (r *ConversationRepo) findConversations(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Conversation, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = r.coll.Find(ctx, filter, opts)
	} else {
		cursor, err = r.coll.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(docs))
	for _, doc := range docs {
		conversations = append(conversations, doc.toModel())
	}
	return conversations, nil
}

func lastMessageMillis(c models.Conversation) int64 {
	if c.LastMessageTime == nil {
		return 0
	}
	return c.LastMessageTime.UnixMilli()
}

// UpdateSummary denormalizes the latest message onto the conversation and
// sets (not increments) the receiver's unread counter. This is the second
// write of the non-atomic append+summary pair; a crash in between leaves the
// summary stale, which RebuildSummary reconciles.
func (r *ConversationRepo) UpdateSummary(ctx context.Context, conversationID string, last models.Message, receiverUnread int) error {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return ErrConversationNotFound
	}

	update := bson.M{"$set": bson.M{
		"lastMessage":                   last,
		"lastMessageTime":               last.Timestamp,
		"updatedAt":                     time.Now().UTC(),
		"unreadCount." + last.ReceiverID: receiverUnread,
	}}
	res, err := r.coll.UpdateByID(ctx, oid, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SetUnread sets one participant's unread counter. Other participants'
// counters are untouched.
func (r *ConversationRepo) SetUnread(ctx context.Context, conversationID string, userID string, count int) error {
	oid, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return ErrConversationNotFound
	}

	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"unreadCount." + userID: count}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

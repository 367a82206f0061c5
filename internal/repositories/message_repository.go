package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"visaconnect/internal/docstore"
	"visaconnect/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	Latest(ctx context.Context, conversationID string) (models.Message, error)
}

type messageDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	models.Message `bson:",inline"`
}

func (d messageDoc) toModel() models.Message {
	m := d.Message
	m.ID = d.ID.Hex()
	return m
}

// MessageRepo is a mongo implementation of MessageRepository.
type MessageRepo struct {
	coll *mongo.Collection
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(database *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: database.Collection(docstore.MessagesCollection)}
}

// Append stores a message with a server-assigned timestamp. Messages are
// immutable after this point.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	msg.Timestamp = time.Now().UTC()
	msg.Read = false

	res, err := r.coll.InsertOne(ctx, messageDoc{Message: msg})
	if err != nil {
		return models.Message{}, err
	}
	msg.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return msg, nil
}

// ListByConversation returns the full message history ordered by timestamp
// ascending. No pagination: history volumes are expected to stay small.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	cursor, err := r.coll.Find(ctx,
		bson.M{"conversationId": conversationID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, doc.toModel())
	}
	return msgs, nil
}

// Latest returns the most recent message in the conversation.
func (r *MessageRepo) Latest(ctx context.Context, conversationID string) (models.Message, error) {
	var doc messageDoc
	err := r.coll.FindOne(ctx,
		bson.M{"conversationId": conversationID},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return doc.toModel(), nil
}

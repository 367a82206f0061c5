package docstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ConversationsCollection = "conversations"
	MessagesCollection      = "messages"
)

// Connect opens the mongo client and ensures the collections' indexes exist.
// Index creation is best effort: the repositories are required to keep
// working when the ordered-query index is missing.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	database := client.Database(dbName)
	ensureIndexes(ctx, database)
	return database, nil
}

func ensureIndexes(ctx context.Context, database *mongo.Database) {
	indexes := map[string][]mongo.IndexModel{
		ConversationsCollection: {
			{Keys: bson.D{{Key: "participants", Value: 1}}},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastMessageTime", Value: -1}}},
		},
		MessagesCollection: {
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			log.Printf("docstore index creation skipped coll=%s: %v", coll, err)
		}
	}
}

package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voxhall/voxhall/domain/entities"
	"github.com/voxhall/voxhall/domain/repositories"
)

// MongoSink persists chamber transcripts in a MongoDB collection, one
// document per message.
type MongoSink struct {
	collection *mongo.Collection
}

var _ repositories.TranscriptSink = (*MongoSink)(nil)

// NewMongoSink creates a transcript sink over the given database.
func NewMongoSink(db *mongo.Database) *MongoSink {
	return &MongoSink{
		collection: db.Collection("chamber_messages"),
	}
}

// Append inserts a message at the end of its chamber's transcript.
func (s *MongoSink) Append(ctx context.Context, msg entities.ChamberMessage) error {
	if msg.ID == "" || msg.ChamberID == "" {
		return errors.New("message id and chamber id are required")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	if _, err := s.collection.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// UpdateContent replaces the content of a still-streaming message.
func (s *MongoSink) UpdateContent(ctx context.Context, messageID string, content string) error {
	return s.update(ctx, messageID, bson.M{"content": content})
}

// Finalize freezes a message with its full content.
func (s *MongoSink) Finalize(ctx context.Context, messageID string, content string) error {
	return s.update(ctx, messageID, bson.M{"content": content, "is_streaming": false})
}

// Recent returns up to limit messages for a chamber in chronological
// order, ending with the newest.
func (s *MongoSink) Recent(ctx context.Context, chamberID string, limit int) ([]entities.ChamberMessage, error) {
	opts := options.Find().SetSort(bson.M{"timestamp": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{"chamber_id": chamberID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript for chamber %s: %w", chamberID, err)
	}
	defer cursor.Close(ctx)

	var msgs []entities.ChamberMessage
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}

	// The query sorts newest-first to honor the limit; flip back to
	// chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Drop deletes a chamber's entire transcript.
func (s *MongoSink) Drop(ctx context.Context, chamberID string) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{"chamber_id": chamberID}); err != nil {
		return fmt.Errorf("failed to drop transcript for chamber %s: %w", chamberID, err)
	}
	return nil
}

func (s *MongoSink) update(ctx context.Context, messageID string, set bson.M) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": messageID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("message %s: %w", messageID, ErrMessageNotFound)
	}
	return nil
}

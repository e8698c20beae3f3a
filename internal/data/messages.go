package data

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// SaveMessage inserts a message document and returns the saved record with
// its generated id populated. file, when non-nil, is the stored filename.
// Messages are persisted regardless of whether the recipient is connected;
// offline recipients pick them up through GetConversation on the next login.
func (m *MessagesStore) SaveMessage(ctx context.Context, sender, recipient, text string, file *string) (*Message, error) {
	msg := &Message{
		Sender:    sender,
		Recipient: recipient,
		Text:      text,
		File:      file,
		CreatedAt: time.Now(),
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}

	// Extract MongoDB's auto-generated _id; the relay includes it in the
	// delivery payload so clients can de-duplicate against fetched history.
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// GetConversation returns all messages exchanged between two users, in both
// directions, ordered oldest first.
func (m *MessagesStore) GetConversation(ctx context.Context, userA, userB string) ([]*Message, error) {
	opts := options.Find().SetSort(bson.M{"created_at": 1})

	// Either direction of the pair counts as part of the conversation.
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender": userA, "recipient": userB},
			bson.M{"sender": userB, "recipient": userA},
		},
	}

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

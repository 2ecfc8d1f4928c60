package dbmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gochat/internal/chat/models"
	"gochat/internal/chat/repository"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	countersCollection      = "counters"

	messageSequenceKey = "messages"
)

// ChatStorage implements repository.ChatRepository on MongoDB. Message ids
// come from an atomic counter document so they follow insertion order.
type ChatStorage struct {
	client        *mongo.Client
	conversations *mongo.Collection
	messages      *mongo.Collection
	counters      *mongo.Collection
}

var _ repository.ChatRepository = (*ChatStorage)(nil)

func NewChatStorage(mongoClient *MongoClient) *ChatStorage {
	db := mongoClient.Database
	return &ChatStorage{
		client:        mongoClient.Client,
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
		counters:      db.Collection(countersCollection),
	}
}

// EnsureIndexes creates the unique pair index and the history index.
func (s *ChatStorage) EnsureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "participant_a", Value: 1}, {Key: "participant_b", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_conversation_pair"),
	})
	if err != nil {
		return fmt.Errorf("create conversation pair index: %w", err)
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: 1},
			{Key: "seq", Value: 1},
		},
		Options: options.Index().SetName("idx_messages_conversation_created"),
	})
	if err != nil {
		return fmt.Errorf("create message history index: %w", err)
	}
	return nil
}

func (s *ChatStorage) FindConversationByPair(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"participant_a": userA, "participant_b": userB},
		bson.M{"participant_a": userB, "participant_b": userA},
	}}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})

	var conv models.Conversation
	err := s.conversations.FindOne(ctx, filter, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ChatStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	conv.CreatedAt = conv.CreatedAt.Truncate(time.Millisecond)
	conv.UpdatedAt = conv.UpdatedAt.Truncate(time.Millisecond)

	_, err := s.conversations.InsertOne(ctx, conv)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (s *ChatStorage) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *ChatStorage) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	at = at.Truncate(time.Millisecond)
	_, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": conversationID, "updated_at": bson.M{"$lt": at}},
		bson.M{"$set": bson.M{"updated_at": at}},
	)
	return err
}

// Save stamps the message from the server clock. Sequence and timestamp come
// from one atomic counter update, so CreatedAt never decreases as seq grows.
func (s *ChatStorage) Save(ctx context.Context, msg *models.Message) error {
	n, err := s.conversations.CountDocuments(ctx, bson.M{"_id": msg.ConversationID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}

	c, err := s.nextSequence(ctx)
	if err != nil {
		return fmt.Errorf("allocate message id: %w", err)
	}
	msg.ID = c.Seq
	msg.CreatedAt = c.At.UTC().Truncate(time.Millisecond)

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		msg.ID = 0
		msg.CreatedAt = time.Time{}
		return err
	}
	return nil
}

func (s *ChatStorage) FetchHistory(ctx context.Context, conversationID string) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}})

	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := make([]*models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *ChatStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

type counter struct {
	ID  string    `bson:"_id"`
	Seq uint64    `bson:"seq"`
	At  time.Time `bson:"at"`
}

// nextSequence bumps seq and moves at to the server's $$NOW, never backwards.
func (s *ChatStorage) nextSequence(ctx context.Context) (counter, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "seq", Value: bson.D{{Key: "$add", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$seq", 0}}}, int64(1),
		}}}},
		{Key: "at", Value: bson.D{{Key: "$max", Value: bson.A{"$at", "$$NOW"}}}},
	}}}}

	var c counter
	err := s.counters.FindOneAndUpdate(ctx, bson.M{"_id": messageSequenceKey}, update, opts).Decode(&c)
	// two first-ever upserts can race on the counter _id; the loser retries as a plain update
	if mongo.IsDuplicateKeyError(err) {
		err = s.counters.FindOneAndUpdate(ctx, bson.M{"_id": messageSequenceKey}, update, opts).Decode(&c)
	}
	if err != nil {
		return counter{}, err
	}
	return c, nil
}

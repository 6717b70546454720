package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/chatnova/backend/internal/models"
)

const collectionName = "chats"

// MongoStore persists conversations as single documents with the message
// sequence embedded. There is no append primitive: every mutation writes the
// full messages array back, so two concurrent writers on the same
// conversation can lose one writer's update. That is the documented contract
// of this store, not an accident; do not add conditional writes here.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{coll: client.Database(dbName).Collection(collectionName)}
}

type conversationDoc struct {
	ID        bson.ObjectID    `bson:"_id,omitempty"`
	UserID    string           `bson:"user_id"`
	Title     string           `bson:"title"`
	Messages  []models.Message `bson:"messages"`
	CreatedAt time.Time        `bson:"created_at"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

func (d *conversationDoc) toModel() *models.Conversation {
	msgs := d.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	return &models.Conversation{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Title:     d.Title,
		Messages:  msgs,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (s *MongoStore) Create(ctx context.Context, ownerID, title string) (string, error) {
	now := time.Now().UTC()
	doc := conversationDoc{
		UserID:    ownerID,
		Title:     title,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("%w: insert conversation: %w", models.ErrExternalService, err)
	}

	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("%w: unexpected inserted id type %T", models.ErrExternalService, res.InsertedID)
	}
	return id.Hex(), nil
}

func (s *MongoStore) List(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	filter := bson.M{"user_id": ownerID}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %w", models.ErrExternalService, err)
	}
	defer cursor.Close(ctx)

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode conversations: %w", models.ErrExternalService, err)
	}

	conversations := make([]models.Conversation, 0, len(docs))
	for i := range docs {
		conversations = append(conversations, *docs[i].toModel())
	}
	return conversations, nil
}

func (s *MongoStore) FetchByID(ctx context.Context, id string) (*models.Conversation, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrNotFound
	}

	var doc conversationDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%w: fetch conversation: %w", models.ErrExternalService, err)
	}
	return doc.toModel(), nil
}

// ReplaceMessages overwrites the full message sequence and bumps updated_at.
// The write is unconditional; whatever was stored between the caller's read
// and this write is discarded.
func (s *MongoStore) ReplaceMessages(ctx context.Context, id string, messages []models.Message) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrNotFound
	}
	if messages == nil {
		messages = []models.Message{}
	}

	update := bson.M{"$set": bson.M{
		"messages":   messages,
		"updated_at": time.Now().UTC(),
	}}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("%w: replace messages: %w", models.ErrExternalService, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrNotFound
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("%w: delete conversation: %w", models.ErrExternalService, err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

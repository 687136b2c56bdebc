package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iago/feed-agent-back/internal/domain"
)

type mongoCheckpoint struct {
	ThreadID  string    `bson:"_id"`
	State     string    `bson:"state"`
	Turns     int       `bson:"turns"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per thread with the state as a JSON string,
// so the stored shape matches the other backends byte for byte.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(collection *mongo.Collection) (*MongoStore, error) {
	if collection == nil {
		return nil, errors.New("mongo collection is required")
	}
	return &MongoStore{collection: collection}, nil
}

func (s *MongoStore) Load(ctx context.Context, threadID string) (*domain.ConversationState, error) {
	if err := validateThreadID(threadID); err != nil {
		return nil, err
	}
	var document mongoCheckpoint
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: threadID}}).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find checkpoint: %w", err)
	}
	return decodeState([]byte(document.State))
}

func (s *MongoStore) Save(ctx context.Context, state *domain.ConversationState) error {
	encoded, err := encodeState(state)
	if err != nil {
		return err
	}
	document := mongoCheckpoint{
		ThreadID:  state.ThreadID,
		State:     string(encoded),
		Turns:     state.Turns,
		UpdatedAt: state.UpdatedAt,
	}
	if document.UpdatedAt.IsZero() {
		document.UpdatedAt = time.Now().UTC()
	}

	_, err = s.collection.ReplaceOne(
		ctx,
		bson.D{{Key: "_id", Value: state.ThreadID}},
		document,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

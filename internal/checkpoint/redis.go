package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iago/feed-agent-back/internal/domain"
)

type RedisConfig struct {
	Prefix string
	// TTL expires idle threads; zero keeps them forever.
	TTL time.Duration
}

// RedisStore keeps each thread as one JSON value under Prefix+threadID.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "feed_agent:checkpoint:"
	}
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStore) Load(ctx context.Context, threadID string) (*domain.ConversationState, error) {
	if err := validateThreadID(threadID); err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return decodeState(raw)
}

func (s *RedisStore) Save(ctx context.Context, state *domain.ConversationState) error {
	encoded, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(state.ThreadID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}

func (s *RedisStore) key(threadID string) string {
	return s.prefix + threadID
}

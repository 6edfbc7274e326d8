package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spooky-finn/go-polymarket-session/domain"
)

const sessionKeyPrefix = "clob:session:"

// RedisStore is the durable session checkpoint cache. Records never expire
// by default; pass a TTL to bound how long a partial bootstrap may resume.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, accountID string) (*domain.TradingSession, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+accountID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session checkpoint: %w", err)
	}

	session := &domain.TradingSession{}
	if err := json.Unmarshal([]byte(data), session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session checkpoint: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Put(ctx context.Context, session *domain.TradingSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session checkpoint: %w", err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+session.AccountID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session checkpoint: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, accountID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+accountID).Err(); err != nil {
		return fmt.Errorf("failed to delete session checkpoint: %w", err)
	}
	return nil
}

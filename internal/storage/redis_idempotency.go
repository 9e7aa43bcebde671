package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "mailworker:sent:"

// RedisIdempotencyStore keeps sent correlation ids as Redis keys with a TTL,
// so every worker sharing the Redis instance sees the same set.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisIdempotencyStore returns a store keeping ids for ttl.
func NewRedisIdempotencyStore(client redis.UniversalClient, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) IsSent(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, idempotencyKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("checking sent key for %s: %w", id, err)
	}
	return n > 0, nil
}

// MarkSent records id. SET NX keeps the first write's expiry when two
// workers race on a redelivered message.
func (s *RedisIdempotencyStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	if err := s.client.SetNX(ctx, idempotencyKey(id), time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return fmt.Errorf("setting sent key for %s: %w", id, err)
	}
	return nil
}

func idempotencyKey(id uuid.UUID) string {
	return idempotencyKeyPrefix + id.String()
}

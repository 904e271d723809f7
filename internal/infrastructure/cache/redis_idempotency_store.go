package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const eventKeyPrefix = "settlement:event:"

// RedisIdempotencyStore shares processed event ids across instances.
// The client is owned by the caller; Close does not close it.
type RedisIdempotencyStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRedisIdempotencyStore creates a store on client
func NewRedisIdempotencyStore(client *redis.Client, logger *zap.Logger) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client:  client,
		breaker: newBreaker("redis-event-idempotency", logger),
	}
}

// MarkProcessed records eventID with SETNX; false when it was already recorded
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := guarded(s.breaker, func() (bool, error) {
		return s.client.SetNX(ctx, eventKeyPrefix+eventID, "1", ttl).Result()
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed reports whether eventID is recorded
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := guarded(s.breaker, func() (int64, error) {
		return s.client.Exists(ctx, eventKeyPrefix+eventID).Result()
	})
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}
	return n > 0, nil
}

// Close is a no-op; the shared client is closed by Stores.Close
func (s *RedisIdempotencyStore) Close() error { return nil }

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

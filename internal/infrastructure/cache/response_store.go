package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const responseKeyPrefix = "settlement:idem:"

// inFlight marks a key reserved by a request that has not finished yet
var inFlight = []byte("in-flight")

// CachedResponse is an HTTP response replayed for a repeated Idempotency-Key
type CachedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ResponseStore holds Idempotency-Key reservations and their responses.
// Get returns nil for a missing key and for one still in flight.
type ResponseStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Put(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

func decodeResponse(raw []byte) (*CachedResponse, error) {
	if string(raw) == string(inFlight) {
		return nil, nil
	}
	var resp CachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("corrupt cached response: %w", err)
	}
	return &resp, nil
}

// InMemoryResponseStore keeps responses in process memory
type InMemoryResponseStore struct {
	m *expiringMap
}

// NewInMemoryResponseStore creates an in-memory response store
func NewInMemoryResponseStore() *InMemoryResponseStore {
	return &InMemoryResponseStore{m: newExpiringMap(time.Minute)}
}

func (s *InMemoryResponseStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return s.m.setNX(key, inFlight, ttl), nil
}

func (s *InMemoryResponseStore) Get(_ context.Context, key string) (*CachedResponse, error) {
	raw, ok := s.m.get(key)
	if !ok {
		return nil, nil
	}
	return decodeResponse(raw)
}

func (s *InMemoryResponseStore) Put(_ context.Context, key string, resp *CachedResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.m.set(key, raw, ttl)
	return nil
}

func (s *InMemoryResponseStore) Release(_ context.Context, key string) error {
	s.m.del(key)
	return nil
}

// Close stops the sweeper
func (s *InMemoryResponseStore) Close() error {
	s.m.close()
	return nil
}

// RedisResponseStore keeps responses in Redis so retries may land on any instance
type RedisResponseStore struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRedisResponseStore creates a response store on client
func NewRedisResponseStore(client *redis.Client, logger *zap.Logger) *RedisResponseStore {
	return &RedisResponseStore{
		client:  client,
		breaker: newBreaker("redis-idempotency-key", logger),
	}
}

func (s *RedisResponseStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return guarded(s.breaker, func() (bool, error) {
		return s.client.SetNX(ctx, responseKeyPrefix+key, inFlight, ttl).Result()
	})
}

func (s *RedisResponseStore) Get(ctx context.Context, key string) (*CachedResponse, error) {
	raw, err := guarded(s.breaker, func() ([]byte, error) {
		return s.client.Get(ctx, responseKeyPrefix+key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeResponse(raw)
}

func (s *RedisResponseStore) Put(ctx context.Context, key string, resp *CachedResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = guarded(s.breaker, func() (string, error) {
		return s.client.Set(ctx, responseKeyPrefix+key, raw, ttl).Result()
	})
	return err
}

func (s *RedisResponseStore) Release(ctx context.Context, key string) error {
	_, err := guarded(s.breaker, func() (int64, error) {
		return s.client.Del(ctx, responseKeyPrefix+key).Result()
	})
	return err
}

var (
	_ ResponseStore = (*InMemoryResponseStore)(nil)
	_ ResponseStore = (*RedisResponseStore)(nil)
)

package cache

import (
	"errors"
	"fmt"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend names reported by Stores
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Stores bundles the event idempotency store and the Idempotency-Key
// response store, both on the same backend.
type Stores struct {
	Events    shared.IdempotencyStore
	Responses ResponseStore
	Backend   string

	client *redis.Client
	closer func() error
}

// Close releases the backend
func (s *Stores) Close() error {
	errs := []error{s.Events.Close()}
	if s.closer != nil {
		errs = append(errs, s.closer())
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	return errors.Join(errs...)
}

// RedisClient returns the shared client, or nil for the in-memory backend
func (s *Stores) RedisClient() *redis.Client {
	return s.client
}

// IdempotencyStoreFactory picks the idempotency backend from configuration
type IdempotencyStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory and the stores it creates
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// in-memory stores. Default true.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns Redis-backed stores when Redis is configured and reachable,
// in-memory stores otherwise. In-memory state is not shared across
// instances, so a duplicate delivery to another instance is processed again.
func (f *IdempotencyStoreFactory) Create() (*Stores, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("redis not configured, using in-memory idempotency stores")
		return f.inMemory(), nil
	}

	client, err := NewRedisClient(f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
		}
		f.logger.Warn("redis unavailable, falling back to in-memory idempotency stores",
			zap.Error(err),
		)
		return f.inMemory(), nil
	}

	f.logger.Info("using redis idempotency stores",
		zap.String("host", f.redisConfig.Host),
		zap.Int("db", f.redisConfig.DB),
	)
	return NewRedisStores(client, f.logger), nil
}

// NewRedisStores builds both stores on an existing client; Close closes it
func NewRedisStores(client *redis.Client, logger *zap.Logger) *Stores {
	return &Stores{
		Events:    NewRedisIdempotencyStore(client, logger),
		Responses: NewRedisResponseStore(client, logger),
		Backend:   BackendRedis,
		client:    client,
	}
}

func (f *IdempotencyStoreFactory) inMemory() *Stores {
	responses := NewInMemoryResponseStore()
	return &Stores{
		Events:    NewInMemoryIdempotencyStore(),
		Responses: responses,
		Backend:   BackendMemory,
		closer:    responses.Close,
	}
}

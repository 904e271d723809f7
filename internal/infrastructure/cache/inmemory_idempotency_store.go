package cache

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
)

// InMemoryIdempotencyStore keeps processed event ids in process memory.
// Suitable for a single instance and for tests.
type InMemoryIdempotencyStore struct {
	m *expiringMap
}

// NewInMemoryIdempotencyStore creates a store that sweeps expired ids every five minutes
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{m: newExpiringMap(5 * time.Minute)}
}

// MarkProcessed records eventID for ttl; false when it was already recorded
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	return s.m.setNX(eventID, nil, ttl), nil
}

// IsProcessed reports whether eventID is recorded and not expired
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := s.m.get(eventID)
	return ok, nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.m.close()
	return nil
}

// Size returns the number of stored ids, expired ones included until the next sweep
func (s *InMemoryIdempotencyStore) Size() int {
	return s.m.len()
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

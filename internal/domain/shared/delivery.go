package shared

import (
	"context"
	"time"
)

// EventHandler consumes relayed events. An empty EventTypes means every type.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventBus fans events out to subscribed handlers
type EventBus interface {
	Publish(ctx context.Context, events ...DomainEvent) error
	// Subscribe with no types registers the handler for all events
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// IdempotencyStore remembers which event IDs a consumer has already applied.
// The outbox relays at least once, so handlers with side effects check here.
type IdempotencyStore interface {
	// MarkProcessed records eventID for ttl. It returns false when the id was
	// already recorded.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	Close() error
}

// IdempotencyConfig controls duplicate suppression for event handlers
type IdempotencyConfig struct {
	Enabled bool
	// TTL bounds how long an id is remembered; it must exceed the outbox
	// retry horizon
	TTL time.Duration
}

// DefaultIdempotencyConfig keeps ids for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{Enabled: true, TTL: 24 * time.Hour}
}

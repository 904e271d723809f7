package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Clock supplies the current time to domain services
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock
type ClockFunc func() time.Time

// Now returns the function's result
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns a Clock backed by time.Now in UTC
func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}

// FixedClock returns a Clock that always reports t
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

// ActorResolver extracts the acting user from a request context.
// A nil UUID means the actor is unknown (system calls, tests).
type ActorResolver func(ctx context.Context) uuid.UUID

type actorKey struct{}

// WithActor stores the acting user in ctx
func WithActor(ctx context.Context, actor uuid.UUID) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext is the default ActorResolver
func ActorFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if id, ok := ctx.Value(actorKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationChecker answers whether a verified token was withdrawn by the
// identity service before it expired
type RevocationChecker interface {
	TokenRevoked(ctx context.Context, jti string) (bool, error)
	// UserRevokedSince reports whether every token of userID issued at or
	// before issuedAt was withdrawn, e.g. after a password reset
	UserRevokedSince(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// Revocations adds the writers used by the identity side and by tests
type Revocations interface {
	RevocationChecker
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	RevokeUser(ctx context.Context, userID string, ttl time.Duration) error
}

const revocationPrefix = "auth:revoked:"

// RedisRevocations keeps revocations in the Redis instance shared with the
// identity service. Keys expire with the tokens they revoke.
type RedisRevocations struct {
	client redis.UniversalClient
}

func NewRedisRevocations(client redis.UniversalClient) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func tokenKey(jti string) string   { return revocationPrefix + "token:" + jti }
func userKey(userID string) string { return revocationPrefix + "user:" + userID }

func (r *RedisRevocations) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, tokenKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevocations) TokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, tokenKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n == 1, nil
}

// RevokeUser stores the revocation instant in unix seconds, the resolution
// of the iat claim
func (r *RedisRevocations) RevokeUser(ctx context.Context, userID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, userKey(userID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke user: %w", err)
	}
	return nil
}

func (r *RedisRevocations) UserRevokedSince(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	at, err := r.client.Get(ctx, userKey(userID)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check user revocation: %w", err)
	}
	return issuedAt.Unix() <= at, nil
}

// MemoryRevocations serves single-process deployments without Redis
type MemoryRevocations struct {
	now func() time.Time

	mu     sync.Mutex
	tokens map[string]time.Time // jti -> expiry
	users  map[string]revokedUser
}

type revokedUser struct {
	at, until time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return NewMemoryRevocationsWithClock(time.Now)
}

func NewMemoryRevocationsWithClock(now func() time.Time) *MemoryRevocations {
	return &MemoryRevocations{
		now:    now,
		tokens: map[string]time.Time{},
		users:  map[string]revokedUser{},
	}
}

func (m *MemoryRevocations) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[jti] = m.now().Add(ttl)
	return nil
}

func (m *MemoryRevocations) TokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.tokens[jti]
	if ok && !m.now().Before(until) {
		delete(m.tokens, jti)
		ok = false
	}
	return ok, nil
}

func (m *MemoryRevocations) RevokeUser(_ context.Context, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.users[userID] = revokedUser{at: now, until: now.Add(ttl)}
	return nil
}

func (m *MemoryRevocations) UserRevokedSince(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	if !m.now().Before(u.until) {
		delete(m.users, userID)
		return false, nil
	}
	return !issuedAt.After(u.at), nil
}

var (
	_ Revocations = (*RedisRevocations)(nil)
	_ Revocations = (*MemoryRevocations)(nil)
)

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/settlement/internal/infrastructure/auth"
)

func revocationStores(t *testing.T) (map[string]auth.Revocations, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]auth.Revocations{
		"redis":  auth.NewRedisRevocations(client),
		"memory": auth.NewMemoryRevocations(),
	}, mr
}

func TestRevocations_Token(t *testing.T) {
	stores, _ := revocationStores(t)
	for name, r := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.RevokeToken(ctx, "jti-1", time.Hour))

			revoked, err := r.TokenRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = r.TokenRevoked(ctx, "jti-2")
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	}
}

func TestRevocations_User(t *testing.T) {
	stores, _ := revocationStores(t)
	for name, r := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			issued := time.Now().Add(-time.Hour)

			revoked, err := r.UserRevokedSince(ctx, "user-1", issued)
			require.NoError(t, err)
			assert.False(t, revoked)

			require.NoError(t, r.RevokeUser(ctx, "user-1", time.Hour))

			revoked, err = r.UserRevokedSince(ctx, "user-1", issued)
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = r.UserRevokedSince(ctx, "user-1", time.Now().Add(time.Hour))
			require.NoError(t, err)
			assert.False(t, revoked, "tokens issued after the revocation stay valid")
		})
	}
}

func TestRedisRevocations_Expiry(t *testing.T) {
	stores, mr := revocationStores(t)
	r := stores["redis"]
	ctx := context.Background()

	require.NoError(t, r.RevokeToken(ctx, "short", time.Minute))
	mr.FastForward(2 * time.Minute)

	revoked, err := r.TokenRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocations_Unavailable(t *testing.T) {
	stores, mr := revocationStores(t)
	mr.Close()

	_, err := stores["redis"].TokenRevoked(context.Background(), "jti")
	assert.Error(t, err)
}

func TestMemoryRevocations_Expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := auth.NewMemoryRevocationsWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, r.RevokeToken(ctx, "short", time.Minute))
	require.NoError(t, r.RevokeUser(ctx, "user-1", time.Minute))
	issued := now.Add(-time.Hour)

	revoked, err := r.TokenRevoked(ctx, "short")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(time.Minute)

	revoked, err = r.TokenRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = r.UserRevokedSince(ctx, "user-1", issued)
	require.NoError(t, err)
	assert.False(t, revoked, "user revocation lapses with its ttl")
}

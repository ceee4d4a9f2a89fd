package sessioncache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *Cache) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, New(rdb, zerolog.Nop())
}

func sampleSession(userID, sessionID string) SessionData {
	return SessionData{
		SessionID:    sessionID,
		UserID:       userID,
		Email:        "a@x.com",
		Username:     "a",
		Role:         "user",
		LastActivity: time.Now().UTC().Truncate(time.Second),
		IPAddress:    "10.0.0.1",
		UserAgent:    "test-agent",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestCache_SessionRoundTrip(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	data := sampleSession("user-1", "sess-1")
	require.NoError(t, cache.SetSession(ctx, data, time.Hour))

	got, err := cache.GetSession(ctx, "user-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, data.SessionID, got.SessionID)
	assert.Equal(t, data.Email, got.Email)
	assert.Equal(t, data.Role, got.Role)

	require.NoError(t, cache.DeleteSession(ctx, "user-1", "sess-1"))
	_, err = cache.GetSession(ctx, "user-1", "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotCached)
}

func TestCache_SessionTTLExpires(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetSession(ctx, sampleSession("user-1", "sess-1"), time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := cache.GetSession(ctx, "user-1", "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotCached)
}

func TestCache_DeleteUserSessions(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetSession(ctx, sampleSession("user-1", "sess-1"), time.Hour))
	require.NoError(t, cache.SetSession(ctx, sampleSession("user-1", "sess-2"), time.Hour))
	require.NoError(t, cache.SetSession(ctx, sampleSession("user-2", "sess-3"), time.Hour))

	require.NoError(t, cache.DeleteUserSessions(ctx, "user-1"))

	_, err := cache.GetSession(ctx, "user-1", "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotCached)
	_, err = cache.GetSession(ctx, "user-1", "sess-2")
	assert.ErrorIs(t, err, ErrSessionNotCached)

	// Other users are untouched.
	_, err = cache.GetSession(ctx, "user-2", "sess-3")
	assert.NoError(t, err)
}

func TestCache_ListUserSessions(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetSession(ctx, sampleSession("user-1", "sess-1"), time.Hour))
	require.NoError(t, cache.SetSession(ctx, sampleSession("user-1", "sess-2"), time.Hour))

	sessions, err := cache.ListUserSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestCache_Blacklist(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	hash := []byte("token-hash")
	assert.False(t, cache.IsTokenBlacklisted(ctx, hash))

	require.NoError(t, cache.BlacklistToken(ctx, hash, 15*time.Minute))
	assert.True(t, cache.IsTokenBlacklisted(ctx, hash))
}

func TestCache_BlacklistExpiresWithTTL(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	hash := []byte("token-hash")
	require.NoError(t, cache.BlacklistToken(ctx, hash, 15*time.Minute))

	mr.FastForward(16 * time.Minute)
	assert.False(t, cache.IsTokenBlacklisted(ctx, hash))
}

func TestCache_BlacklistFailsOpenWhenRedisDown(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	hash := []byte("token-hash")
	require.NoError(t, cache.BlacklistToken(ctx, hash, 15*time.Minute))

	mr.Close()

	// Unreachable backend reads as "not blacklisted".
	assert.False(t, cache.IsTokenBlacklisted(ctx, hash))
}

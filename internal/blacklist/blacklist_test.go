package blacklist

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RedisStore{Client: client}, mr
}

func TestRevokeAndIsRevoked(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "some.token.value")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "some.token.value", time.Minute))

	revoked, err = store.IsRevoked(ctx, "some.token.value")
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "another.token.value")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRevokeNonPositiveTTLIsNoop(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "expired.token", 0))
	require.NoError(t, store.Revoke(ctx, "expired.token", -time.Minute))

	require.Empty(t, mr.Keys())

	revoked, err := store.IsRevoked(ctx, "expired.token")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestEntriesExpire(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "short.lived", 30*time.Second))

	revoked, err := store.IsRevoked(ctx, "short.lived")
	require.NoError(t, err)
	require.True(t, revoked)

	mr.FastForward(31 * time.Second)

	revoked, err = store.IsRevoked(ctx, "short.lived")
	require.NoError(t, err)
	require.False(t, revoked)
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, RedisStoreConfig{}), mr
}

func TestRedisStore_GetSetDelete(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	reset := time.Now().Add(time.Minute).Truncate(time.Millisecond)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", Entry{Count: 4, WindowResetAt: reset}))
	assert.True(t, mr.Exists("ratelimit:k"))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, got.Count)
	assert.True(t, got.WindowResetAt.Equal(reset), "reset = %v, want %v", got.WindowResetAt, reset)

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ImplementsAtomicStore(t *testing.T) {
	var s Store = &RedisStore{}
	_, ok := s.(AtomicStore)
	assert.True(t, ok)
}

func TestRedisStore_LimiterSequence(t *testing.T) {
	store, _ := newTestRedisStore(t)
	// Keys expire against the server clock, so start from real time.
	clock := newFakeClock(time.Now().Truncate(time.Millisecond))
	limiter := NewFixedWindowLimiter(store, WithClock(clock))
	ctx := context.Background()

	wantAllowed := []bool{true, true, true, false}
	wantRemaining := []int{2, 1, 0, 0}
	for i := range wantAllowed {
		d, err := limiter.Check(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, wantAllowed[i], d.Allowed, "check #%d", i+1)
		assert.Equal(t, wantRemaining[i], d.Remaining, "check #%d", i+1)
		assert.True(t, d.ResetAt.Equal(clock.Now().Add(time.Minute)))
	}

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Count, "denied checks must not increment")

	clock.Advance(time.Minute + time.Millisecond)
	d, err := limiter.Check(ctx, "k", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, _, err := store.Hit(context.Background(), "k", 1, time.Minute, time.Now())
	assert.Error(t, err)
}

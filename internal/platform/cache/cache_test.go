package cache

import (
	"context"
	"testing"
	"time"

	"problem_market/internal/common"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestStore_GetSet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewStore(rdb, "pm:")
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "leaderboard:all:50")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "leaderboard:all:50", []byte(`{"period":"all"}`), time.Minute))
	got, ok, err := store.Get(ctx, "leaderboard:all:50")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"period":"all"}`, string(got))
	assert.True(t, mr.Exists("pm:leaderboard:all:50"))

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Get(ctx, "leaderboard:all:50")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLocker(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewLocker(rdb)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "sweeper", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "sweeper", time.Minute)
	assert.ErrorIs(t, err, common.ErrLockNotAcquired)

	release(ctx)
	assert.False(t, mr.Exists("sweeper"))

	again, err := locker.Acquire(ctx, "sweeper", time.Minute)
	require.NoError(t, err)
	defer again(ctx)
}

func TestRedisLocker_ReleaseDoesNotStealAnotherHoldersLock(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewLocker(rdb)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "sweeper", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = locker.Acquire(ctx, "sweeper", time.Minute)
	require.NoError(t, err)

	stale(ctx)
	assert.True(t, mr.Exists("sweeper"), "the expired holder must not delete the new lock")
}

func TestRateLimiter(t *testing.T) {
	mr, rdb := newTestRedis(t)
	limiter := NewRateLimiter(rdb, "rl")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "vote", "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "vote", "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	other, err := limiter.Allow(ctx, "vote", "10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "clients are counted separately")

	mr.FastForward(time.Minute + time.Second)
	d, err = limiter.Allow(ctx, "vote", "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

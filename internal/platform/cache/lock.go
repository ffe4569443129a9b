package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"problem_market/internal/common"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// NewLocker builds a single-instance SET NX lock. It is advisory: callers must
// still re-check their own preconditions.
func NewLocker(rdb lockClient) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

type RedisLocker struct {
	rdb lockClient
}

// Acquire returns common.ErrLockNotAcquired when another holder owns key.
// The returned release func is safe to call after the TTL has expired.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s is held elsewhere: %w", key, common.ErrLockNotAcquired)
	}

	release := func(ctx context.Context) {
		deleted, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int64()
		if err != nil {
			slog.Error("failed to release lock", "key", key, "error", err)
			return
		}
		if deleted == 0 {
			slog.Warn("lock expired before release", "key", key)
		}
	}
	return release, nil
}

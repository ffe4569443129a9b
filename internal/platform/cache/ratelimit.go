package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowScript counts a hit in a fixed window and returns {count, pttl}.
// The expiry is set by the first hit only.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a fixed-window counter shared by every API instance.
type RateLimiter struct {
	rdb    redis.Scripter
	prefix string
}

func NewRateLimiter(rdb redis.Scripter, prefix string) *RateLimiter {
	return &RateLimiter{rdb: rdb, prefix: prefix}
}

func (l *RateLimiter) Allow(ctx context.Context, bucket, client string, limit int, window time.Duration) (Decision, error) {
	key := fmt.Sprintf("%s:%s:%s", l.prefix, bucket, client)
	res, err := windowScript.Run(ctx, l.rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", bucket, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", bucket, res)
	}

	count, pttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if pttl < 0 {
		pttl = window
	}
	if count > limit {
		return Decision{Allowed: false, RetryAfter: pttl}, nil
	}
	return Decision{Allowed: true, Remaining: limit - count}, nil
}

package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"problem_market/internal/common"
	"problem_market/internal/platform/cache"
	"problem_market/internal/platform/metrics"
)

type Limiter interface {
	Allow(ctx context.Context, bucket, client string, limit int, window time.Duration) (cache.Decision, error)
}

type RateLimitPolicy struct {
	Bucket string
	Limit  int
	Window time.Duration
}

var (
	GlobalLimit        = RateLimitPolicy{Bucket: "global", Limit: 200, Window: 15 * time.Minute}
	ReadLimit          = RateLimitPolicy{Bucket: "read", Limit: 60, Window: time.Minute}
	WriteLimit         = RateLimitPolicy{Bucket: "write", Limit: 20, Window: 15 * time.Minute}
	VoteLimit          = RateLimitPolicy{Bucket: "vote", Limit: 30, Window: time.Minute}
	CreateProblemLimit = RateLimitPolicy{Bucket: "create_problem", Limit: 5, Window: time.Hour}
	SubmissionLimit    = RateLimitPolicy{Bucket: "submission", Limit: 10, Window: time.Hour}
)

// RateLimit counts requests per client in policy's bucket. Authenticated
// requests are keyed by user id, the rest by remote IP. A nil limiter or a
// limiter error lets the request through.
func RateLimit(limiter Limiter, policy RateLimitPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), policy.Bucket, clientKey(r), policy.Limit, policy.Window)
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request", "bucket", policy.Bucket, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
			if !d.Allowed {
				metrics.RateLimiterRejections.WithLabelValues(policy.Bucket).Inc()
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Remaining", "0")
				common.RespondWithJSON(w, http.StatusTooManyRequests, common.ErrorResponse{
					Error:      "Too many requests, please try again later.",
					Code:       common.ErrorCode(common.ErrRateLimited),
					RetryAfter: retry,
				})
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if id, ok := GetUserIDFromContext(r.Context()); ok {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

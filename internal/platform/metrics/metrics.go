package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route pattern
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "problem_market_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "problem_market_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "problem_market_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method"},
	)

	// RateLimiterRejections counts requests rejected per limiter bucket
	RateLimiterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "problem_market_rate_limiter_rejections_total",
			Help: "Total number of requests rejected by rate limiter",
		},
		[]string{"bucket"},
	)

	ProblemsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "problem_market_problems_created_total",
			Help: "Total number of problems posted",
		},
	)

	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "problem_market_quota_rejections_total",
			Help: "Problem creations rejected by the monthly limit",
		},
	)

	// WinnersSelected counts winners by source (manual, auto)
	WinnersSelected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "problem_market_winners_selected_total",
			Help: "Total number of winners selected",
		},
		[]string{"source"},
	)

	// SweepOutcomes counts per-problem results of the deadline sweeper
	SweepOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "problem_market_sweep_outcomes_total",
			Help: "Problems resolved by the deadline sweeper, by outcome",
		},
		[]string{"outcome"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "problem_market_sweep_duration_seconds",
			Help:    "Duration of a deadline sweep run",
			Buckets: prometheus.DefBuckets,
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "problem_market_cache_hits_total",
			Help: "Total number of leaderboard cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "problem_market_cache_misses_total",
			Help: "Total number of leaderboard cache misses",
		},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheOperations counts cache client calls by operation (get|set|delete|invalidate)
	// and result (hit|miss|ok|error|skipped).
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_cache_operations_total",
			Help: "Total number of cache client operations",
		},
		[]string{"operation", "result"},
	)

	// CacheStateTransitions counts health transitions of the cache client (degraded|available).
	CacheStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_cache_state_transitions_total",
			Help: "Total number of cache health state transitions",
		},
		[]string{"to"},
	)

	// CacheDegraded is 1 while the cache client bypasses its backend.
	CacheDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookshelf_cache_degraded",
			Help: "Whether the cache client is currently degraded",
		},
	)

	// EntitiesCreated counts persisted domain entities by kind (book|review).
	EntitiesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_entities_created_total",
			Help: "Total number of books and reviews created",
		},
		[]string{"kind"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookshelf_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RateLimitRejections counts requests refused with 429.
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookshelf_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

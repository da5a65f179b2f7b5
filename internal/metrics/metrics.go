package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttemptsTotal tracks requests sent to each candidate base URL
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partners_fetch_attempts_total",
			Help: "Total number of HTTP attempts against backend candidates",
		},
		[]string{"endpoint", "method"},
	)

	// FetchErrorsTotal tracks failed attempts by error class
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partners_fetch_errors_total",
			Help: "Total number of failed HTTP attempts",
		},
		[]string{"endpoint", "error_type"},
	)

	// FetchLatency tracks attempt latency
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partners_fetch_latency_seconds",
			Help:    "Backend attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// FetchRetriesTotal tracks outer retry rounds
	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partners_fetch_retries_total",
			Help: "Total number of outer retry rounds",
		},
	)

	// CacheLookupsTotal tracks cache reads per tier and result (hit, miss, expired, corrupt)
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partners_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"tier", "result"},
	)

	// CacheInvalidationsTotal tracks removed keys per tier
	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partners_cache_invalidations_total",
			Help: "Total number of invalidated cache keys",
		},
		[]string{"tier"},
	)

	// GatewayRequestsTotal tracks gateway requests
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partners_gateway_requests_total",
			Help: "Total number of gateway requests",
		},
		[]string{"route", "method", "code"},
	)

	// GatewayLatency tracks gateway handler latency
	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partners_gateway_latency_seconds",
			Help:    "Gateway request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// DBConnectionPoolUsage tracks the postgres sheet source pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partners_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the pool limit",
		},
	)
)

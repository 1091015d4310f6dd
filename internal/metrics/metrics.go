package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotad_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quotad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	QuotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotad_quota_checks_total",
			Help: "Quota decisions by tier and outcome (allowed, denied, degraded).",
		},
		[]string{"tier", "outcome"},
	)

	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotad_store_errors_total",
			Help: "Durable store failures by operation (plan, get, incr).",
		},
		[]string{"op"},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotad_cache_hits_total",
			Help: "Local fallback cache hits by entry family (plan, counter).",
		},
		[]string{"family"},
	)

	InvalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quotad_invalidations_total",
			Help: "Cache invalidations triggered by subscription changes.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		QuotaChecksTotal,
		StoreErrorsTotal,
		CacheHitsTotal,
		InvalidationsTotal,
	)
}

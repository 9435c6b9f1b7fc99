// Package metrics defines Prometheus metrics for buildhub.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhub_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhub_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	AuditQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildhub_audit_queue_depth",
			Help: "Current audit queue depth",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildhub_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)

	BuildsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhub_builds_created_total",
			Help: "Builds created by feature type",
		},
		[]string{"feature_type"},
	)

	SnapshotItems = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "buildhub_snapshot_items",
			Help:    "Number of items frozen into a build snapshot",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"feature_type"},
	)

	ModeChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhub_mode_changes_total",
			Help: "Mode assignments set or cleared",
		},
		[]string{"mode", "op"},
	)

	DiffDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buildhub_diff_duration_seconds",
			Help:    "Time to load and diff two builds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhub_rate_limited_total",
			Help: "Requests rejected by a rate limiter, by scope",
		},
		[]string{"scope"},
	)

	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhub_auth_failures_total",
			Help: "Failed authentications by credential kind",
		},
		[]string{"credential"},
	)

	SDKCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildhub_sdk_cache_requests_total",
			Help: "SDK payload cache lookups by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		AuditQueueDepth, WSConnections,
		BuildsCreated, SnapshotItems, ModeChanges, DiffDuration, SDKCacheRequests,
		RateLimited, AuthFailures,
	)
}

// Package metrics provides Prometheus metrics for the Slack integration service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperationsTotal tracks credential store commands by outcome (ok, miss, error)
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of credential store operations by outcome",
		},
		[]string{"operation", "result"},
	)

	// SessionCodesMintedTotal tracks session codes handed out per flow
	SessionCodesMintedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "session",
			Name:      "codes_minted_total",
			Help:      "Total number of session codes minted",
		},
		[]string{"flow"},
	)

	// SessionCodesConsumedTotal tracks destructive session code reads
	SessionCodesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "session",
			Name:      "codes_consumed_total",
			Help:      "Total number of session code consumption attempts by outcome",
		},
		[]string{"flow", "result"},
	)

	// HandshakesTotal tracks completed or failed OAuth handshakes
	HandshakesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "session",
			Name:      "handshakes_total",
			Help:      "Total number of Slack OAuth handshakes by outcome",
		},
		[]string{"result"},
	)

	// SignatureVerificationsTotal tracks inbound Slack signature checks
	SignatureVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "signature",
			Name:      "verifications_total",
			Help:      "Total number of Slack request signature verifications by outcome",
		},
		[]string{"result"},
	)

	// LifecycleChecksTotal tracks live archival checks against the host platform
	LifecycleChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "lifecycle",
			Name:      "checks_total",
			Help:      "Total number of integration archival checks by outcome",
		},
		[]string{"result"},
	)

	// PurgesTotal tracks cascading purges
	PurgesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "lifecycle",
			Name:      "purges_total",
			Help:      "Total number of integration purges by outcome",
		},
		[]string{"result"},
	)

	// PurgeKeyFailuresTotal counts individual key deletes that failed during a purge
	PurgeKeyFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "lifecycle",
			Name:      "purge_key_failures_total",
			Help:      "Total number of keys left behind by partially failed purges",
		},
	)

	// UpstreamRequestsTotal tracks outbound HTTP requests to Slack and Worknice
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"service", "method", "status_code"},
	)

	// UpstreamRequestDuration tracks outbound HTTP request duration
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slack_bridge",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service"},
	)

	// JobIntegrationsTotal tracks per-integration results of scheduled jobs
	JobIntegrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "jobs",
			Name:      "integrations_total",
			Help:      "Total number of integrations processed by scheduled jobs by outcome",
		},
		[]string{"job", "result"},
	)

	// EventsPublishedTotal tracks lifecycle events written to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slack_bridge",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of lifecycle events published by outcome",
		},
		[]string{"type", "result"},
	)
)

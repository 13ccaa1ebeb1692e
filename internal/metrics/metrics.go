// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts completed requests by route pattern, method and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_http_requests_total",
			Help: "Completed HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPDuration observes request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidtube_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// ViewComposeDuration observes how long each view composition takes.
	ViewComposeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidtube_view_compose_duration_seconds",
			Help:    "Time spent composing a denormalized view",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	// RelationToggles counts toggle outcomes by target kind and result (created, removed, error).
	RelationToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_relation_toggles_total",
			Help: "Like and subscription toggles",
		},
		[]string{"kind", "result"},
	)

	// CascadeSteps counts cascade cleanup steps by root kind, step and outcome.
	CascadeSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_cascade_steps_total",
			Help: "Cascade cleanup steps run after a delete",
		},
		[]string{"kind", "step", "outcome"},
	)

	// AssetOperations counts asset store calls by operation and outcome.
	AssetOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_asset_operations_total",
			Help: "Asset store uploads and deletes",
		},
		[]string{"operation", "outcome"},
	)

	// JanitorQueueDepth reports pending background asset deletions.
	JanitorQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vidtube_asset_janitor_queue_depth",
			Help: "Asset deletions waiting for a janitor worker",
		},
	)
)

// Outcome maps an error to an "ok"/"error" label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

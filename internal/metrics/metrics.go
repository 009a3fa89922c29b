// Package metrics registers the Prometheus metrics used by the record
// service. Import this package (via blank import) from the server entry
// point to register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts completed lifecycle operations labelled by
	// operation (create, read, update, delete, list, verify) and status
	// ("success", "bad_request", "duplicate", "not_found", "unauthorized",
	// "store_error").
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relink_operations_total",
			Help: "Total number of record lifecycle operations.",
		},
		[]string{"operation", "status"},
	)

	// OperationDuration observes operation latency in seconds, dominated by
	// backing store round trips.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relink_operation_duration_seconds",
			Help:    "Record operation duration in seconds.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	// StoreErrors counts backing store failures surfaced to callers.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relink_store_errors_total",
			Help: "Total backing store errors.",
		},
		[]string{"operation"},
	)

	// VerifyItems counts bulk-verify item outcomes: matched, unmatched,
	// missing, failed.
	VerifyItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relink_verify_items_total",
			Help: "Total bulk-verify items by outcome bucket.",
		},
		[]string{"bucket"},
	)
)

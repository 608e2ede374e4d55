// Package metrics provides Prometheus counters for import batch outcomes.
//
// Rows are counted per resource and per import type as the batch
// controller classifies them; batch durations feed a histogram.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsProcessed counts classified rows by resource and import type
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowforge_rows_processed_total",
			Help: "Total rows processed, labeled by resource and import type",
		},
		[]string{"resource", "import_type"},
	)

	// BatchesProcessed counts completed batches by resource and outcome
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rowforge_batches_processed_total",
			Help: "Total batches processed, labeled by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	// BatchDuration observes wall-clock batch processing time
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rowforge_batch_duration_seconds",
			Help:    "Batch processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"resource"},
	)
)

// Timer measures one batch's duration
type Timer struct {
	resource string
	start    time.Time
}

// NewTimer starts timing a batch for the named resource
func NewTimer(resource string) *Timer {
	return &Timer{resource: resource, start: time.Now()}
}

// Stop records the elapsed time and returns it
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	BatchDuration.WithLabelValues(t.resource).Observe(elapsed.Seconds())
	return elapsed
}

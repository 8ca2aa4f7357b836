package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SubmissionsTotal tracks submission calls by outcome.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_execution_submissions_total",
			Help: "Total number of order submissions",
		},
		[]string{"outcome"},
	)

	// SubmissionDurationSeconds tracks submission round-trip latency.
	SubmissionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harness_execution_submission_duration_seconds",
		Help:    "Duration of order submission calls",
		Buckets: prometheus.DefBuckets,
	})
)

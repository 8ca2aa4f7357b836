package mockservice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SubmissionsTotal tracks submissions handled by the mock service.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_mock_submissions_total",
			Help: "Total number of submissions handled by the mock execution service",
		},
		[]string{"result"},
	)

	// StreamsTotal tracks push channel connections accepted by the mock service.
	StreamsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harness_mock_streams_total",
		Help: "Total number of push channel connections accepted by the mock execution service",
	})
)

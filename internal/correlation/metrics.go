package correlation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// TrackedOrders tracks orders currently registered across all runs.
	TrackedOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harness_correlation_tracked_orders",
		Help: "Number of orders currently tracked",
	})

	// EventsRoutedTotal tracks routed events by result.
	EventsRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_correlation_events_routed_total",
			Help: "Total number of status events routed",
		},
		[]string{"result"},
	)
)

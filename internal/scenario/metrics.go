package scenario

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ScenariosTotal tracks finished scenarios by kind and result.
	ScenariosTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_scenarios_total",
			Help: "Total number of scenarios run",
		},
		[]string{"kind", "result"},
	)

	// ScenarioDurationSeconds tracks scenario wall-clock duration.
	ScenarioDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harness_scenario_duration_seconds",
			Help:    "Scenario duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"kind"},
	)

	// OrderOutcomesTotal tracks how tracked orders resolved.
	OrderOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_order_outcomes_total",
			Help: "Total number of tracked orders by outcome",
		},
		[]string{"outcome"},
	)

	// OrderCompletionSeconds tracks submission-to-terminal latency.
	OrderCompletionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harness_order_completion_seconds",
		Help:    "Time from submission to terminal status",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 30},
	})

	// ViolationsTotal tracks contract violations by kind.
	ViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_violations_total",
			Help: "Total number of contract violations observed",
		},
		[]string{"kind"},
	)

	// InFlightOrders tracks orders between submission and resolution.
	InFlightOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harness_orders_in_flight",
		Help: "Number of orders currently being tracked",
	})
)

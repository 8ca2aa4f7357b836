package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	// ActiveChannels tracks open order channels.
	ActiveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harness_ws_active_channels",
		Help: "Number of open order status channels",
	})

	// ChannelOpensTotal tracks channel open attempts by outcome.
	ChannelOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_ws_channel_opens_total",
			Help: "Total number of order channel open attempts",
		},
		[]string{"outcome"},
	)

	// EventsReceivedTotal tracks decoded status events by status.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_ws_events_received_total",
			Help: "Total number of status events received",
		},
		[]string{"status"},
	)

	// FramesDroppedTotal tracks frames skipped by the read loop.
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_ws_frames_dropped_total",
			Help: "Total number of WebSocket frames dropped",
		},
		[]string{"reason"},
	)

	// ChannelDuration tracks how long order channels stay open.
	ChannelDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harness_ws_channel_duration_seconds",
		Help:    "Lifetime of order status channels",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	// ProbesTotal tracks bare connection probes by outcome.
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_ws_probes_total",
			Help: "Total number of connection probes",
		},
		[]string{"outcome"},
	)

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harness_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harness_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})
)

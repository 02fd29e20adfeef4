package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Hub metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_ws_connections",
			Help: "Currently open websocket connections",
		},
	)

	WSEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_ws_events_total",
			Help: "Inbound websocket events by type",
		},
		[]string{"type"},
	)

	WSDroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_ws_dropped_events_total",
			Help: "Inbound events dropped before broadcast",
		},
		[]string{"reason"}, // "malformed" or "unknown_type"
	)

	WSBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_ws_broadcasts_total",
			Help: "Messages fanned out to room connections",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parley_rooms_active",
			Help: "Room hubs currently resident in memory",
		},
	)

	StoreWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_store_write_failures_total",
			Help: "Best-effort persistence writes that failed after broadcast",
		},
	)
)

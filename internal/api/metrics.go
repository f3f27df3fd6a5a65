package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadinessStatus is 1 when a component is healthy, 0 otherwise.
	ReadinessStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "expdata_readiness_status",
		Help: "Readiness status of expdata components (1=ok, 0=error)",
	}, []string{"component"})

	// ReadinessLatencySeconds records per-component readiness check durations.
	ReadinessLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expdata_readiness_latency_seconds",
		Help:    "Latency of readiness sub-checks by component",
		Buckets: prometheus.DefBuckets,
	}, []string{"component"})

	wsConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "expdata_ws_export_connections_total",
		Help: "Total number of data export websocket connections.",
	})
	wsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expdata_ws_export_requests_total",
		Help: "Data export requests received over websockets by status.",
	}, []string{"status"})
)

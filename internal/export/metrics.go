package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExportsTotal counts export runs by kind, format and outcome.
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expdata_exports_total",
		Help: "Number of export runs by kind, format and status",
	}, []string{"kind", "format", "status"})

	// ExportDurationSeconds records how long a run took from query to stored artifact.
	ExportDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expdata_export_duration_seconds",
		Help:    "Duration of export runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "format"})

	// ExportRows is the number of rows written by the last run per app.
	ExportRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "expdata_export_rows",
		Help: "Rows written by the most recent export of an app",
	}, []string{"app"})

	// ScheduledRunsTotal counts scheduler triggers by schedule name and outcome.
	ScheduledRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expdata_scheduled_runs_total",
		Help: "Number of scheduled export runs",
	}, []string{"schedule", "status"})
)

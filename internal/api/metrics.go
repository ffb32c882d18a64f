package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SyncRunsTotal counts completed sync runs by outcome.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triway",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of completed sync runs.",
		},
		[]string{"outcome"},
	)

	// ProjectsProcessedTotal counts per-project sync outcomes across all runs.
	ProjectsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triway",
			Subsystem: "sync",
			Name:      "projects_processed_total",
			Help:      "Total number of per-project sync passes, by outcome.",
		},
		[]string{"outcome"},
	)

	// DivergencesTotal counts conflict-resolution outcomes by kind.
	DivergencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triway",
			Subsystem: "sync",
			Name:      "divergences_total",
			Help:      "Total number of conflicts observed during reconciliation, by resolution.",
		},
		[]string{"resolution"},
	)

	// SyncRunDuration tracks wall-clock time per sync run.
	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triway",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of a full sync run across all projects.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// metricsHandler exposes the default registry's metrics for GET /metrics.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}

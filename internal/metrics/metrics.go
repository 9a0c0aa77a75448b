// Package metrics defines the orchestrator's Prometheus instrumentation
// surface: queue throughput, breaker state, and search/decision outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueueJobsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "queue_jobs_enqueued_total",
		Help:      "Total queue jobs enqueued, by kind.",
	}, []string{"kind"})

	QueueJobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "queue_jobs_completed_total",
		Help:      "Total queue jobs that reached a terminal state, by kind and outcome.",
	}, []string{"kind", "outcome"})

	QueueJobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orchestrator",
		Name:      "queue_job_duration_seconds",
		Help:      "Wall-clock duration of one queue job handler invocation, by kind.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"kind"})

	QueueJobsInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "orchestrator",
		Name:      "queue_jobs_in_flight",
		Help:      "Number of queue jobs currently leased and running, by kind.",
	}, []string{"kind"})

	BreakerStateChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "breaker_state_changes_total",
		Help:      "Total circuit breaker state transitions, by adapter and new state.",
	}, []string{"adapter", "state"})

	SearchCandidatesFound = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orchestrator",
		Name:      "search_candidates_found",
		Help:      "Number of deduplicated, size-sane candidates returned per search round.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"indexer"})

	SearchIndexerErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "search_indexer_errors_total",
		Help:      "Total indexer search failures, by indexer name.",
	}, []string{"indexer"})

	DecisionOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "decision_outcomes_total",
		Help:      "Total decision engine outcomes, by result (selected, no_candidates, all_blocklisted, disqualified).",
	}, []string{"outcome"})

	ImportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orchestrator",
		Name:      "import_duration_seconds",
		Help:      "Duration of a completed-download import pipeline run.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
	})

	ImportFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orchestrator",
		Name:      "import_failures_total",
		Help:      "Total import pipeline failures, by stage.",
	}, []string{"stage"})

	DownloadHandlesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "orchestrator",
		Name:      "download_handles_active",
		Help:      "Number of non-terminal download handles tracked across all movies.",
	})
)

// Register attaches every orchestrator metric to reg. Call once at
// startup with the default registry (or a test-local one).
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		QueueJobsEnqueuedTotal,
		QueueJobsCompletedTotal,
		QueueJobDuration,
		QueueJobsInFlight,
		BreakerStateChangesTotal,
		SearchCandidatesFound,
		SearchIndexerErrorsTotal,
		DecisionOutcomesTotal,
		ImportDuration,
		ImportFailuresTotal,
		DownloadHandlesActive,
	)
}

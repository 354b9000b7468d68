// Package metrics exposes ingestion counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes.
const (
	OutcomeIngested      = "ingested"
	OutcomeHidden        = "hidden"
	OutcomeUnknownSender = "unknown_sender"
	OutcomeParseError    = "parse_error"
)

var (
	// RunsTotal counts ingestion triggers by result.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailingest_runs_total",
			Help: "Total number of ingestion runs triggered",
		},
		[]string{"status"}, // completed, already_running, failed
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailingest_run_duration_seconds",
			Help:    "Duration of completed ingestion runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7min
		},
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailingest_messages_total",
			Help: "Total number of mailbox messages handled",
		},
		[]string{"outcome"},
	)

	UserFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailingest_user_failures_total",
			Help: "Total number of per-user ingestion failures",
		},
		[]string{"kind"}, // connection, auth, protocol, timeout, persistence, unknown
	)
)

// RecordRun records a trigger and, for completed runs, its duration.
func RecordRun(status string, duration time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		RunDuration.Observe(duration.Seconds())
	}
}

// RecordMessage records one handled message.
func RecordMessage(outcome string) {
	MessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordUserFailure records a user whose mailbox could not be processed.
func RecordUserFailure(kind string) {
	UserFailuresTotal.WithLabelValues(kind).Inc()
}

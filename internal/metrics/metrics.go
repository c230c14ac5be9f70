// Package metrics registers the process-wide Prometheus collectors exposed
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IntentsApplied counts operator intents the session accepted.
	IntentsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizboard_intents_applied_total",
		Help: "Operator intents applied by the session state machine.",
	}, []string{"intent"})

	// IntentErrors counts intents rejected by validation or phase guards.
	IntentErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizboard_intent_errors_total",
		Help: "Operator intents rejected by the session state machine.",
	}, []string{"intent"})

	// PlaybackFailures counts swallowed audio errors (decode, seek, device).
	PlaybackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizboard_playback_failures_total",
		Help: "Best-effort audio operations that failed and were swallowed.",
	})

	// StorageFailures counts swallowed durable-store errors by slice.
	StorageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizboard_storage_failures_total",
		Help: "Durable store reads/writes that failed and fell back.",
	}, []string{"slice"})
)

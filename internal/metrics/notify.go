package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// changesDetectedTotal counts non-empty diffs by capture strategy.
	// Labels:
	// - strategy: commit | edit
	changesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changenotify",
			Subsystem: "capture",
			Name:      "changes_detected_total",
			Help:      "Watched records with at least one reportable change.",
		},
		[]string{"strategy"},
	)

	// pendingDroppedTotal counts queued notifications discarded because a
	// new detection pass or a rollback reset the queue before delivery.
	pendingDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "changenotify",
		Subsystem: "capture",
		Name:      "pending_dropped_total",
		Help:      "Queued notifications dropped before delivery.",
	})

	// sendAttemptsTotal counts send attempts by role and status.
	// Labels:
	// - role:   admin | customer
	// - status: sent | rejected | failed
	sendAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "changenotify",
			Subsystem: "notify",
			Name:      "send_attempts_total",
			Help:      "Notification send attempts by recipient role and outcome.",
		},
		[]string{"role", "status"},
	)

	// sendDurationSeconds observes the latency of a single send attempt.
	sendDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "changenotify",
			Subsystem: "notify",
			Name:      "send_duration_seconds",
			Help:      "Duration of one notification send attempt.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role"},
	)

	// resolveFailuresTotal counts notifications aborted because the
	// configuration or shop identity could not be resolved.
	resolveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "changenotify",
		Subsystem: "notify",
		Name:      "resolve_failures_total",
		Help:      "Notifications aborted before any send attempt.",
	})
)

// IncChangesDetected increments the detection counter.
func IncChangesDetected(strategy string) {
	if strategy == "" {
		strategy = "unknown"
	}
	changesDetectedTotal.WithLabelValues(strategy).Inc()
}

// AddPendingDropped adds n dropped queue entries.
func AddPendingDropped(n int) {
	if n <= 0 {
		return
	}
	pendingDroppedTotal.Add(float64(n))
}

// ObserveSendAttempt records one send attempt outcome and its latency.
func ObserveSendAttempt(role, status string, seconds float64) {
	if role == "" {
		role = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	sendAttemptsTotal.WithLabelValues(role, status).Inc()
	sendDurationSeconds.WithLabelValues(role).Observe(seconds)
}

// IncResolveFailure increments the resolution failure counter.
func IncResolveFailure() { resolveFailuresTotal.Inc() }

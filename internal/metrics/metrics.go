// Package metrics holds the Prometheus collectors of the engine. They are
// registered on the default registry, which /metrics serves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Completion sources
const (
	SourceTimer   = "timer"
	SourceOverdue = "overdue"
	SourceSweep   = "sweep"
)

var (
	// Decisions counts gate results by view.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pause_decisions_total",
		Help: "Total number of decision gate evaluations by resulting view",
	}, []string{"view"})

	// DecisionFallbacks counts decisions served from cache or defaulted to hidden.
	DecisionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pause_decision_fallbacks_total",
		Help: "Decisions not computed from a fresh read, by reason",
	}, []string{"reason"}) // reason: "timeout" or "store"

	// DecisionLatency observes how long a full gate evaluation took.
	DecisionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pause_decision_duration_seconds",
		Help:    "Decision gate latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// LifecycleActions counts user decisions by action.
	LifecycleActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pause_lifecycle_actions_total",
		Help: "Total number of reminder lifecycle actions by kind",
	}, []string{"action"})

	// RemindersCompleted counts reminders moved to completed, by source.
	RemindersCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pause_reminders_completed_total",
		Help: "Total number of reminders completed by the completion handler",
	}, []string{"source"})

	// TimerArmFailures counts wake-ups that could not be scheduled.
	TimerArmFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pause_timer_arm_failures_total",
		Help: "Total number of timers that failed to arm",
	})

	// TimersArmed is the number of live timers.
	TimersArmed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pause_timers_armed",
		Help: "Number of reminder timers currently armed",
	})

	// RateLimited counts requests rejected by the per-client limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pause_http_rate_limited_total",
		Help: "Total number of HTTP requests rejected by rate limiting",
	}, []string{"limiter"})
)

package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions with appropriate labels.
var (
	// stepsTotal tracks step attempts by profile, state, and outcome. A
	// committed step counts as success, an escalated action failure as
	// failure.
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simrange_steps_total",
		Help: "Total number of scheduler step attempts by profile, state, and outcome",
	}, []string{"profile", "state", "outcome"})

	// transitionsTotal tracks committed transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simrange_transitions_total",
		Help: "Total number of committed transitions by profile, from_state, and to_state",
	}, []string{"profile", "from_state", "to_state"})

	// actionDuration tracks individual action execution time.
	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simrange_action_duration_seconds",
		Help:    "Duration of action execution by profile, action, and state",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"profile", "action", "state"})

	// actionFailuresTotal tracks action failures before retry/reselect handling.
	actionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simrange_action_failures_total",
		Help: "Total number of action failures by profile, action, and state",
	}, []string{"profile", "action", "state"})

	// noEnabledTransitionTotal tracks fatal dead-ends, which indicate
	// machine-definition bugs.
	noEnabledTransitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simrange_no_enabled_transition_total",
		Help: "Total number of steps that found no enabled transition in a non-terminal state",
	}, []string{"profile", "state"})
)

// sanitizeProfile keeps the profile label non-empty.
func sanitizeProfile(profile string) string {
	if profile == "" {
		return "unknown"
	}

	return profile
}

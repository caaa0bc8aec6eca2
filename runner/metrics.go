package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal tracks finished actor runs by profile and terminal status.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simrange_actor_runs_total",
		Help: "Total number of finished actor runs by profile and status",
	}, []string{"profile", "status"})

	// runDuration tracks end-to-end actor run time.
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simrange_actor_run_duration_seconds",
		Help:    "Duration of actor runs by profile and status",
		Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900, 3600},
	}, []string{"profile", "status"})

	// activeActors tracks currently running actors.
	activeActors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simrange_active_actors",
		Help: "Number of actor runners currently executing",
	}, []string{"profile"})
)

// sanitizeProfile keeps the profile label non-empty.
func sanitizeProfile(profile string) string {
	if profile == "" {
		return "unknown"
	}

	return profile
}

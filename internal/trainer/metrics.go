package trainer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sschepis/symprime-mentor-ai/internal/model"
)

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "symprime_training_ticks_total",
			Help: "Total number of simulated training progress writes.",
		},
	)

	sessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "symprime_training_sessions_started_total",
			Help: "Total number of training sessions started.",
		},
	)

	sessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "symprime_training_sessions_finished_total",
			Help: "Total number of training sessions reaching a terminal status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(sessionsStarted)
	prometheus.MustRegister(sessionsFinished)

	// Pre-initialize label combinations so they report 0 from startup.
	for _, status := range []string{model.StatusCompleted, model.StatusFailed, model.StatusCancelled} {
		sessionsFinished.WithLabelValues(status)
	}
}

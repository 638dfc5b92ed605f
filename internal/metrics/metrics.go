// Package metrics exposes Prometheus instrumentation for the tracking loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_ticks_total",
			Help: "Tracking loop ticks by outcome",
		},
		[]string{"result"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "focustrack_tick_duration_seconds",
			Help:    "Wall time spent in one tracking tick",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	ProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_probe_failures_total",
			Help: "Foreground probe samples that failed",
		},
		[]string{"probe"},
	)

	CollaboratorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_collaborator_errors_total",
			Help: "Failed calls to the persistence collaborator",
		},
		[]string{"operation"},
	)

	SessionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focustrack_sessions_opened_total",
			Help: "Time sessions opened or re-attached",
		},
	)

	SessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_sessions_closed_total",
			Help: "Time sessions closed",
		},
		[]string{"reason"},
	)

	OpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focustrack_open_sessions",
			Help: "Sessions currently held open by the tracker",
		},
	)

	ActivityCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focustrack_activity_cache_total",
			Help: "Current activity lookups by cache outcome",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TickDuration,
		ProbeFailures,
		CollaboratorErrors,
		SessionsOpened,
		SessionsClosed,
		OpenSessions,
		ActivityCache,
	)
}

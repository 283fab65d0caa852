package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts successfully started recording sessions.
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_sessions_started_total",
		Help: "Total number of recording sessions started",
	}, []string{"zone"})

	// SessionStartFailures counts start attempts that did not produce a session.
	SessionStartFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_session_start_failures_total",
		Help: "Total number of failed session start attempts by reason",
	}, []string{"zone", "reason"})

	// SuppressedAlerts counts alerts dropped by debounce or duplicate state.
	SuppressedAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_suppressed_alerts_total",
		Help: "Total number of alerts suppressed without side effect",
	}, []string{"zone", "cause"})

	// SessionsStopped counts finished sessions by stop outcome.
	SessionsStopped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_sessions_stopped_total",
		Help: "Total number of recording sessions stopped by outcome",
	}, []string{"zone", "outcome"})

	// ActiveSessions tracks the number of sessions currently recording.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonewatch_active_sessions",
		Help: "Number of currently active recording sessions",
	})

	// SessionDuration tracks how long sessions recorded before stopping.
	SessionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zonewatch_session_duration_seconds",
		Help:    "Recording session duration from start to encoder exit",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"zone"})

	// StopDuration tracks how long the stop sequence took.
	StopDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zonewatch_stop_duration_seconds",
		Help:    "Time from stop request to encoder exit by outcome",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 8, 10, 13, 16},
	}, []string{"outcome"})

	// ArtifactRepairs counts post-stop container repair outcomes.
	ArtifactRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_artifact_repairs_total",
		Help: "Total number of output container repair attempts by outcome",
	}, []string{"outcome"})
)

// IncSessionStarted records a successful session start.
func IncSessionStarted(zone string) {
	SessionsStarted.WithLabelValues(zone).Inc()
}

// IncSessionStartFailure records a failed session start attempt.
func IncSessionStartFailure(zone, reason string) {
	SessionStartFailures.WithLabelValues(zone, reason).Inc()
}

// IncSuppressedAlert records an alert suppressed by debounce or state.
func IncSuppressedAlert(zone, cause string) {
	SuppressedAlerts.WithLabelValues(zone, cause).Inc()
}

// IncSessionStopped records a finished session.
func IncSessionStopped(zone, outcome string) {
	SessionsStopped.WithLabelValues(zone, outcome).Inc()
}

// SetActiveSessions updates the active session gauge.
func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}

// ObserveSessionDuration records the full session runtime.
func ObserveSessionDuration(zone string, d time.Duration) {
	SessionDuration.WithLabelValues(zone).Observe(d.Seconds())
}

// ObserveStopDuration records the stop-sequence latency.
func ObserveStopDuration(outcome string, d time.Duration) {
	StopDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncArtifactRepair records a container repair attempt outcome.
func IncArtifactRepair(outcome string) {
	ArtifactRepairs.WithLabelValues(outcome).Inc()
}

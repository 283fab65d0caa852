package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcTerminations counts signals sent during subprocess teardown.
	ProcTerminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_proc_terminate_total",
		Help: "Total number of termination signals sent to encoder process groups",
	}, []string{"signal", "result"})

	// ProcWaits counts how subprocess waits concluded.
	ProcWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_proc_wait_total",
		Help: "Total number of subprocess wait outcomes",
	}, []string{"result"})
)

// IncProcTerminate records a termination signal attempt.
func IncProcTerminate(signal, result string) {
	ProcTerminations.WithLabelValues(signal, result).Inc()
}

// IncProcWait records a subprocess wait outcome.
func IncProcWait(result string) {
	ProcWaits.WithLabelValues(result).Inc()
}

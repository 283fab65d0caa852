package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// JournalInserts counts catalog writes by result.
var JournalInserts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "zonewatch_journal_inserts_total",
	Help: "Total number of journal insert attempts by result",
}, []string{"result"})

// IncJournalInsert records one catalog write attempt.
func IncJournalInsert(result string) {
	JournalInserts.WithLabelValues(result).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BusDropsTotal counts publishes abandoned because the publish context ended.
	BusDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_bus_drops_total",
		Help: "Total number of bus publishes dropped",
	}, []string{"topic"})

	// BusDroppedTotal splits bus drops by reason.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_bus_dropped_total",
		Help: "Total number of bus publishes dropped by reason",
	}, []string{"topic", "reason"})
)

// IncBusDropReason records a dropped publish with its reason.
func IncBusDropReason(topic, reason string) {
	BusDropsTotal.WithLabelValues(topic).Inc()
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}

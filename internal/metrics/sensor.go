package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SensorEvents counts classified sensor events by type.
	SensorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_sensor_events_total",
		Help: "Total number of sensor events by classification",
	}, []string{"type"})

	// TransportReconnects counts reconnect attempts against the sensor transport.
	TransportReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zonewatch_transport_reconnects_total",
		Help: "Total number of sensor transport reconnect attempts",
	})

	// TransportFailures counts fatal transport losses that ended the ingest loop.
	TransportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zonewatch_transport_failures_total",
		Help: "Total number of unrecoverable sensor transport failures",
	})

	// CommandsSent counts outbound commands written to the transport.
	CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_commands_sent_total",
		Help: "Total number of commands written to the sensor transport by result",
	}, []string{"result"})

	// IngestAlive reports whether the event-ingestion loop is running.
	IngestAlive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonewatch_ingest_alive",
		Help: "1 while the sensor event-ingestion loop is running, 0 after it exits",
	})
)

// IncSensorEvent records one classified sensor event.
func IncSensorEvent(eventType string) {
	SensorEvents.WithLabelValues(eventType).Inc()
}

// IncTransportReconnect records a reconnect attempt.
func IncTransportReconnect() {
	TransportReconnects.Inc()
}

// IncTransportFailure records an unrecoverable transport loss.
func IncTransportFailure() {
	TransportFailures.Inc()
}

// IncCommandSent records an outbound command write.
func IncCommandSent(result string) {
	CommandsSent.WithLabelValues(result).Inc()
}

// SetIngestAlive flags the ingest loop as running or stopped.
func SetIngestAlive(alive bool) {
	if alive {
		IngestAlive.Set(1)
		return
	}
	IngestAlive.Set(0)
}

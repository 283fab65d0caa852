package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DevicesDiscovered tracks the capture devices found by the last probe.
	DevicesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zonewatch_devices_discovered",
		Help: "Number of capture devices found by the most recent probe",
	})

	// DeviceProbes counts discovery probes by result.
	DeviceProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zonewatch_device_probes_total",
		Help: "Total number of capture device discovery probes by result",
	}, []string{"result"})
)

// SetDevicesDiscovered updates the discovered-device gauge.
func SetDevicesDiscovered(n int) {
	DevicesDiscovered.Set(float64(n))
}

// IncDeviceProbe records one discovery probe.
func IncDeviceProbe(result string) {
	DeviceProbes.WithLabelValues(result).Inc()
}

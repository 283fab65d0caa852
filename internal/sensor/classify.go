// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sensor

import (
	"strings"

	"github.com/ManuGH/zonewatch/internal/zone"
)

// Markers emitted by the sensor board. All matching is case-insensitive
// substring matching, the board firmware is not consistent about casing.
const (
	markerAlert       = "ALERTA"
	markerSensor      = "SENSOR"
	markerDeactivated = "DESACTIVADO"
	markerAlarmOff    = "ALARMAACTIVA=0"
)

// Classify maps one transport line onto an event. Rules apply in priority
// order: an alert needs both alert markers and exactly one zone keyword; a
// line with zero or several zone keywords is never an alert. Deactivation
// matches either the explicit marker or the alarm flag dropping to zero.
func Classify(line string) Event {
	upper := strings.ToUpper(line)

	if strings.Contains(upper, markerAlert) && strings.Contains(upper, markerSensor) {
		var match zone.Zone
		hits := 0
		for _, z := range zone.All() {
			if strings.Contains(upper, string(z)) {
				match = z
				hits++
			}
		}
		if hits == 1 {
			return Event{Type: TypeAlert, Zone: match, Raw: line}
		}
	}

	if strings.Contains(upper, markerDeactivated) || strings.Contains(upper, markerAlarmOff) {
		return Event{Type: TypeDeactivate, Raw: line}
	}

	return Event{Type: TypeUnknown, Raw: line}
}

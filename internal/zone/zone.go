// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package zone defines the monitored zones and the zone-to-camera registry.
package zone

import "strings"

// Zone identifies a monitored area. The values double as the keywords the
// sensor board embeds in its alert lines, so they are matched case-insensitively.
type Zone string

const (
	Entrada         Zone = "ENTRADA"
	Salida          Zone = "SALIDA"
	Estacionamiento Zone = "ESTACIONAMIENTO"
	Bodega          Zone = "BODEGA"
)

// All returns every known zone in a stable order.
func All() []Zone {
	return []Zone{Entrada, Salida, Estacionamiento, Bodega}
}

// Parse maps a string onto a known zone, ignoring case and surrounding
// whitespace. The boolean is false for unknown names.
func Parse(s string) (Zone, bool) {
	switch Zone(strings.ToUpper(strings.TrimSpace(s))) {
	case Entrada:
		return Entrada, true
	case Salida:
		return Salida, true
	case Estacionamiento:
		return Estacionamiento, true
	case Bodega:
		return Bodega, true
	default:
		return "", false
	}
}

func (z Zone) String() string {
	return string(z)
}

// Slug returns the lowercase form used in output filenames.
func (z Zone) Slug() string {
	return strings.ToLower(string(z))
}

// IsValid reports whether z is one of the known zones.
func (z Zone) IsValid() bool {
	_, ok := Parse(string(z))
	return ok
}

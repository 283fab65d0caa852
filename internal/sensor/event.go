// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sensor reads and classifies line-oriented events from the sensor
// board transport and writes commands back to it.
package sensor

import "github.com/ManuGH/zonewatch/internal/zone"

// EventType classifies a sensor line.
type EventType string

const (
	// TypeAlert is a motion alert naming exactly one zone.
	TypeAlert EventType = "alert"
	// TypeDeactivate asks for every running recording to stop.
	TypeDeactivate EventType = "deactivate"
	// TypeUnknown covers lines that match no rule. Consumers ignore them.
	TypeUnknown EventType = "unknown"
)

// Event is one classified line from the sensor transport. Zone is set only
// for alerts. Raw preserves the sanitized line for logging.
type Event struct {
	Type EventType
	Zone zone.Zone
	Raw  string
}

// Commands understood by the sensor board.
const (
	CommandActivate   = "activado"
	CommandDeactivate = "desactivado"
)

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"time"

	"github.com/ManuGH/zonewatch/internal/zone"
)

// State is a zone's position in the recording lifecycle.
type State string

const (
	// StateIdle means no session exists for the zone.
	StateIdle State = "IDLE"
	// StateStarting means a session is reserved and the encoder spawn is
	// in flight. The zone rejects further starts but accepts a stop flag.
	StateStarting State = "STARTING"
	// StateActive means the encoder is recording.
	StateActive State = "ACTIVE"
	// StateStopping means a stop sequence is running; the session leaves
	// the table when the encoder exits.
	StateStopping State = "STOPPING"
)

func (s State) String() string {
	return string(s)
}

// session is one recording attempt for one zone. All fields except proc and
// the channels are written under the orchestrator mutex.
type session struct {
	id        string
	zone      zone.Zone
	device    string
	output    string
	codec     string
	startedAt time.Time

	state State
	proc  Process

	// stopRequested marks a session that received a stop while the spawn
	// was still in flight. The start path honors it the moment the
	// process is registered.
	stopRequested bool
}

// Outcome labels recorded in the journal and on the bus.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

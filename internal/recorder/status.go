// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"time"

	"github.com/ManuGH/zonewatch/internal/metrics"
)

// Status is a point-in-time snapshot of every configured zone, taken under
// the same lock the state machine mutates under, so it can never show a
// half-applied transition.
type Status struct {
	Zones         map[string]ZoneStatus `json:"zones"`
	ActiveCount   int                   `json:"active_count"`
	IngestAlive   bool                  `json:"ingest_alive"`
	LastEventAt   *time.Time            `json:"last_event_at,omitempty"`
	DegradedStops uint64                `json:"degraded_stops"`
}

// ZoneStatus describes one zone. Session fields are empty for idle zones.
type ZoneStatus struct {
	State     State      `json:"state"`
	Active    bool       `json:"active"`
	SessionID string     `json:"session_id,omitempty"`
	Device    string     `json:"device,omitempty"`
	Output    string     `json:"output,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Snapshot assembles the status under the orchestrator mutex.
func (o *Orchestrator) Snapshot() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		Zones:         make(map[string]ZoneStatus),
		IngestAlive:   o.ingestAlive,
		DegradedStops: o.degradedStops,
	}
	if !o.lastEvent.IsZero() {
		t := o.lastEvent
		st.LastEventAt = &t
	}

	for _, z := range o.zones.Zones() {
		st.Zones[z.String()] = ZoneStatus{State: StateIdle}
	}
	for z, s := range o.sessions {
		started := s.startedAt
		zs := ZoneStatus{
			State:     s.state,
			Active:    s.state == StateActive || s.state == StateStopping,
			SessionID: s.id,
			Device:    s.device,
			Output:    s.output,
			StartedAt: &started,
		}
		st.Zones[z.String()] = zs
		if zs.Active {
			st.ActiveCount++
		}
	}
	return st
}

// SetIngestAlive records whether the event-ingestion loop is running. It
// shares the state-machine lock so status snapshots stay consistent.
func (o *Orchestrator) SetIngestAlive(alive bool) {
	o.mu.Lock()
	o.ingestAlive = alive
	o.mu.Unlock()
	metrics.SetIngestAlive(alive)
}

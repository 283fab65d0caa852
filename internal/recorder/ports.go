// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"context"
	"time"

	"github.com/ManuGH/zonewatch/internal/encoder"
	"github.com/ManuGH/zonewatch/internal/zone"
)

// Process is a running encoder as the orchestrator sees it. Tests substitute
// steppers; production uses *encoder.Handle.
type Process interface {
	// Exited closes once the process has been reaped.
	Exited() <-chan struct{}
	// ExitErr is the process exit error, meaningful after Exited.
	ExitErr() error
	// Stop brings the process down: sentinel, then SIGTERM, then SIGKILL.
	Stop(grace, kill time.Duration) encoder.StopOutcome
	// Diagnostics returns the buffered stderr tail.
	Diagnostics() []string
	// PID identifies the process for logs.
	PID() int
}

// Starter spawns encoder processes.
type Starter interface {
	Start(ctx context.Context, spec encoder.Spec) (Process, error)
}

// ZoneLookup resolves zones to capture devices. The zone manager satisfies
// it with hot-reloaded snapshots; a bare registry works for tests.
type ZoneLookup interface {
	CameraFor(z zone.Zone) (string, bool)
	Zones() []zone.Zone
}

// ExecStarter adapts the concrete executor to the Starter port.
type ExecStarter struct {
	Exec *encoder.Executor
}

func (a ExecStarter) Start(ctx context.Context, spec encoder.Spec) (Process, error) {
	h, err := a.Exec.Start(ctx, spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import "errors"

var (
	// ErrUnknownZone is returned when a zone has no camera configured.
	ErrUnknownZone = errors.New("zone not configured")

	// ErrDuplicateStart is returned when the zone already has a session in
	// any non-idle state.
	ErrDuplicateStart = errors.New("recording already in progress")

	// ErrDebounced is returned when an alert lands inside the debounce
	// window of the zone's last accepted start.
	ErrDebounced = errors.New("alert suppressed by debounce window")

	// ErrNotRecording is returned by a stop for a zone with no session.
	ErrNotRecording = errors.New("no recording in progress")

	// ErrDeviceUnavailable is returned when the capture device cannot be
	// opened, usually because another process holds it.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrSpawnFailure is returned when the encoder process could not be
	// launched at all.
	ErrSpawnFailure = errors.New("encoder process failed to start")

	// ErrClosed is returned once the orchestrator has shut down.
	ErrClosed = errors.New("orchestrator closed")
)

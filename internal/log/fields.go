// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"

	// Recording fields
	FieldZone       = "zone"
	FieldDevice     = "device"
	FieldCodec      = "codec"
	FieldResolution = "resolution"
	FieldFPS        = "fps"
	FieldOutput     = "output"
	FieldOutcome    = "outcome"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Transport fields
	FieldLine     = "line"
	FieldAddr     = "addr"
	FieldAttempt  = "attempt"
	FieldDuration = "duration_ms"

	// Path fields
	FieldPath = "path"
)

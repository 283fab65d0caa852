// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus provides the in-process event transport that decouples the
// recording orchestrator from downstream consumers such as the journal.
package bus

import (
	"context"
	"time"
)

// Topics published by the recording orchestrator.
const (
	TopicRecordingStarted  = "recording.started"
	TopicRecordingFinished = "recording.finished"
)

// Message is an opaque event payload. In-process consumers type-assert to
// the concrete event structs below.
type Message interface{}

// Subscriber receives messages for a single topic until closed.
type Subscriber interface {
	// C returns a read-only message channel.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the event transport abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// RecordingEvent describes a recording-session lifecycle change. Started
// events carry zero EndedAt and empty Outcome; finished events carry both.
type RecordingEvent struct {
	SessionID string    `json:"session_id"`
	Zone      string    `json:"zone"`
	Device    string    `json:"device"`
	Output    string    `json:"output"`
	Codec     string    `json:"codec"`
	Outcome   string    `json:"outcome,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recorder owns the per-zone recording state machine: it turns
// sensor events and API calls into encoder sessions, guaranteeing at most
// one session per zone and exactly one encoder start per accepted trigger.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/zonewatch/internal/bus"
	"github.com/ManuGH/zonewatch/internal/encoder"
	zwlog "github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/metrics"
	"github.com/ManuGH/zonewatch/internal/sensor"
	"github.com/ManuGH/zonewatch/internal/telemetry"
	"github.com/ManuGH/zonewatch/internal/zone"
)

// Config carries the recording parameters shared by every session.
type Config struct {
	OutputDir   string
	Codec       string
	Resolution  string
	Framerate   int
	InputFormat string

	// FFmpegBin is used for artifact repair after non-graceful stops.
	// Empty disables repair.
	FFmpegBin string

	// Debounce is the minimum gap between accepted starts per zone.
	Debounce time.Duration

	// StopGrace is how long a stopped encoder gets to honor the sentinel.
	StopGrace time.Duration

	// StopKill is the SIGTERM-to-SIGKILL window after the grace expired.
	StopKill time.Duration

	// MaxConcurrentStarts bounds parallel encoder spawns.
	MaxConcurrentStarts int
}

// Orchestrator serializes all state transitions under one mutex. Encoder
// spawns and stops run outside it; only the check-and-reserve and the
// result application hold the lock.
type Orchestrator struct {
	cfg    Config
	zones  ZoneLookup
	enc    Starter
	bus    bus.Bus
	logger zerolog.Logger

	// baseCtx bounds all subprocess work; Close cancels it.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu            sync.Mutex
	sessions      map[zone.Zone]*session
	lastAccept    map[zone.Zone]time.Time
	ingestAlive   bool
	lastEvent     time.Time
	degradedStops uint64
	closed        bool

	startSem chan struct{}
	wg       sync.WaitGroup

	now    func() time.Time
	repair func(ctx context.Context, path string) error
}

// New wires the orchestrator. The bus may be nil; lifecycle events are then
// dropped.
func New(cfg Config, zones ZoneLookup, enc Starter, b bus.Bus) *Orchestrator {
	if cfg.MaxConcurrentStarts <= 0 {
		cfg.MaxConcurrentStarts = 2
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cfg:        cfg,
		zones:      zones,
		enc:        enc,
		bus:        b,
		logger:     zwlog.WithComponent("recorder"),
		baseCtx:    baseCtx,
		cancel:     cancel,
		sessions:   make(map[zone.Zone]*session),
		lastAccept: make(map[zone.Zone]time.Time),
		startSem:   make(chan struct{}, cfg.MaxConcurrentStarts),
		now:        time.Now,
	}
	o.repair = func(ctx context.Context, path string) error {
		if cfg.FFmpegBin == "" {
			return nil
		}
		return encoder.Repair(ctx, cfg.FFmpegBin, path, o.logger)
	}
	return o
}

// HandleEvent applies one classified sensor event. Suppressed alerts and
// stop requests for idle zones are normal operation, not errors; the ingest
// loop never stalls on them.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev sensor.Event) {
	tracer := telemetry.Tracer("zonewatch.recorder")
	ctx, span := tracer.Start(ctx, "recorder.handle_event",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(telemetry.SensorAttributes(string(ev.Type), ev.Zone.String())...)

	o.mu.Lock()
	o.lastEvent = o.now()
	o.mu.Unlock()

	switch ev.Type {
	case sensor.TypeAlert:
		if err := o.StartZone(ctx, ev.Zone); err != nil {
			o.logger.Debug().
				Err(err).
				Str(zwlog.FieldZone, ev.Zone.String()).
				Msg("alert did not start a session")
		}
	case sensor.TypeDeactivate:
		stopped := o.StopAll(ctx)
		o.logger.Info().
			Int("stopping", stopped).
			Msg("deactivation received, stopping all sessions")
	default:
		// Unknown events are counted at the source.
	}
}

// StartZone runs the full start sequence for one zone: check-and-reserve
// under the lock, spawn outside it, apply the result under the lock again.
// Exactly one caller can hold the zone's reservation, so concurrent alerts
// produce exactly one encoder process.
func (o *Orchestrator) StartZone(ctx context.Context, z zone.Zone) error {
	tracer := telemetry.Tracer("zonewatch.recorder")
	ctx, span := tracer.Start(ctx, "recorder.start_zone",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.RecordingZoneKey, z.String()))

	s, err := o.reserve(z)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(err, "rejected")...)
		span.SetStatus(codes.Error, "start rejected")
		return err
	}
	span.SetAttributes(telemetry.RecordingAttributes(z.String(), s.id, s.device, s.codec)...)

	// Bound parallel spawns without holding the state lock.
	select {
	case o.startSem <- struct{}{}:
	case <-ctx.Done():
		o.unreserve(s)
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, "canceled waiting for start slot")
		return ctx.Err()
	case <-o.baseCtx.Done():
		o.unreserve(s)
		span.RecordError(ErrClosed)
		span.SetStatus(codes.Error, "orchestrator closed")
		return ErrClosed
	}
	defer func() { <-o.startSem }()

	spec := encoder.Spec{
		Device:      s.device,
		Zone:        z,
		OutputPath:  s.output,
		Codec:       s.codec,
		Resolution:  o.cfg.Resolution,
		Framerate:   o.cfg.Framerate,
		InputFormat: o.cfg.InputFormat,
	}
	proc, startErr := o.enc.Start(o.baseCtx, spec)

	o.mu.Lock()
	if startErr != nil {
		if o.sessions[z] == s {
			delete(o.sessions, z)
		}
		o.mu.Unlock()
		ferr := o.startFailed(z, startErr)
		errType := "spawn_failure"
		if errors.Is(ferr, ErrDeviceUnavailable) {
			errType = "device_unavailable"
		}
		span.RecordError(ferr)
		span.SetAttributes(telemetry.ErrorAttributes(ferr, errType)...)
		span.SetStatus(codes.Error, "encoder start failed")
		return ferr
	}

	s.proc = proc
	s.startedAt = o.now()
	stopNow := s.stopRequested
	if stopNow {
		s.state = StateStopping
	} else {
		s.state = StateActive
	}
	active := o.activeCountLocked()
	o.mu.Unlock()

	metrics.IncSessionStarted(z.String())
	metrics.SetActiveSessions(active)
	o.logger.Info().
		Str(zwlog.FieldZone, z.String()).
		Str(zwlog.FieldSessionID, s.id).
		Str(zwlog.FieldDevice, s.device).
		Str(zwlog.FieldCodec, s.codec).
		Str(zwlog.FieldOutput, s.output).
		Int(zwlog.FieldPID, proc.PID()).
		Msg("recording started")

	o.publish(bus.TopicRecordingStarted, bus.RecordingEvent{
		SessionID: s.id,
		Zone:      z.String(),
		Device:    s.device,
		Output:    s.output,
		Codec:     s.codec,
		StartedAt: s.startedAt,
	})

	o.wg.Add(1)
	go o.supervise(s)

	if stopNow {
		o.logger.Info().
			Str(zwlog.FieldZone, z.String()).
			Str(zwlog.FieldSessionID, s.id).
			Msg("stop requested during startup, stopping immediately")
		o.wg.Add(1)
		go o.stopSession(s)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// reserve performs the check-and-reserve step. On success the zone holds a
// session in StateStarting and the debounce stamp is taken.
func (o *Orchestrator) reserve(z zone.Zone) (*session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}
	device, ok := o.zones.CameraFor(z)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownZone, z)
	}
	if _, exists := o.sessions[z]; exists {
		metrics.IncSuppressedAlert(z.String(), "in_progress")
		return nil, ErrDuplicateStart
	}
	now := o.now()
	if last, ok := o.lastAccept[z]; ok && now.Sub(last) < o.cfg.Debounce {
		metrics.IncSuppressedAlert(z.String(), "debounce")
		return nil, ErrDebounced
	}

	s := &session{
		id:        uuid.NewString(),
		zone:      z,
		device:    device,
		codec:     o.cfg.Codec,
		output:    encoder.OutputPath(o.cfg.OutputDir, z, now),
		startedAt: now,
		state:     StateStarting,
	}
	o.sessions[z] = s
	// Suppressed duplicates do not reset the window; only accepted
	// attempts stamp it.
	o.lastAccept[z] = now
	return s, nil
}

func (o *Orchestrator) unreserve(s *session) {
	o.mu.Lock()
	if o.sessions[s.zone] == s {
		delete(o.sessions, s.zone)
	}
	o.mu.Unlock()
}

// startFailed maps an encoder start error onto the public sentinels.
func (o *Orchestrator) startFailed(z zone.Zone, err error) error {
	reason := "spawn"
	mapped := ErrSpawnFailure
	var serr *encoder.StartError
	if errors.As(err, &serr) {
		reason = string(serr.Reason)
		if serr.DeviceRelated() {
			mapped = ErrDeviceUnavailable
		}
	}
	metrics.IncSessionStartFailure(z.String(), reason)
	o.logger.Warn().
		Err(err).
		Str(zwlog.FieldZone, z.String()).
		Str("reason", reason).
		Msg("recording start failed")
	return fmt.Errorf("%w: %w", mapped, err)
}

// StopZone initiates the stop sequence for one zone. A session still in
// StateStarting is flagged instead; the start path stops it the moment the
// process registers. Stopping an idle zone returns ErrNotRecording.
func (o *Orchestrator) StopZone(_ context.Context, z zone.Zone) error {
	o.mu.Lock()
	s, ok := o.sessions[z]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRecording, z)
	}
	switch s.state {
	case StateStarting:
		s.stopRequested = true
		o.mu.Unlock()
		o.logger.Info().
			Str(zwlog.FieldZone, z.String()).
			Str(zwlog.FieldSessionID, s.id).
			Msg("stop flagged for starting session")
		return nil
	case StateStopping:
		o.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	o.mu.Unlock()

	o.wg.Add(1)
	go o.stopSession(s)
	return nil
}

// StopAll fans the stop out to every session. It returns the number of
// sessions signaled (including starting ones that were flagged) and never
// blocks on encoder exits.
func (o *Orchestrator) StopAll(_ context.Context) int {
	o.mu.Lock()
	var victims []*session
	signaled := 0
	for _, s := range o.sessions {
		switch s.state {
		case StateStarting:
			if !s.stopRequested {
				s.stopRequested = true
				signaled++
			}
		case StateActive:
			s.state = StateStopping
			victims = append(victims, s)
			signaled++
		}
	}
	o.mu.Unlock()

	for _, s := range victims {
		o.wg.Add(1)
		go o.stopSession(s)
	}
	return signaled
}

// stopSession owns the shutdown of one registered process and its
// finalization. It runs outside the lock; the encoder stop can take the
// full grace plus kill window.
func (o *Orchestrator) stopSession(s *session) {
	defer o.wg.Done()

	outcome := s.proc.Stop(o.cfg.StopGrace, o.cfg.StopKill)
	metrics.ObserveStopDuration(string(outcome.Mode), outcome.Duration)

	o.mu.Lock()
	if o.sessions[s.zone] == s {
		delete(o.sessions, s.zone)
	}
	if outcome.Degraded {
		o.degradedStops++
	}
	active := o.activeCountLocked()
	o.mu.Unlock()
	metrics.SetActiveSessions(active)

	label := OutcomeOK
	detail := ""
	if outcome.Degraded {
		label = OutcomeDegraded
		detail = fmt.Sprintf("stop escalated to %s", outcome.Mode)
	}
	if outcome.Err != nil && detail == "" {
		detail = outcome.Err.Error()
	}

	o.logger.Info().
		Str(zwlog.FieldZone, s.zone.String()).
		Str(zwlog.FieldSessionID, s.id).
		Str(zwlog.FieldOutcome, label).
		Str("stop_mode", string(outcome.Mode)).
		Dur(zwlog.FieldDuration, outcome.Duration).
		Msg("recording stopped")

	o.finalize(s, label, detail, outcome.Mode != encoder.StopGraceful)
}

// supervise watches for the process ending on its own. Solicited stops are
// finalized by their stopSession goroutine; this one only handles
// unexpected exits.
func (o *Orchestrator) supervise(s *session) {
	defer o.wg.Done()

	<-s.proc.Exited()

	o.mu.Lock()
	if s.state == StateStopping {
		o.mu.Unlock()
		return
	}
	if o.sessions[s.zone] == s {
		delete(o.sessions, s.zone)
	}
	active := o.activeCountLocked()
	o.mu.Unlock()
	metrics.SetActiveSessions(active)

	exitErr := s.proc.ExitErr()
	label := OutcomeOK
	detail := ""
	if exitErr != nil {
		label = OutcomeFailed
		detail = exitErr.Error()
		if tail := s.proc.Diagnostics(); len(tail) > 0 {
			detail += ": " + strings.Join(tail[max(0, len(tail)-3):], " | ")
		}
	}

	o.logger.Warn().
		Err(exitErr).
		Str(zwlog.FieldZone, s.zone.String()).
		Str(zwlog.FieldSessionID, s.id).
		Str(zwlog.FieldOutcome, label).
		Msg("encoder exited unexpectedly")

	o.finalize(s, label, detail, exitErr != nil)
}

// finalize records the end of a session: metrics, optional artifact repair,
// and the finished event for the journal.
func (o *Orchestrator) finalize(s *session, outcome, detail string, needsRepair bool) {
	endedAt := o.now()
	duration := endedAt.Sub(s.startedAt)
	metrics.IncSessionStopped(s.zone.String(), outcome)
	metrics.ObserveSessionDuration(s.zone.String(), duration)

	if needsRepair {
		if err := o.repair(o.baseCtx, s.output); err != nil {
			o.logger.Warn().
				Err(err).
				Str(zwlog.FieldZone, s.zone.String()).
				Str(zwlog.FieldOutput, s.output).
				Msg("artifact repair failed after non-graceful stop")
		}
	} else {
		metrics.IncArtifactRepair("skipped")
	}

	var size int64
	if info, err := os.Stat(s.output); err == nil {
		size = info.Size()
	}

	o.publish(bus.TopicRecordingFinished, bus.RecordingEvent{
		SessionID: s.id,
		Zone:      s.zone.String(),
		Device:    s.device,
		Output:    s.output,
		Codec:     s.codec,
		Outcome:   outcome,
		Detail:    detail,
		SizeBytes: size,
		StartedAt: s.startedAt,
		EndedAt:   endedAt,
	})
}

func (o *Orchestrator) publish(topic string, ev bus.RecordingEvent) {
	if o.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(o.baseCtx), 2*time.Second)
	defer cancel()
	if err := o.bus.Publish(ctx, topic, ev); err != nil {
		o.logger.Warn().Err(err).Str("topic", topic).Msg("lifecycle event dropped")
	}
}

// activeCountLocked counts sessions with a live encoder. Callers hold mu.
func (o *Orchestrator) activeCountLocked() int {
	n := 0
	for _, s := range o.sessions {
		if s.state == StateActive || s.state == StateStopping {
			n++
		}
	}
	return n
}

// ActiveCount reports how many sessions have a live encoder.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeCountLocked()
}

// Close stops every session and waits for the workers, bounded by ctx. It
// assumes event intake and the API stopped first, so no new starts race the
// shutdown.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.StopAll(ctx)

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		// Give up waiting; kill whatever is still running.
		o.cancel()
		return ctx.Err()
	}
}

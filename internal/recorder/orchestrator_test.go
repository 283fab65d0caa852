// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/zonewatch/internal/bus"
	"github.com/ManuGH/zonewatch/internal/encoder"
	"github.com/ManuGH/zonewatch/internal/sensor"
	"github.com/ManuGH/zonewatch/internal/zone"
)

// fakeProc stands in for a running encoder. Its Stop outcome is scripted so
// tests exercise graceful and escalated teardown without real processes.
type fakeProc struct {
	mu       sync.Mutex
	exitCh   chan struct{}
	exitErr  error
	stopMode encoder.StopMode
	stops    int
}

func newFakeProc() *fakeProc {
	return &fakeProc{exitCh: make(chan struct{}), stopMode: encoder.StopGraceful}
}

func (p *fakeProc) Exited() <-chan struct{} { return p.exitCh }

func (p *fakeProc) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *fakeProc) Diagnostics() []string { return nil }

func (p *fakeProc) PID() int { return 4242 }

func (p *fakeProc) Stop(_, _ time.Duration) encoder.StopOutcome {
	p.mu.Lock()
	p.stops++
	mode := p.stopMode
	p.mu.Unlock()

	p.exit(nil)
	return encoder.StopOutcome{Mode: mode, Degraded: mode != encoder.StopGraceful}
}

// exit simulates the encoder process ending on its own.
func (p *fakeProc) exit(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.exitCh:
		return
	default:
	}
	p.exitErr = err
	close(p.exitCh)
}

func (p *fakeProc) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

// startStep scripts one encoder start. A non-nil gate blocks Start until the
// test closes it, so events can be interleaved with an in-flight spawn.
type startStep struct {
	proc    *fakeProc
	err     error
	gate    chan struct{}
	entered chan struct{}
}

type stepStarter struct {
	mu    sync.Mutex
	steps []*startStep
	specs []encoder.Spec
}

func (s *stepStarter) push(step *startStep) *startStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
	return step
}

func (s *stepStarter) Start(ctx context.Context, spec encoder.Spec) (Process, error) {
	s.mu.Lock()
	if len(s.steps) == 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("unscripted encoder start for %s", spec.Zone)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	s.specs = append(s.specs, spec)
	s.mu.Unlock()

	if step.entered != nil {
		close(step.entered)
	}
	if step.gate != nil {
		select {
		case <-step.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.err != nil {
		return nil, step.err
	}
	return step.proc, nil
}

func (s *stepStarter) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.specs)
}

func (s *stepStarter) lastSpec() encoder.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.specs) == 0 {
		return encoder.Spec{}
	}
	return s.specs[len(s.specs)-1]
}

func testRegistry(t *testing.T, assignments map[string]string) *zone.Registry {
	t.Helper()
	reg, err := zone.NewRegistry(assignments)
	require.NoError(t, err)
	return reg
}

func newTestOrchestrator(t *testing.T, starter Starter, reg *zone.Registry, b bus.Bus) *Orchestrator {
	t.Helper()
	o := New(Config{
		OutputDir:  t.TempDir(),
		Codec:      "libx265",
		Resolution: "1280x720",
		Framerate:  30,
		Debounce:   2 * time.Second,
		StopGrace:  100 * time.Millisecond,
		StopKill:   50 * time.Millisecond,
	}, reg, starter, b)
	// Safety net for failing tests; Close is idempotent.
	t.Cleanup(func() { closeOrch(t, o) })
	return o
}

// closeOrch shuts the orchestrator down and joins its workers. Tests that
// verify goroutine hygiene defer it after the goleak check so it runs first.
func closeOrch(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Close(ctx); err != nil {
		t.Errorf("orchestrator close: %v", err)
	}
}

// fakeClock drives debounce stamps deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func waitForIdle(t *testing.T, o *Orchestrator, z zone.Zone) {
	t.Helper()
	require.Eventually(t, func() bool {
		return o.Snapshot().Zones[z.String()].State == StateIdle
	}, 2*time.Second, 5*time.Millisecond, "zone %s did not return to idle", z)
}

func TestStartZone_SingleSessionWithDerivedOutput(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stepStarter{}
	starter.push(&startStep{proc: newFakeProc()})

	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, nil)
	defer closeOrch(t, o)

	require.NoError(t, o.StartZone(context.Background(), zone.Entrada))

	st := o.Snapshot()
	zs := st.Zones["ENTRADA"]
	assert.Equal(t, StateActive, zs.State)
	assert.True(t, zs.Active)
	assert.Equal(t, "/dev/video0", zs.Device)
	assert.Equal(t, 1, st.ActiveCount)

	spec := starter.lastSpec()
	assert.Regexp(t, `entrada_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.mp4$`, spec.OutputPath)
	assert.Equal(t, "libx265", spec.Codec)
	assert.Equal(t, "/dev/video0", spec.Device)
}

func TestStartZone_UnknownZone(t *testing.T) {
	starter := &stepStarter{}
	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, nil)

	err := o.StartZone(context.Background(), zone.Bodega)
	require.ErrorIs(t, err, ErrUnknownZone)
	assert.Zero(t, starter.startCount())
}

func TestConcurrentAlerts_ExactlyOneSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stepStarter{}
	step := starter.push(&startStep{proc: newFakeProc(), gate: make(chan struct{}), entered: make(chan struct{})})

	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, nil)
	defer closeOrch(t, o)

	const callers = 8
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			errs <- o.StartZone(context.Background(), zone.Entrada)
		}()
	}

	// One caller is inside the spawn; every other one must end up with a
	// rejection, not a second reservation.
	<-step.entered
	close(step.gate)

	var ok, rejected int
	for i := 0; i < callers; i++ {
		if err := <-errs; err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, ErrDuplicateStart)
			rejected++
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, 1, starter.startCount())
	assert.Equal(t, 1, o.ActiveCount())
}

func TestDebounce_SuppressesBurstThenRecovers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stepStarter{}
	starter.push(&startStep{proc: newFakeProc()})
	starter.push(&startStep{proc: newFakeProc()})

	reg := testRegistry(t, map[string]string{"SALIDA": "/dev/video1"})
	o := newTestOrchestrator(t, starter, reg, nil)
	defer closeOrch(t, o)

	clock := &fakeClock{now: time.Now()}
	o.now = clock.Now

	require.NoError(t, o.StartZone(context.Background(), zone.Salida))
	require.NoError(t, o.StopZone(context.Background(), zone.Salida))
	waitForIdle(t, o, zone.Salida)

	// Still inside the window opened by the accepted start: suppressed.
	clock.Advance(500 * time.Millisecond)
	err := o.StartZone(context.Background(), zone.Salida)
	require.ErrorIs(t, err, ErrDebounced)

	// A suppressed attempt must not extend the window.
	clock.Advance(1600 * time.Millisecond)
	require.NoError(t, o.StartZone(context.Background(), zone.Salida))
	assert.Equal(t, 2, starter.startCount())
}

func TestHandleEvent_AlertBurstStartsOnce(t *testing.T) {
	starter := &stepStarter{}
	starter.push(&startStep{proc: newFakeProc()})

	reg := testRegistry(t, map[string]string{"BODEGA": "/dev/video2"})
	o := newTestOrchestrator(t, starter, reg, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		o.HandleEvent(ctx, sensor.Event{Type: sensor.TypeAlert, Zone: zone.Bodega})
	}

	assert.Equal(t, 1, starter.startCount())
	assert.Equal(t, 1, o.ActiveCount())
}

func TestDeviceConflict_FirstSessionUnaffected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stepStarter{}
	entradaProc := newFakeProc()
	starter.push(&startStep{proc: entradaProc})
	starter.push(&startStep{err: &encoder.StartError{Reason: encoder.ReasonDeviceBusy}})

	// Both zones share one physical camera.
	reg := testRegistry(t, map[string]string{
		"ENTRADA": "/dev/video0",
		"SALIDA":  "/dev/video0",
	})
	o := newTestOrchestrator(t, starter, reg, nil)
	defer closeOrch(t, o)

	require.NoError(t, o.StartZone(context.Background(), zone.Entrada))

	err := o.StartZone(context.Background(), zone.Salida)
	require.ErrorIs(t, err, ErrDeviceUnavailable)

	st := o.Snapshot()
	assert.Equal(t, StateActive, st.Zones["ENTRADA"].State)
	assert.Equal(t, StateIdle, st.Zones["SALIDA"].State)
	assert.Equal(t, 1, st.ActiveCount)
	assert.Equal(t, 0, entradaProc.stopCount())
}

func TestSpawnFailure_NoSessionRemains(t *testing.T) {
	starter := &stepStarter{}
	starter.push(&startStep{err: &encoder.StartError{Reason: encoder.ReasonSpawn}})

	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, nil)

	err := o.StartZone(context.Background(), zone.Entrada)
	require.ErrorIs(t, err, ErrSpawnFailure)

	st := o.Snapshot()
	assert.Equal(t, StateIdle, st.Zones["ENTRADA"].State)
	assert.Zero(t, st.ActiveCount)
}

func TestStopAll_DrivesEveryZoneIdle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stepStarter{}
	procs := []*fakeProc{newFakeProc(), newFakeProc(), newFakeProc()}
	for _, p := range procs {
		starter.push(&startStep{proc: p})
	}

	reg := testRegistry(t, map[string]string{
		"ENTRADA": "/dev/video0",
		"SALIDA":  "/dev/video1",
		"BODEGA":  "/dev/video2",
	})
	o := newTestOrchestrator(t, starter, reg, nil)
	defer closeOrch(t, o)

	ctx := context.Background()
	require.NoError(t, o.StartZone(ctx, zone.Entrada))
	require.NoError(t, o.StartZone(ctx, zone.Salida))
	require.NoError(t, o.StartZone(ctx, zone.Bodega))
	require.Equal(t, 3, o.ActiveCount())

	signaled := o.StopAll(ctx)
	assert.Equal(t, 3, signaled)

	for _, z := range []zone.Zone{zone.Entrada, zone.Salida, zone.Bodega} {
		waitForIdle(t, o, z)
	}
	assert.Zero(t, o.ActiveCount())
	for _, p := range procs {
		assert.Equal(t, 1, p.stopCount())
	}
}

func TestDeactivateDuringStart_StopsFreshSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stepStarter{}
	proc := newFakeProc()
	step := starter.push(&startStep{proc: proc, gate: make(chan struct{}), entered: make(chan struct{})})

	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, nil)
	defer closeOrch(t, o)

	done := make(chan error, 1)
	go func() {
		done <- o.StartZone(context.Background(), zone.Entrada)
	}()

	// The spawn is in flight; the deactivation must flag the session
	// instead of losing the race.
	<-step.entered
	o.HandleEvent(context.Background(), sensor.Event{Type: sensor.TypeDeactivate})
	close(step.gate)

	require.NoError(t, <-done)
	waitForIdle(t, o, zone.Entrada)
	assert.Equal(t, 1, proc.stopCount(), "session started after deactivate must be stopped immediately")
	assert.Zero(t, o.ActiveCount())
}

func TestStopZone_RoundTripClearsSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stepStarter{}
	starter.push(&startStep{proc: newFakeProc()})

	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, nil)
	defer closeOrch(t, o)

	require.NoError(t, o.StartZone(context.Background(), zone.Entrada))
	require.NoError(t, o.StopZone(context.Background(), zone.Entrada))

	waitForIdle(t, o, zone.Entrada)

	o.mu.Lock()
	_, exists := o.sessions[zone.Entrada]
	o.mu.Unlock()
	assert.False(t, exists, "session must leave the table after stop")
}

func TestStopZone_NotRecording(t *testing.T) {
	starter := &stepStarter{}
	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, nil)

	err := o.StopZone(context.Background(), zone.Entrada)
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestForcedStop_RecordsDegradedOutcome(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), bus.TopicRecordingFinished)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	starter := &stepStarter{}
	proc := newFakeProc()
	proc.stopMode = encoder.StopKilled
	starter.push(&startStep{proc: proc})

	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, b)
	defer closeOrch(t, o)

	require.NoError(t, o.StartZone(context.Background(), zone.Entrada))
	require.NoError(t, o.StopZone(context.Background(), zone.Entrada))
	waitForIdle(t, o, zone.Entrada)

	select {
	case msg := <-sub.C():
		ev, ok := msg.(bus.RecordingEvent)
		require.True(t, ok, "finished event has unexpected type %T", msg)
		assert.Equal(t, OutcomeDegraded, ev.Outcome)
		assert.Equal(t, "ENTRADA", ev.Zone)
		assert.NotEmpty(t, ev.Detail)
	case <-time.After(2 * time.Second):
		t.Fatal("no finished event published")
	}

	st := o.Snapshot()
	assert.Equal(t, StateIdle, st.Zones["ENTRADA"].State)
	assert.Equal(t, uint64(1), st.DegradedStops)
}

func TestUnexpectedExit_CleansUpSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := bus.NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), bus.TopicRecordingFinished)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	starter := &stepStarter{}
	proc := newFakeProc()
	starter.push(&startStep{proc: proc})

	reg := testRegistry(t, map[string]string{"SALIDA": "/dev/video1"})
	o := newTestOrchestrator(t, starter, reg, b)
	defer closeOrch(t, o)

	require.NoError(t, o.StartZone(context.Background(), zone.Salida))

	proc.exit(fmt.Errorf("exit status 1"))

	waitForIdle(t, o, zone.Salida)
	assert.Zero(t, o.ActiveCount())

	select {
	case msg := <-sub.C():
		ev, ok := msg.(bus.RecordingEvent)
		require.True(t, ok, "finished event has unexpected type %T", msg)
		assert.Equal(t, OutcomeFailed, ev.Outcome)
		assert.Equal(t, "SALIDA", ev.Zone)
	case <-time.After(2 * time.Second):
		t.Fatal("no finished event published")
	}
}

func TestHandleEvent_UnknownLineNoStateChange(t *testing.T) {
	starter := &stepStarter{}
	reg := testRegistry(t, map[string]string{"ENTRADA": "/dev/video0"})
	o := newTestOrchestrator(t, starter, reg, nil)

	before := o.Snapshot()
	o.HandleEvent(context.Background(), sensor.Event{Type: sensor.TypeUnknown, Raw: "garbage!!"})
	after := o.Snapshot()

	assert.Equal(t, before.ActiveCount, after.ActiveCount)
	assert.Equal(t, before.Zones, after.Zones)
	assert.Zero(t, starter.startCount())
}

func TestClose_StopsEverythingAndRejectsStarts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	starter := &stepStarter{}
	procA := newFakeProc()
	procB := newFakeProc()
	starter.push(&startStep{proc: procA})
	starter.push(&startStep{proc: procB})

	reg := testRegistry(t, map[string]string{
		"ENTRADA": "/dev/video0",
		"SALIDA":  "/dev/video1",
	})
	o := New(Config{
		OutputDir: t.TempDir(),
		Debounce:  time.Second,
		StopGrace: 100 * time.Millisecond,
		StopKill:  50 * time.Millisecond,
	}, reg, starter, nil)

	ctx := context.Background()
	require.NoError(t, o.StartZone(ctx, zone.Entrada))
	require.NoError(t, o.StartZone(ctx, zone.Salida))

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, o.Close(closeCtx))

	assert.Zero(t, o.ActiveCount())
	assert.Equal(t, 1, procA.stopCount())
	assert.Equal(t, 1, procB.stopCount())

	err := o.StartZone(ctx, zone.Entrada)
	require.ErrorIs(t, err, ErrClosed)
}

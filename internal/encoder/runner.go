// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package encoder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	zwlog "github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/procgroup"
)

// defaultStartupWindow is how long a freshly spawned encoder is observed for
// an early exit. A device conflict surfaces well inside this window; a
// process that outlives it is considered recording.
const defaultStartupWindow = 750 * time.Millisecond

const stderrRingSize = 100

// stopSentinel asks the encoder to finalize the container and exit.
const stopSentinel = "q\n"

// Executor spawns encoder processes.
type Executor struct {
	BinaryPath string
	Logger     zerolog.Logger

	// StartupWindow overrides the early-exit observation window. Zero
	// means the default.
	StartupWindow time.Duration
}

func NewExecutor(binaryPath string, logger zerolog.Logger) *Executor {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Executor{
		BinaryPath: binaryPath,
		Logger:     logger,
	}
}

// Start spawns the encoder for the spec. It blocks for at most the startup
// window: a process that dies inside it is classified into a StartError; one
// that survives is returned as a live Handle. Context cancellation during
// the window tears the process down.
func (e *Executor) Start(ctx context.Context, spec Spec) (*Handle, error) {
	args := BuildArgs(spec)

	cmd := exec.Command(e.BinaryPath, args...) // #nosec G204 -- binary path comes from validated config
	procgroup.Set(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &StartError{Reason: ReasonSpawn, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, &StartError{Reason: ReasonSpawn, Err: err}
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, &StartError{Reason: ReasonSpawn, Err: err}
	}

	h := &Handle{
		cmd:    cmd,
		stdin:  stdin,
		ring:   newRingBuffer(stderrRingSize),
		exited: make(chan struct{}),
	}
	go h.monitor(stderr)

	e.Logger.Debug().
		Int(zwlog.FieldPID, cmd.Process.Pid).
		Str(zwlog.FieldDevice, spec.Device).
		Str(zwlog.FieldCodec, spec.Codec).
		Str(zwlog.FieldOutput, spec.OutputPath).
		Strs("args", args).
		Msg("encoder process spawned")

	select {
	case <-h.exited:
		tail := strings.Join(h.Diagnostics(), "\n")
		reason := classifyStartFailure(tail)
		e.Logger.Warn().
			Err(h.ExitErr()).
			Str(zwlog.FieldDevice, spec.Device).
			Str("reason", string(reason)).
			Msg("encoder exited during startup")
		return nil, &StartError{Reason: reason, Stderr: tailLines(tail, 5), Err: h.ExitErr()}

	case <-ctx.Done():
		_ = procgroup.Kill(cmd, syscall.SIGKILL)
		<-h.exited
		return nil, ctx.Err()

	case <-time.After(e.startupWindow()):
		return h, nil
	}
}

func (e *Executor) startupWindow() time.Duration {
	if e.StartupWindow > 0 {
		return e.StartupWindow
	}
	return defaultStartupWindow
}

// StopMode names how an encoder came down.
type StopMode string

const (
	// StopGraceful means the stop sentinel was honored in time.
	StopGraceful StopMode = "graceful"
	// StopTerminated means the grace window elapsed and SIGTERM ended it.
	StopTerminated StopMode = "terminated"
	// StopKilled means SIGKILL was required.
	StopKilled StopMode = "killed"
)

// StopOutcome summarizes a stop: how the process came down, whether the
// artifact may be truncated, and the exit error if any.
type StopOutcome struct {
	Mode     StopMode
	Degraded bool
	Err      error
	Duration time.Duration
}

// Handle supervises one running encoder process. Exited closes when the
// process is gone; ExitErr is valid after that.
type Handle struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	ring   *ringBuffer
	exited chan struct{}

	mu      sync.Mutex
	exitErr error
}

func (h *Handle) monitor(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)
	for scanner.Scan() {
		h.ring.Add(scanner.Text())
	}

	err := h.cmd.Wait()
	h.mu.Lock()
	h.exitErr = err
	h.mu.Unlock()
	_ = h.stdin.Close()
	close(h.exited)
}

// Exited closes once the process has been reaped.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

// ExitErr returns the process exit error. Only meaningful after Exited.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Diagnostics returns the buffered stderr tail, oldest line first.
func (h *Handle) Diagnostics() []string {
	return h.ring.GetAll()
}

// PID returns the encoder process id.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Stop brings the encoder down. It writes the stop sentinel and waits up to
// grace for a clean exit; past that it escalates to SIGTERM and finally
// SIGKILL, waiting up to kill between the two. Stops past the sentinel mark
// the artifact degraded.
func (h *Handle) Stop(grace, kill time.Duration) StopOutcome {
	begin := time.Now()

	select {
	case <-h.exited:
		// Already gone; nothing to signal.
		return StopOutcome{Mode: StopGraceful, Degraded: h.ExitErr() != nil, Err: h.ExitErr()}
	default:
	}

	h.writeSentinel()

	select {
	case <-h.exited:
		err := h.ExitErr()
		return StopOutcome{
			Mode:     StopGraceful,
			Degraded: err != nil,
			Err:      err,
			Duration: time.Since(begin),
		}
	case <-time.After(grace):
	}

	// Sentinel ignored; hand the process group to the signal escalation.
	errCh := make(chan error, 1)
	go func() {
		<-h.exited
		errCh <- h.ExitErr()
	}()
	err := procgroup.Terminate(h.cmd, errCh, kill)

	mode := StopTerminated
	if exitedBy(err, syscall.SIGKILL) {
		mode = StopKilled
	}
	return StopOutcome{
		Mode:     mode,
		Degraded: true,
		Err:      err,
		Duration: time.Since(begin),
	}
}

func (h *Handle) writeSentinel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	// A write to a dead process is fine; escalation takes over.
	_, _ = io.WriteString(h.stdin, stopSentinel)
}

// exitedBy reports whether the exit error records death by the given signal.
func exitedBy(err error, sig syscall.Signal) bool {
	if err == nil {
		return false
	}
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return false
	}
	status, ok := ee.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return status.Signaled() && status.Signal() == sig
}

func tailLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

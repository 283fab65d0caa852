// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/zonewatch/internal/metrics"
)

// Terminate escalates a stop on the process group: SIGTERM first, then
// SIGKILL if the process has not exited within grace. waitCh must carry the
// result of the cmd.Wait already in flight; Terminate always consumes it so
// the child is reaped. Safe to call with a nil command.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	signalGroup(cmd, syscall.SIGTERM, "SIGTERM")

	select {
	case err := <-waitCh:
		if err == nil {
			metrics.IncProcWait("exit0")
		} else {
			metrics.IncProcWait("exit_nonzero")
		}
		return err
	case <-time.After(grace):
	}

	// An encoder that ignores SIGTERM (stalled v4l2 read, full pipe) gets no
	// second chance. SIGKILL cannot be blocked, so the drain below returns.
	signalGroup(cmd, syscall.SIGKILL, "SIGKILL")

	err := <-waitCh
	if err == nil {
		metrics.IncProcWait("forced_exit0")
	} else {
		metrics.IncProcWait("forced_error")
	}
	return err
}

// signalGroup delivers sig to the whole group and accounts for the outcome.
// A process that already exited surfaces as ESRCH, which is not a failure.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal, name string) {
	err := Kill(cmd, sig)
	switch {
	case err == nil:
		metrics.IncProcTerminate(name, "sent")
	case strings.Contains(err.Error(), "process already finished"),
		strings.Contains(err.Error(), "no such process"):
		metrics.IncProcTerminate(name, "esrch")
	default:
		metrics.IncProcTerminate(name, "error")
	}
}

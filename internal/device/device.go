// Package device discovers local capture devices and probes the encoder
// capabilities of the ffmpeg build, so zone assignments can be checked and the
// best available codec picked without hardcoding hardware assumptions.
package device

import (
	"context"
	"os/exec"
)

// Device is one capture device as seen by discovery. Name is the human
// readable label from the ffmpeg source listing when available.
type Device struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

// Runner executes external probe commands. The seam exists so tests feed
// canned ffmpeg output instead of spawning processes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs probe commands with os/exec. Output is combined because
// ffmpeg splits listings between stdout and stderr depending on the build.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- name comes from validated config, args are fixed probe flags
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

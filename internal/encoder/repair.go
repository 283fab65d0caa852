// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	zwlog "github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/metrics"
)

// Typed repair failures for callers that branch on the artifact state.
var (
	// ErrTruncatedContainer means the moov atom never made it to disk;
	// the recording is not salvageable by a stream copy.
	ErrTruncatedContainer = errors.New("container truncated: moov atom missing")
	// ErrInvalidData means the artifact is corrupt beyond remuxing.
	ErrInvalidData = errors.New("artifact contains invalid data")
)

// Warnings a stream copy emits on a recording that was cut short. The remux
// still produces a playable file, so these do not fail the repair.
var repairNonFatal = []string{
	"Packet corrupt",
	"corrupt input packet",
	"incomplete frame",
	"PES packet size mismatch",
	"corrupt decoded frame",
}

var repairFatalPatterns = []struct {
	regex *regexp.Regexp
	err   error
}{
	{regexp.MustCompile(`(?i)moov atom not found`), ErrTruncatedContainer},
	{regexp.MustCompile(`(?i)could not find corresponding trex`), ErrTruncatedContainer},
	{regexp.MustCompile(`(?i)invalid data found when processing input`), ErrInvalidData},
	{regexp.MustCompile(`(?i)error reading header`), ErrInvalidData},
}

// Repair re-finalizes an artifact that may not have been cleanly closed by
// remuxing it with a stream copy, then atomically replaces the original.
// The source artifact stays untouched when the remux fails.
func Repair(ctx context.Context, bin, path string, logger zerolog.Logger) error {
	tmp := path + ".repair.mp4"
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", path,
		"-c", "copy",
		"-movflags", "+faststart",
		tmp,
	}

	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204 -- binary path comes from validated config
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if cerr := classifyRepairError(stderr.String(), runErr); cerr != nil {
			_ = os.Remove(tmp)
			metrics.IncArtifactRepair("failed")
			logger.Warn().
				Err(cerr).
				Str(zwlog.FieldPath, path).
				Str("stderr", tailLines(stderr.String(), 5)).
				Msg("artifact repair failed")
			return cerr
		}
		// Only non-fatal corruption warnings; the remuxed file is usable.
	}

	info, err := os.Stat(tmp)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(tmp)
		metrics.IncArtifactRepair("failed")
		return fmt.Errorf("repair produced no artifact for %s", path)
	}

	// Rename within the same directory is atomic; readers see either the
	// old artifact or the repaired one.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		metrics.IncArtifactRepair("failed")
		return fmt.Errorf("replace artifact %s: %w", path, err)
	}

	metrics.IncArtifactRepair("repaired")
	logger.Info().
		Str(zwlog.FieldPath, path).
		Int64("size_bytes", info.Size()).
		Msg("artifact repaired")
	return nil
}

// classifyRepairError maps remux stderr onto typed errors. Nil means the
// failure was only cosmetic and the output is still usable.
func classifyRepairError(stderr string, runErr error) error {
	for _, p := range repairFatalPatterns {
		if p.regex.MatchString(stderr) {
			return p.err
		}
	}
	for _, pattern := range repairNonFatal {
		if strings.Contains(stderr, pattern) {
			return nil
		}
	}
	exitCode := -1
	var ee *exec.ExitError
	if errors.As(runErr, &ee) {
		exitCode = ee.ExitCode()
	}
	return fmt.Errorf("repair remux failed (exit %d): %w", exitCode, runErr)
}

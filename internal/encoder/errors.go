// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package encoder

import (
	"fmt"
	"regexp"
)

// Reason classifies why an encoder start failed.
type Reason string

const (
	// ReasonDeviceBusy means the capture device is exclusively held by
	// another process, usually an already-running recording.
	ReasonDeviceBusy Reason = "device_busy"
	// ReasonDeviceUnavailable means the device is missing or not readable.
	ReasonDeviceUnavailable Reason = "device_unavailable"
	// ReasonSpawn covers everything else: missing binary, bad arguments,
	// immediate crashes without a recognizable device error.
	ReasonSpawn Reason = "spawn"
)

// StartError reports a failed encoder start with the classified reason and
// the stderr tail that led to the classification.
type StartError struct {
	Reason Reason
	Stderr string
	Err    error
}

func (e *StartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encoder start failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("encoder start failed (%s)", e.Reason)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// DeviceRelated reports whether the failure traces back to the capture
// device rather than the encoder binary itself.
func (e *StartError) DeviceRelated() bool {
	return e.Reason == ReasonDeviceBusy || e.Reason == ReasonDeviceUnavailable
}

// startFailurePatterns maps stderr fragments from a dying encoder onto
// reasons. First match wins; order busy checks before generic ones.
var startFailurePatterns = []struct {
	regex  *regexp.Regexp
	reason Reason
}{
	{regexp.MustCompile(`(?i)device or resource busy`), ReasonDeviceBusy},
	{regexp.MustCompile(`(?i)resource busy`), ReasonDeviceBusy},
	{regexp.MustCompile(`(?i)already in use`), ReasonDeviceBusy},
	{regexp.MustCompile(`(?i)no such device`), ReasonDeviceUnavailable},
	{regexp.MustCompile(`(?i)no such file or directory`), ReasonDeviceUnavailable},
	{regexp.MustCompile(`(?i)cannot open video device`), ReasonDeviceUnavailable},
	{regexp.MustCompile(`(?i)not a video capture device`), ReasonDeviceUnavailable},
	{regexp.MustCompile(`(?i)permission denied`), ReasonDeviceUnavailable},
	{regexp.MustCompile(`(?i)inappropriate ioctl`), ReasonDeviceUnavailable},
}

// classifyStartFailure inspects the stderr tail of an encoder that exited
// during startup.
func classifyStartFailure(stderr string) Reason {
	for _, p := range startFailurePatterns {
		if p.regex.MatchString(stderr) {
			return p.reason
		}
	}
	return ReasonSpawn
}

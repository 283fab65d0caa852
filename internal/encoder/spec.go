// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package encoder wraps the external video encoder subprocess: argument
// construction, lifecycle supervision, graceful stop, and artifact repair.
package encoder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ManuGH/zonewatch/internal/zone"
)

// Spec describes one recording the encoder should produce.
type Spec struct {
	// Device is the capture device selector, e.g. /dev/video0.
	Device string
	// Zone is carried for logging and output naming.
	Zone zone.Zone
	// OutputPath is the absolute artifact path.
	OutputPath string
	// Codec is the encoder name, e.g. hevc_nvenc or libx265.
	Codec string
	// Resolution in WIDTHxHEIGHT form, e.g. 1280x720. Empty keeps the
	// device default.
	Resolution string
	// Framerate in frames per second. Zero keeps the device default.
	Framerate int
	// InputFormat is the demuxer for the capture device, e.g. v4l2.
	InputFormat string
}

// OutputPath derives the artifact path for a zone recording started at the
// given time: <dir>/<zone>_<timestamp>.mp4.
func OutputPath(dir string, z zone.Zone, at time.Time) string {
	name := fmt.Sprintf("%s_%s.mp4", z.Slug(), at.Format("2006-01-02_15-04-05"))
	return filepath.Join(dir, name)
}

// BuildArgs converts a spec into the encoder argument list. Input options
// precede -i so they apply to the capture device, not the output.
func BuildArgs(spec Spec) []string {
	args := []string{"-hide_banner", "-loglevel", "warning", "-nostats"}
	args = append(args, inputArgs(spec)...)
	args = append(args, codecArgs(spec.Codec)...)
	args = append(args, "-an", "-movflags", "+faststart", "-y", spec.OutputPath)
	return args
}

func inputArgs(spec Spec) []string {
	args := []string{
		"-fflags", "+nobuffer+flush_packets",
		"-flags", "low_delay",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-f", spec.InputFormat,
	}
	if spec.Framerate > 0 {
		args = append(args, "-framerate", strconv.Itoa(spec.Framerate))
	}
	if spec.Resolution != "" {
		args = append(args, "-video_size", spec.Resolution)
	}
	return append(args, "-i", spec.Device)
}

// codecArgs maps the codec name onto its tuning flags. The hardware encoders
// get low-latency settings matching a live capture source; libx265 is the
// software fallback that works everywhere.
func codecArgs(codec string) []string {
	switch codec {
	case "hevc_nvenc":
		return []string{
			"-c:v", "hevc_nvenc",
			"-preset", "p5",
			"-tune", "ll",
			"-rc", "constqp",
			"-qp", "23",
			"-pix_fmt", "yuv420p",
		}
	case "hevc_vaapi":
		return []string{
			"-vaapi_device", "/dev/dri/renderD128",
			"-vf", "format=nv12,hwupload",
			"-c:v", "hevc_vaapi",
			"-qp", "23",
		}
	default:
		return []string{
			"-c:v", "libx265",
			"-preset", "veryfast",
			"-tune", "zerolatency",
			"-pix_fmt", "yuv420p",
		}
	}
}

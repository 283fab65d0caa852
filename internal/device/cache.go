package device

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	zwlog "github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/metrics"
)

// Config parameterizes discovery and the codec probe.
type Config struct {
	// FFmpegBin is the encoder binary. Empty means "ffmpeg" from PATH.
	FFmpegBin string
	// InputFormat is the capture demuxer to list sources for, e.g. v4l2.
	InputFormat string
	// Glob matches candidate device nodes, e.g. /dev/video*.
	Glob string
	// CodecOverride pins the encoder and skips the capability probe.
	CodecOverride string
	// TTL is how long a discovery result stays fresh for Devices.
	TTL time.Duration
	// Runner executes the ffmpeg probes. Nil uses ExecRunner.
	Runner Runner
}

// Snapshot is a discovery result with its probe time, served by the API.
type Snapshot struct {
	Devices  []Device  `json:"devices"`
	ProbedAt time.Time `json:"probed_at"`
}

// Cache holds discovery results and the probed codec. Concurrent refreshes
// collapse into one probe via singleflight.
type Cache struct {
	cfg    Config
	logger zerolog.Logger

	group singleflight.Group

	mu       sync.RWMutex
	devices  []Device
	probedAt time.Time
	codec    string
}

// NewCache applies defaults and returns an empty cache; nothing is probed
// until the first Devices, Refresh, or PickCodec call.
func NewCache(cfg Config) *Cache {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "v4l2"
	}
	if cfg.Glob == "" {
		cfg.Glob = "/dev/video*"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	return &Cache{
		cfg:    cfg,
		logger: zwlog.WithComponent("device"),
	}
}

// Devices returns the cached discovery result, probing only when the cache
// is empty or stale.
func (c *Cache) Devices(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	if !c.probedAt.IsZero() && time.Since(c.probedAt) < c.cfg.TTL {
		snap := Snapshot{Devices: c.devices, ProbedAt: c.probedAt}
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()
	return c.Refresh(ctx)
}

// Refresh probes unconditionally. Concurrent callers share one probe.
func (c *Cache) Refresh(ctx context.Context) (Snapshot, error) {
	v, err, _ := c.group.Do("discover", func() (interface{}, error) {
		devices, err := c.Discover(ctx)
		if err != nil {
			return nil, err
		}
		at := time.Now()
		c.mu.Lock()
		c.devices = devices
		c.probedAt = at
		c.mu.Unlock()
		metrics.SetDevicesDiscovered(len(devices))
		return Snapshot{Devices: devices, ProbedAt: at}, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

// Discover lists capture devices. The filesystem scan is authoritative for
// presence; the ffmpeg source listing contributes labels and any device the
// glob missed. A failing ffmpeg probe degrades to the bare scan, it never
// fails discovery.
func (c *Cache) Discover(ctx context.Context) ([]Device, error) {
	paths, err := filepath.Glob(c.cfg.Glob)
	if err != nil {
		metrics.IncDeviceProbe("glob_error")
		return nil, fmt.Errorf("device glob %q: %w", c.cfg.Glob, err)
	}

	names, ffmpegErr := c.listSources(ctx)
	if ffmpegErr != nil {
		metrics.IncDeviceProbe("degraded")
		c.logger.Debug().Err(ffmpegErr).Msg("ffmpeg source listing unavailable, using bare device scan")
	} else {
		metrics.IncDeviceProbe("ok")
	}

	known := make(map[string]struct{}, len(paths))
	devices := make([]Device, 0, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
		devices = append(devices, Device{Path: p, Name: names[p]})
	}
	for p, name := range names {
		if _, ok := known[p]; !ok {
			devices = append(devices, Device{Path: p, Name: name})
		}
	}

	// video2 sorts before video10.
	sort.Slice(devices, func(i, j int) bool {
		a, b := devices[i].Path, devices[j].Path
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return devices, nil
}

func (c *Cache) listSources(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := c.cfg.Runner.Run(ctx, c.cfg.FFmpegBin, "-hide_banner", "-sources", c.cfg.InputFormat)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -sources %s: %w", c.cfg.InputFormat, err)
	}
	return parseSources(out), nil
}

// PickCodec returns the configured override, or walks the capability ladder
// against the encoders compiled into the ffmpeg build. The result is cached
// for the process lifetime; probe failure falls back to the software codec
// and is never fatal.
func (c *Cache) PickCodec(ctx context.Context) string {
	if c.cfg.CodecOverride != "" {
		return c.cfg.CodecOverride
	}

	c.mu.RLock()
	if c.codec != "" {
		picked := c.codec
		c.mu.RUnlock()
		return picked
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do("codec", func() (interface{}, error) {
		picked := c.probeCodec(ctx)
		c.mu.Lock()
		c.codec = picked
		c.mu.Unlock()
		return picked, nil
	})
	return v.(string)
}

func (c *Cache) probeCodec(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := c.cfg.Runner.Run(ctx, c.cfg.FFmpegBin, "-hide_banner", "-encoders")
	if err != nil {
		c.logger.Warn().Err(err).
			Str(zwlog.FieldCodec, CodecFallback).
			Msg("encoder capability probe failed, using software codec")
		return CodecFallback
	}

	available := parseEncoders(out)
	for _, name := range codecLadder {
		if available[name] {
			c.logger.Info().Str(zwlog.FieldCodec, name).Msg("encoder selected by capability probe")
			return name
		}
	}
	c.logger.Warn().
		Str(zwlog.FieldCodec, CodecFallback).
		Msg("no ladder encoder found in ffmpeg build, using software codec")
	return CodecFallback
}

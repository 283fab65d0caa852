// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for zonewatch.
package config

import (
	"strings"

	"github.com/ManuGH/zonewatch/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("Log.Level", err.Error(), cfg.Log.Level)
	}

	v.Directory("DataDir", cfg.DataDir, false)

	v.ListenAddr("Server.Listen", cfg.Server.Listen)
	if cfg.Server.MetricsListen != "" {
		v.ListenAddr("Server.MetricsListen", cfg.Server.MetricsListen)
	}
	v.Positive("Server.RateLimitRPS", cfg.Server.RateLimitRPS)
	v.Positive("Server.RateLimitBurst", cfg.Server.RateLimitBurst)
	if cfg.Server.ShutdownTimeout <= 0 {
		v.AddError("Server.ShutdownTimeout", "must be positive", cfg.Server.ShutdownTimeout)
	}

	// The sensor transport is the daemon's input; without it nothing records.
	if strings.TrimSpace(cfg.Transport.Addr) == "" {
		v.AddError("Transport.Addr",
			"transport address is required (set ZONEWATCH_TRANSPORT_ADDR or transport.addr)",
			cfg.Transport.Addr)
	} else {
		v.HostPort("Transport.Addr", cfg.Transport.Addr)
	}
	v.NonNegative("Transport.ReconnectAttempts", cfg.Transport.ReconnectAttempts)
	if cfg.Transport.DialTimeout <= 0 {
		v.AddError("Transport.DialTimeout", "must be positive", cfg.Transport.DialTimeout)
	}
	if cfg.Transport.ReconnectBackoff < 0 {
		v.AddError("Transport.ReconnectBackoff", "cannot be negative", cfg.Transport.ReconnectBackoff)
	}
	if cfg.Transport.SettleDelay < 0 {
		v.AddError("Transport.SettleDelay", "cannot be negative", cfg.Transport.SettleDelay)
	}

	v.NotEmpty("Recording.FFmpegBin", cfg.Recording.FFmpegBin)
	v.NotEmpty("Recording.InputFormat", cfg.Recording.InputFormat)
	v.Resolution("Recording.Resolution", cfg.Recording.Resolution)
	v.Positive("Recording.Framerate", cfg.Recording.Framerate)
	if cfg.Recording.Debounce < 0 {
		v.AddError("Recording.Debounce", "cannot be negative", cfg.Recording.Debounce)
	}
	if cfg.Recording.StopGraceTimeout <= 0 {
		v.AddError("Recording.StopGraceTimeout", "must be positive", cfg.Recording.StopGraceTimeout)
	}
	if cfg.Recording.StopKillTimeout <= 0 {
		v.AddError("Recording.StopKillTimeout", "must be positive", cfg.Recording.StopKillTimeout)
	}
	v.Positive("Recording.MaxConcurrentStarts", cfg.Recording.MaxConcurrentStarts)

	v.NotEmpty("Zones.File", cfg.Zones.File)

	if cfg.Journal.Enabled {
		v.NotEmpty("Journal.Path", cfg.Journal.Path)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.AddError("Telemetry.SamplingRate", "must be between 0.0 and 1.0", cfg.Telemetry.SamplingRate)
	}

	return v.Err()
}

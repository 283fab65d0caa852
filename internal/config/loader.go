// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied before file and environment overrides.
const (
	DefaultListen          = ":8080"
	DefaultMetricsListen   = ":9108"
	DefaultDataDir         = "./recordings"
	DefaultZonesFile       = "zones.json"
	DefaultFFmpegBin       = "ffmpeg"
	DefaultInputFormat     = "v4l2"
	DefaultResolution      = "1280x720"
	DefaultFramerate       = 30
	DefaultDebounce        = 2 * time.Second
	DefaultStopGrace       = 10 * time.Second
	DefaultStopKill        = 5 * time.Second
	DefaultDialTimeout     = 5 * time.Second
	DefaultReconnects      = 3
	DefaultReconnectWait   = 2 * time.Second
	DefaultSettleDelay     = 100 * time.Millisecond
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultShutdownTimeout = 15 * time.Second
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load resolves the configuration: defaults, then file (strict YAML), then
// environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	mergeEnvConfig(&cfg)

	// Journal path defaults into the data dir once that is final.
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.DataDir, "journal.db")
	}
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		DataDir: DefaultDataDir,
		Log:     LogConfig{Level: "info"},
		Server: ServerConfig{
			Listen:          DefaultListen,
			MetricsListen:   DefaultMetricsListen,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Transport: TransportConfig{
			DialTimeout:       DefaultDialTimeout,
			ReconnectAttempts: DefaultReconnects,
			ReconnectBackoff:  DefaultReconnectWait,
			SettleDelay:       DefaultSettleDelay,
		},
		Recording: RecordingConfig{
			FFmpegBin:           DefaultFFmpegBin,
			InputFormat:         DefaultInputFormat,
			Resolution:          DefaultResolution,
			Framerate:           DefaultFramerate,
			Debounce:            DefaultDebounce,
			StopGraceTimeout:    DefaultStopGrace,
			StopKillTimeout:     DefaultStopKill,
			MaxConcurrentStarts: 4,
		},
		Zones:   ZonesConfig{File: DefaultZonesFile, Watch: true},
		Journal: JournalConfig{Enabled: true},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, file *FileConfig) error {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setDur := func(field string, dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", field, *src, err)
		}
		*dst = d
		return nil
	}

	setStr(&cfg.DataDir, file.DataDir)
	setStr(&cfg.Log.Level, file.Log.Level)

	setStr(&cfg.Server.Listen, file.Server.Listen)
	setStr(&cfg.Server.MetricsListen, file.Server.MetricsListen)
	setInt(&cfg.Server.RateLimitRPS, file.Server.RateLimitRPS)
	setInt(&cfg.Server.RateLimitBurst, file.Server.RateLimitBurst)
	if err := setDur("server.read_timeout", &cfg.Server.ReadTimeout, file.Server.ReadTimeout); err != nil {
		return err
	}
	if err := setDur("server.write_timeout", &cfg.Server.WriteTimeout, file.Server.WriteTimeout); err != nil {
		return err
	}
	if err := setDur("server.idle_timeout", &cfg.Server.IdleTimeout, file.Server.IdleTimeout); err != nil {
		return err
	}
	setInt(&cfg.Server.MaxHeaderBytes, file.Server.MaxHeaderBytes)
	if err := setDur("server.shutdown_timeout", &cfg.Server.ShutdownTimeout, file.Server.ShutdownTimeout); err != nil {
		return err
	}
	setBool(&cfg.Server.ReadyRequiresIngest, file.Server.ReadyRequiresIngest)

	setStr(&cfg.Transport.Addr, file.Transport.Addr)
	if err := setDur("transport.dial_timeout", &cfg.Transport.DialTimeout, file.Transport.DialTimeout); err != nil {
		return err
	}
	setInt(&cfg.Transport.ReconnectAttempts, file.Transport.ReconnectAttempts)
	if err := setDur("transport.reconnect_backoff", &cfg.Transport.ReconnectBackoff, file.Transport.ReconnectBackoff); err != nil {
		return err
	}
	if err := setDur("transport.settle_delay", &cfg.Transport.SettleDelay, file.Transport.SettleDelay); err != nil {
		return err
	}

	setStr(&cfg.Recording.FFmpegBin, file.Recording.FFmpegBin)
	setStr(&cfg.Recording.InputFormat, file.Recording.InputFormat)
	setStr(&cfg.Recording.Codec, file.Recording.Codec)
	setStr(&cfg.Recording.Resolution, file.Recording.Resolution)
	setInt(&cfg.Recording.Framerate, file.Recording.Framerate)
	if err := setDur("recording.debounce", &cfg.Recording.Debounce, file.Recording.Debounce); err != nil {
		return err
	}
	if err := setDur("recording.stop_grace_timeout", &cfg.Recording.StopGraceTimeout, file.Recording.StopGraceTimeout); err != nil {
		return err
	}
	if err := setDur("recording.stop_kill_timeout", &cfg.Recording.StopKillTimeout, file.Recording.StopKillTimeout); err != nil {
		return err
	}
	setInt(&cfg.Recording.MaxConcurrentStarts, file.Recording.MaxConcurrentStarts)

	setStr(&cfg.Zones.File, file.Zones.File)
	setBool(&cfg.Zones.Watch, file.Zones.Watch)

	setBool(&cfg.Journal.Enabled, file.Journal.Enabled)
	setStr(&cfg.Journal.Path, file.Journal.Path)

	setBool(&cfg.Telemetry.Enabled, file.Telemetry.Enabled)
	setStr(&cfg.Telemetry.Endpoint, file.Telemetry.Endpoint)
	setStr(&cfg.Telemetry.Exporter, file.Telemetry.Exporter)
	if file.Telemetry.SamplingRate != nil {
		cfg.Telemetry.SamplingRate = *file.Telemetry.SamplingRate
	}
	setStr(&cfg.Telemetry.Environment, file.Telemetry.Environment)

	return nil
}

// mergeEnvConfig applies ZONEWATCH_* environment overrides. Each parser uses
// the current (default or file-provided) value as its fallback, which yields
// the documented precedence.
func mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = ParseString("ZONEWATCH_DATA_DIR", cfg.DataDir)
	cfg.Log.Level = ParseString("ZONEWATCH_LOG_LEVEL", cfg.Log.Level)

	cfg.Server.Listen = ParseString("ZONEWATCH_LISTEN", cfg.Server.Listen)
	cfg.Server.MetricsListen = ParseString("ZONEWATCH_METRICS_LISTEN", cfg.Server.MetricsListen)
	cfg.Server.RateLimitRPS = ParseInt("ZONEWATCH_RATE_LIMIT_RPS", cfg.Server.RateLimitRPS)
	cfg.Server.RateLimitBurst = ParseInt("ZONEWATCH_RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)
	cfg.Server.ReadTimeout = ParseDuration("ZONEWATCH_SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = ParseDuration("ZONEWATCH_SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = ParseDuration("ZONEWATCH_SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.MaxHeaderBytes = ParseInt("ZONEWATCH_SERVER_MAX_HEADER_BYTES", cfg.Server.MaxHeaderBytes)
	cfg.Server.ShutdownTimeout = ParseDuration("ZONEWATCH_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.ReadyRequiresIngest = ParseBool("ZONEWATCH_READY_REQUIRES_INGEST", cfg.Server.ReadyRequiresIngest)

	cfg.Transport.Addr = ParseString("ZONEWATCH_TRANSPORT_ADDR", cfg.Transport.Addr)
	cfg.Transport.DialTimeout = ParseDuration("ZONEWATCH_TRANSPORT_DIAL_TIMEOUT", cfg.Transport.DialTimeout)
	cfg.Transport.ReconnectAttempts = ParseInt("ZONEWATCH_TRANSPORT_RECONNECT_ATTEMPTS", cfg.Transport.ReconnectAttempts)
	cfg.Transport.ReconnectBackoff = ParseDuration("ZONEWATCH_TRANSPORT_RECONNECT_BACKOFF", cfg.Transport.ReconnectBackoff)
	cfg.Transport.SettleDelay = ParseDuration("ZONEWATCH_TRANSPORT_SETTLE_DELAY", cfg.Transport.SettleDelay)

	cfg.Recording.FFmpegBin = ParseString("ZONEWATCH_FFMPEG_BIN", cfg.Recording.FFmpegBin)
	cfg.Recording.InputFormat = ParseString("ZONEWATCH_INPUT_FORMAT", cfg.Recording.InputFormat)
	cfg.Recording.Codec = ParseString("ZONEWATCH_CODEC", cfg.Recording.Codec)
	cfg.Recording.Resolution = ParseString("ZONEWATCH_RESOLUTION", cfg.Recording.Resolution)
	cfg.Recording.Framerate = ParseInt("ZONEWATCH_FRAMERATE", cfg.Recording.Framerate)
	cfg.Recording.Debounce = ParseDuration("ZONEWATCH_DEBOUNCE", cfg.Recording.Debounce)
	cfg.Recording.StopGraceTimeout = ParseDuration("ZONEWATCH_STOP_GRACE_TIMEOUT", cfg.Recording.StopGraceTimeout)
	cfg.Recording.StopKillTimeout = ParseDuration("ZONEWATCH_STOP_KILL_TIMEOUT", cfg.Recording.StopKillTimeout)
	cfg.Recording.MaxConcurrentStarts = ParseInt("ZONEWATCH_MAX_CONCURRENT_STARTS", cfg.Recording.MaxConcurrentStarts)

	cfg.Zones.File = ParseString("ZONEWATCH_ZONES_FILE", cfg.Zones.File)
	cfg.Zones.Watch = ParseBool("ZONEWATCH_ZONES_WATCH", cfg.Zones.Watch)

	cfg.Journal.Enabled = ParseBool("ZONEWATCH_JOURNAL_ENABLED", cfg.Journal.Enabled)
	cfg.Journal.Path = ParseString("ZONEWATCH_JOURNAL_PATH", cfg.Journal.Path)

	cfg.Telemetry.Enabled = ParseBool("ZONEWATCH_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = ParseString("ZONEWATCH_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Exporter = ParseString("ZONEWATCH_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.SamplingRate = ParseFloat("ZONEWATCH_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString("ZONEWATCH_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
}

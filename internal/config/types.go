// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
// Precedence: ENV > file > defaults (see Loader.Load).
type AppConfig struct {
	Version string

	// DataDir is the root for recording artifacts.
	DataDir string

	Log       LogConfig
	Server    ServerConfig
	Transport TransportConfig
	Recording RecordingConfig
	Zones     ZonesConfig
	Journal   JournalConfig
	Telemetry TelemetryConfig
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level string // trace|debug|info|warn|error
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Listen          string // API listener address
	MetricsListen   string // Prometheus listener address ("" disables)
	RateLimitRPS    int    // per-IP request budget for the API
	RateLimitBurst  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration

	// ReadyRequiresIngest makes /readyz fail while the sensor ingestion
	// loop is down. Off by default: a dead ingest loop still leaves the
	// command API fully operational.
	ReadyRequiresIngest bool
}

// TransportConfig describes the sensor line transport.
type TransportConfig struct {
	// Addr is the serial-over-TCP bridge address (host:port).
	Addr              string
	DialTimeout       time.Duration
	ReconnectAttempts int           // bounded retries before the ingest loop gives up
	ReconnectBackoff  time.Duration // fixed delay between reconnect attempts
	SettleDelay       time.Duration // pause after each outbound command write
}

// RecordingConfig controls encoder sessions.
type RecordingConfig struct {
	FFmpegBin           string
	InputFormat         string // ffmpeg input format, e.g. "v4l2"
	Codec               string // encoder override; "" selects by capability probe
	Resolution          string // WxH, e.g. "1280x720"
	Framerate           int
	Debounce            time.Duration // minimum gap between accepted starts per zone
	StopGraceTimeout    time.Duration // wait after the stop sentinel
	StopKillTimeout     time.Duration // wait after forced termination
	MaxConcurrentStarts int           // bounds parallel encoder spawns
}

// ZonesConfig locates the zone-to-device mapping.
type ZonesConfig struct {
	File  string // JSON mapping file
	Watch bool   // reload on file change
}

// JournalConfig controls the completed-recordings catalog.
type JournalConfig struct {
	Enabled bool
	Path    string // SQLite database path
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Endpoint     string
	Exporter     string // "grpc" or "http"
	SamplingRate float64
	Environment  string
}

// FileConfig mirrors AppConfig for YAML parsing. Pointer fields distinguish
// "absent" from zero values during merge.
type FileConfig struct {
	DataDir *string `yaml:"data_dir"`

	Log struct {
		Level *string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Listen              *string `yaml:"listen"`
		MetricsListen       *string `yaml:"metrics_listen"`
		RateLimitRPS        *int    `yaml:"rate_limit_rps"`
		RateLimitBurst      *int    `yaml:"rate_limit_burst"`
		ReadTimeout         *string `yaml:"read_timeout"`
		WriteTimeout        *string `yaml:"write_timeout"`
		IdleTimeout         *string `yaml:"idle_timeout"`
		MaxHeaderBytes      *int    `yaml:"max_header_bytes"`
		ShutdownTimeout     *string `yaml:"shutdown_timeout"`
		ReadyRequiresIngest *bool   `yaml:"ready_requires_ingest"`
	} `yaml:"server"`

	Transport struct {
		Addr              *string `yaml:"addr"`
		DialTimeout       *string `yaml:"dial_timeout"`
		ReconnectAttempts *int    `yaml:"reconnect_attempts"`
		ReconnectBackoff  *string `yaml:"reconnect_backoff"`
		SettleDelay       *string `yaml:"settle_delay"`
	} `yaml:"transport"`

	Recording struct {
		FFmpegBin           *string `yaml:"ffmpeg_bin"`
		InputFormat         *string `yaml:"input_format"`
		Codec               *string `yaml:"codec"`
		Resolution          *string `yaml:"resolution"`
		Framerate           *int    `yaml:"framerate"`
		Debounce            *string `yaml:"debounce"`
		StopGraceTimeout    *string `yaml:"stop_grace_timeout"`
		StopKillTimeout     *string `yaml:"stop_kill_timeout"`
		MaxConcurrentStarts *int    `yaml:"max_concurrent_starts"`
	} `yaml:"recording"`

	Zones struct {
		File  *string `yaml:"file"`
		Watch *bool   `yaml:"watch"`
	} `yaml:"zones"`

	Journal struct {
		Enabled *bool   `yaml:"enabled"`
		Path    *string `yaml:"path"`
	} `yaml:"journal"`

	Telemetry struct {
		Enabled      *bool    `yaml:"enabled"`
		Endpoint     *string  `yaml:"endpoint"`
		Exporter     *string  `yaml:"exporter"`
		SamplingRate *float64 `yaml:"sampling_rate"`
		Environment  *string  `yaml:"environment"`
	} `yaml:"telemetry"`
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/zonewatch/internal/api"
	"github.com/ManuGH/zonewatch/internal/bus"
	"github.com/ManuGH/zonewatch/internal/config"
	"github.com/ManuGH/zonewatch/internal/daemon"
	"github.com/ManuGH/zonewatch/internal/device"
	"github.com/ManuGH/zonewatch/internal/encoder"
	"github.com/ManuGH/zonewatch/internal/health"
	"github.com/ManuGH/zonewatch/internal/journal"
	zwlog "github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/recorder"
	"github.com/ManuGH/zonewatch/internal/sensor"
	"github.com/ManuGH/zonewatch/internal/telemetry"
	"github.com/ManuGH/zonewatch/internal/validation"
	"github.com/ManuGH/zonewatch/internal/version"
	"github.com/ManuGH/zonewatch/internal/zone"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	zwlog.Configure(zwlog.Config{
		Level:   "info",
		Service: "zonewatch",
	})

	// The pid distinguishes restarted instances in aggregated journald output.
	logger := zwlog.Derive(func(c *zerolog.Context) {
		*c = c.Str(zwlog.FieldComponent, "daemon").Int(zwlog.FieldPID, os.Getpid())
	})

	// Create a context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := resolveConfigPath(explicitConfigPath)

	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	zwlog.SetLevel(cfg.Log.Level)

	switch {
	case explicitConfigPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", explicitConfigPath).
			Msg("loaded configuration from file")
	case effectiveConfigPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	default:
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	// -------------------------------------------------------------------------
	// Pre-flight Checks (Fail Fast)
	// -------------------------------------------------------------------------
	if err := validation.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}
	// -------------------------------------------------------------------------

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Server.Listen).
		Msg("starting zonewatch")

	// Zone-to-camera mapping must resolve before anything records.
	zoneMgr := zone.NewManager(cfg.Zones.File)
	if err := zoneMgr.Load(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "zones.load_failed").
			Str("path", cfg.Zones.File).
			Msg("failed to load zone mapping")
	}

	// Capture devices and encoder capability.
	devCache := device.NewCache(device.Config{
		FFmpegBin:     cfg.Recording.FFmpegBin,
		InputFormat:   cfg.Recording.InputFormat,
		CodecOverride: cfg.Recording.Codec,
	})
	codec := devCache.PickCodec(ctx)

	// A zone mapped to an absent device is not fatal: the daemon starts and
	// recording attempts for that zone fail with a device error. Flag it now
	// so the operator sees it before the first alert.
	if devs, derr := devCache.Discover(ctx); derr == nil {
		paths := make([]string, 0, len(devs))
		for _, d := range devs {
			paths = append(paths, d.Path)
		}
		for _, z := range zoneMgr.Registry().MissingDevices(paths) {
			dev, _ := zoneMgr.CameraFor(z)
			logger.Warn().
				Str("event", "zones.device_missing").
				Str("zone", z.String()).
				Str("device", dev).
				Msg("zone is mapped to a device that was not discovered")
		}
	}

	// Log key configuration
	logger.Info().Msgf("→ Zones: %d mapped from %s", zoneMgr.Registry().Len(), cfg.Zones.File)
	logger.Info().Msgf("→ Sensor bridge: %s (reconnects: %d)", cfg.Transport.Addr, cfg.Transport.ReconnectAttempts)
	logger.Info().Msgf("→ Codec: %s (%s @ %dfps)", codec, cfg.Recording.Resolution, cfg.Recording.Framerate)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	if cfg.Journal.Enabled {
		logger.Info().Msgf("→ Journal: %s", cfg.Journal.Path)
	} else {
		logger.Info().Msg("→ Journal: disabled")
	}
	if cfg.Server.MetricsListen != "" {
		logger.Info().Msgf("→ Metrics: %s", cfg.Server.MetricsListen)
	}

	// Telemetry (noop provider when disabled).
	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "zonewatch",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize telemetry")
	}

	// Lifecycle event bus feeding the journal consumer.
	eventBus := bus.NewMemoryBus()

	// Recording state machine.
	executor := encoder.NewExecutor(cfg.Recording.FFmpegBin, zwlog.WithComponent("encoder"))
	orch := recorder.New(recorder.Config{
		OutputDir:           cfg.DataDir,
		Codec:               codec,
		Resolution:          cfg.Recording.Resolution,
		Framerate:           cfg.Recording.Framerate,
		InputFormat:         cfg.Recording.InputFormat,
		FFmpegBin:           cfg.Recording.FFmpegBin,
		Debounce:            cfg.Recording.Debounce,
		StopGrace:           cfg.Recording.StopGraceTimeout,
		StopKill:            cfg.Recording.StopKillTimeout,
		MaxConcurrentStarts: cfg.Recording.MaxConcurrentStarts,
	}, zoneMgr, recorder.ExecStarter{Exec: executor}, eventBus)

	// Completed-recordings catalog.
	var store *journal.Store
	var consumer *journal.Consumer
	if cfg.Journal.Enabled {
		store, err = journal.NewStore(cfg.Journal.Path)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "journal.open_failed").
				Str("path", cfg.Journal.Path).
				Msg("failed to open recording journal")
		}
		consumer, err = journal.StartConsumer(ctx, eventBus, store)
		if err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "journal.consumer_failed").
				Msg("failed to start journal consumer")
		}
	}

	// Sensor transport. A bridge that is down at boot is retried by the
	// ingest loop; it must never block API startup.
	src := sensor.New(sensor.Config{
		Dialer: &sensor.TCPDialer{
			Addr:    cfg.Transport.Addr,
			Timeout: cfg.Transport.DialTimeout,
		},
		ReconnectAttempts: cfg.Transport.ReconnectAttempts,
		ReconnectBackoff:  cfg.Transport.ReconnectBackoff,
		SettleDelay:       cfg.Transport.SettleDelay,
	})
	if err := src.Connect(ctx); err != nil {
		logger.Warn().
			Err(err).
			Str("event", "sensor.connect_failed").
			Str("addr", cfg.Transport.Addr).
			Msg("sensor bridge unreachable at startup, ingest loop will retry")
	}

	// Health and readiness.
	healthMgr := health.NewManager(version.Version)
	healthMgr.RegisterChecker(health.NewZonesChecker(func() int {
		return zoneMgr.Registry().Len()
	}))
	healthMgr.RegisterChecker(health.NewIngestChecker(func() bool {
		return orch.Snapshot().IngestAlive
	}, cfg.Server.ReadyRequiresIngest))

	// API surface.
	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = "zonewatch-api"
	}
	apiDeps := api.Deps{
		Recorder: orch,
		Devices:  devCache,
		Health:   healthMgr,
		Sender:   src,
	}
	if store != nil {
		apiDeps.Journal = store
	}
	srv := api.New(api.Config{
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		TracingService: tracingService,
	}, apiDeps)

	// Build daemon dependencies
	deps := daemon.Deps{
		Logger:         logger,
		Config:         cfg,
		APIHandler:     srv.Routes(),
		MetricsHandler: promhttp.Handler(),
	}

	mgr, err := daemon.NewManager(cfg.Server, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	// Hooks run LIFO: the recorder closes first so final lifecycle events
	// still reach the journal consumer before the store closes.
	mgr.RegisterShutdownHook("telemetry", tracer.Shutdown)
	mgr.RegisterShutdownHook("zone-watcher", func(context.Context) error {
		zoneMgr.Stop()
		return nil
	})
	mgr.RegisterShutdownHook("sensor", func(context.Context) error {
		return src.Close()
	})
	if store != nil {
		mgr.RegisterShutdownHook("journal-store", func(context.Context) error {
			return store.Close()
		})
	}
	if consumer != nil {
		mgr.RegisterShutdownHook("journal-consumer", consumer.Stop)
	}
	mgr.RegisterShutdownHook("recorder", orch.Close)

	// Start daemon app (blocks until shutdown)
	app := daemon.NewApp(logger, mgr, src, orch, zoneMgr, cfg.Zones.Watch)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}

	logger.Info().Msg("daemon exiting")
}

// resolveConfigPath returns the explicit path when given, otherwise the
// conventional ${ZONEWATCH_DATA_DIR}/config.yaml if that file exists, so a
// deployed config survives restarts without flags.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dataDir := strings.TrimSpace(config.ParseString("ZONEWATCH_DATA_DIR", config.DefaultDataDir))
	if dataDir == "" {
		dataDir = config.DefaultDataDir
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the operator surface: recording status, manual zone
// control, raw transport commands, and the recordings/devices catalogs.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/zonewatch/internal/api/middleware"
	"github.com/ManuGH/zonewatch/internal/device"
	"github.com/ManuGH/zonewatch/internal/health"
	"github.com/ManuGH/zonewatch/internal/journal"
	"github.com/ManuGH/zonewatch/internal/recorder"
	"github.com/ManuGH/zonewatch/internal/zone"
)

// Recorder drives the per-zone recording state machine.
type Recorder interface {
	StartZone(ctx context.Context, z zone.Zone) error
	StopZone(ctx context.Context, z zone.Zone) error
	StopAll(ctx context.Context) int
	Snapshot() recorder.Status
}

// CommandSender forwards raw lines to the sensor transport.
type CommandSender interface {
	SendCommand(ctx context.Context, command string) error
}

// RecordingLister pages the completed-recordings catalog.
type RecordingLister interface {
	List(ctx context.Context, limit, offset int) ([]journal.Record, int, error)
}

// DeviceProvider serves the capture-device cache.
type DeviceProvider interface {
	Devices(ctx context.Context) (device.Snapshot, error)
	Refresh(ctx context.Context) (device.Snapshot, error)
}

// Config carries listener-independent API settings.
type Config struct {
	RateLimitRPS   int
	RateLimitBurst int

	// TracingService enables otelhttp wrapping when non-empty.
	TracingService string
}

// Deps bundles the collaborators the server routes to. Recorder is
// mandatory; nil optional dependencies leave their routes unregistered.
type Deps struct {
	Recorder Recorder
	Sender   CommandSender
	Journal  RecordingLister
	Devices  DeviceProvider
	Health   *health.Manager
}

// Server is the HTTP command surface. It holds no listener state; the
// daemon owns the http.Server wrapping Routes().
type Server struct {
	cfg     Config
	rec     Recorder
	sender  CommandSender
	journal RecordingLister
	devices DeviceProvider
	health  *health.Manager
}

// New creates the API server.
func New(cfg Config, deps Deps) *Server {
	return &Server{
		cfg:     cfg,
		rec:     deps.Recorder,
		sender:  deps.Sender,
		journal: deps.Journal,
		devices: deps.Devices,
		health:  deps.Health,
	}
}

// Routes assembles the router with the canonical middleware stack.
func (s *Server) Routes() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         true,
		TracingService:        s.cfg.TracingService,
		EnableLogging:         true,
		RateLimitRPS:          s.cfg.RateLimitRPS,
		RateLimitBurst:        s.cfg.RateLimitBurst,
	})

	if s.health != nil {
		r.Get("/healthz", s.health.ServeHealth)
		r.Get("/readyz", s.health.ServeReady)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/stop", s.handleStopAll)

		r.Route("/zones/{zone}", func(r chi.Router) {
			r.Post("/start", s.handleZoneStart)
			r.Post("/stop", s.handleZoneStop)
		})

		if s.sender != nil {
			r.Post("/command", s.handleCommand)
		}
		if s.journal != nil {
			r.Get("/recordings", s.handleRecordings)
		}
		if s.devices != nil {
			r.Get("/devices", s.handleDevices)
			r.Post("/devices/refresh", s.handleDevicesRefresh)
		}
	})

	return r
}

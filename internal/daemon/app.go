// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/zonewatch/internal/sensor"
)

// EventSource yields classified sensor events. *sensor.Source implements it.
type EventSource interface {
	Next(ctx context.Context) (sensor.Event, error)
}

// EventHandler applies sensor events to the recording state machine.
// *recorder.Orchestrator implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev sensor.Event)
	SetIngestAlive(alive bool)
}

// ZoneReloader reloads the zone-to-camera mapping, either from a file watch
// or on demand. *zone.Manager implements it.
type ZoneReloader interface {
	StartWatcher(ctx context.Context) error
	Reload(ctx context.Context) error
}

// App owns the long-lived runtime lifecycle (ingest loop, zone mapping
// reloads) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	source       EventSource
	handler      EventHandler
	zones        ZoneReloader
	watchZones   bool
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. source, handler, and zones may be
// nil; the corresponding subsystem is then not started.
func NewApp(logger zerolog.Logger, manager Manager, source EventSource, handler EventHandler, zones ZoneReloader, watchZones bool) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		source:       source,
		handler:      handler,
		zones:        zones,
		watchZones:   watchZones,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs. Sensor transport loss is not fatal: the
// ingest loop exits and flips the ingest flag while the API keeps serving.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.source != nil && a.handler == nil {
		return ErrMissingEventHandler
	}

	g, ctx := errgroup.WithContext(ctx)

	// Zone watcher is best-effort: startup should not fail if the mapping
	// file cannot be watched.
	if a.zones != nil && a.watchZones {
		if err := a.zones.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "zones.watcher_start_failed").Msg("failed to start zone mapping watcher")
		}
	}

	// SIGHUP trigger for manual mapping reload.
	if a.zones != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "zones.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading zone mapping")

					if err := a.zones.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "zones.reload_failed").
							Msg("zone mapping reload failed")
					}
				}
			}
		})
	}

	// Sensor ingestion. Always returns nil: transport loss must degrade the
	// daemon, not stop it.
	if a.source != nil {
		g.Go(func() error {
			a.runIngest(ctx)
			return nil
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// runIngest pumps classified sensor events into the handler until the
// context ends, the source closes, or the transport is lost past its
// reconnect budget.
func (a *App) runIngest(ctx context.Context) {
	a.handler.SetIngestAlive(true)
	defer a.handler.SetIngestAlive(false)

	a.logger.Info().Str("event", "ingest.started").Msg("sensor ingest loop started")

	for {
		ev, err := a.source.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return
			case errors.Is(err, sensor.ErrClosed):
				a.logger.Info().
					Str("event", "ingest.source_closed").
					Msg("sensor source closed, ingest loop exiting")
				return
			default:
				a.logger.Error().
					Err(err).
					Str("event", "ingest.transport_lost").
					Msg("sensor transport lost; manual control remains available via the API")
				return
			}
		}
		a.handler.HandleEvent(ctx, ev)
	}
}

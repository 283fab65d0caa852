// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zone

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	zwlog "github.com/ManuGH/zonewatch/internal/log"
)

// Manager holds the current registry with atomic reloading. Lookups go
// through the latest validated snapshot; a reload that fails validation
// keeps the previous registry in place.
type Manager struct {
	path    string
	current atomic.Pointer[Registry]
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// NewManager creates a manager for the mapping file at path. Call Load
// before serving lookups.
func NewManager(path string) *Manager {
	m := &Manager{
		path:   path,
		logger: zwlog.WithComponent("zones"),
	}
	m.current.Store(&Registry{})
	return m
}

// Registry returns the current snapshot. The result is immutable and safe to
// use after a concurrent reload swaps in a newer one.
func (m *Manager) Registry() *Registry {
	return m.current.Load()
}

// CameraFor looks up the device for a zone in the current snapshot.
func (m *Manager) CameraFor(z Zone) (string, bool) {
	return m.Registry().CameraFor(z)
}

// Zones lists the configured zones in the current snapshot.
func (m *Manager) Zones() []Zone {
	return m.Registry().Zones()
}

// Load reads and validates the mapping file, replacing the current registry.
// A missing file loads an empty registry rather than failing, so a mapping
// that disappears between the startup check and this read degrades to "no
// zones" instead of a crash.
func (m *Manager) Load() error {
	mapping, err := LoadMapping(m.path)
	if err != nil {
		return err
	}
	reg, err := mapping.Registry()
	if err != nil {
		return fmt.Errorf("validate zone mapping %s: %w", m.path, err)
	}
	m.current.Store(reg)
	m.logger.Info().
		Str("event", "zones.loaded").
		Str("path", m.path).
		Int("zones", reg.Len()).
		Msg("zone mapping loaded")
	return nil
}

// Reload re-reads the mapping file. On any failure the previous registry
// stays active and the error is returned.
func (m *Manager) Reload(_ context.Context) error {
	m.logger.Info().Str("event", "zones.reload_start").Msg("reloading zone mapping")

	mapping, err := LoadMapping(m.path)
	if err != nil {
		m.logger.Error().Err(err).Str("event", "zones.reload_failed").Msg("failed to read zone mapping")
		return err
	}
	reg, err := mapping.Registry()
	if err != nil {
		m.logger.Error().Err(err).Str("event", "zones.validation_failed").Msg("new zone mapping failed validation")
		return fmt.Errorf("validate zone mapping %s: %w", m.path, err)
	}

	old := m.current.Swap(reg)
	m.logChanges(old, reg)
	m.logger.Info().
		Str("event", "zones.reload_success").
		Int("zones", reg.Len()).
		Msg("zone mapping reloaded")
	return nil
}

// Save persists the mapping and swaps the validated result in.
func (m *Manager) Save(mapping *Mapping) error {
	reg, err := mapping.Registry()
	if err != nil {
		return fmt.Errorf("validate zone mapping: %w", err)
	}
	if err := SaveMapping(m.path, mapping); err != nil {
		return err
	}
	m.current.Store(reg)
	m.logger.Info().
		Str("event", "zones.saved").
		Str("path", m.path).
		Int("zones", reg.Len()).
		Msg("zone mapping saved")
	return nil
}

// StartWatcher watches the mapping file for changes and reloads on write.
// If the mapping path is empty this is a no-op.
func (m *Manager) StartWatcher(ctx context.Context) error {
	if m.path == "" {
		m.logger.Info().
			Str("event", "zones.watcher_disabled").
			Msg("zone mapping watcher disabled (no file configured)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	m.watcher = watcher

	if err := watcher.Add(m.path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch zone mapping: %w", err)
	}

	m.logger.Info().
		Str("event", "zones.watcher_started").
		Str("path", m.path).
		Msg("watching zone mapping for changes")

	go m.watchLoop(ctx)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Str("event", "zones.watcher_stopped").Msg("zone mapping watcher stopped")
			if m.watcher != nil {
				_ = m.watcher.Close()
			}
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			// Write and Create cover vim, nano, and atomic-rename editors
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				m.logger.Debug().
					Str("event", "zones.file_changed").
					Str("op", event.Op.String()).
					Msg("zone mapping file changed")

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := m.Reload(ctx); err != nil {
						m.logger.Error().
							Err(err).
							Str("event", "zones.auto_reload_failed").
							Msg("automatic zone mapping reload failed")
					}
				})
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error().
				Err(err).
				Str("event", "zones.watcher_error").
				Msg("zone mapping watcher error")
		}
	}
}

// Stop stops the watcher (if running).
func (m *Manager) Stop() {
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
}

func (m *Manager) logChanges(old, current *Registry) {
	for _, z := range current.Zones() {
		newDev, _ := current.CameraFor(z)
		oldDev, had := old.CameraFor(z)
		switch {
		case !had:
			m.logger.Info().Str("zone", z.String()).Str("device", newDev).Msg("zone mapping added")
		case oldDev != newDev:
			m.logger.Info().Str("zone", z.String()).Str("old", oldDev).Str("new", newDev).Msg("zone mapping changed")
		}
	}
	for _, z := range old.Zones() {
		if _, still := current.CameraFor(z); !still {
			m.logger.Info().Str("zone", z.String()).Msg("zone mapping removed")
		}
	}
}

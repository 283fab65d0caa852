// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zone

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/renameio/v2"
)

// Mapping is the on-disk zone configuration. The metadata block is written
// for operators inspecting the file and is not consulted at runtime.
type Mapping struct {
	Zones    map[string]Assignment `json:"zones"`
	Metadata *Metadata             `json:"metadata,omitempty"`
}

// Assignment binds one zone to a capture device.
type Assignment struct {
	Device string `json:"device"`
}

// Metadata records provenance of a saved mapping.
type Metadata struct {
	CreatedAt        time.Time `json:"created_at"`
	AvailableDevices []string  `json:"available_devices,omitempty"`
}

// LoadMapping reads a mapping file. A missing file is not an error: it
// returns (nil, nil) so callers can distinguish "not configured yet" from a
// corrupt file.
func LoadMapping(path string) (*Mapping, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from validated config
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open zone mapping %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var m Mapping
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse zone mapping %s: %w", path, err)
	}
	return &m, nil
}

// SaveMapping writes the mapping atomically. The temp file is fsynced before
// the rename so a crash never leaves a truncated mapping behind.
func SaveMapping(path string, m *Mapping) error {
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending zone mapping: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("write zone mapping: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace zone mapping: %w", err)
	}
	return nil
}

// Registry validates the mapping and builds a lookup from it.
func (m *Mapping) Registry() (*Registry, error) {
	if m == nil {
		return NewRegistry(nil)
	}
	flat := make(map[string]string, len(m.Zones))
	for name, a := range m.Zones {
		flat[name] = a.Device
	}
	return NewRegistry(flat)
}

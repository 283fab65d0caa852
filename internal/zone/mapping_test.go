// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package zone

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMappingMissingFile(t *testing.T) {
	m, err := LoadMapping(filepath.Join(t.TempDir(), "zones.json"))
	require.NoError(t, err, "a missing mapping file is not an error")
	assert.Nil(t, m)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")

	in := &Mapping{
		Zones: map[string]Assignment{
			"ENTRADA": {Device: "/dev/video0"},
			"BODEGA":  {Device: "/dev/video2"},
		},
		Metadata: &Metadata{
			CreatedAt:        time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC),
			AvailableDevices: []string{"/dev/video0", "/dev/video2"},
		},
	}
	require.NoError(t, SaveMapping(path, in))

	out, err := LoadMapping(path)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Zones, out.Zones)
	require.NotNil(t, out.Metadata)
	assert.True(t, in.Metadata.CreatedAt.Equal(out.Metadata.CreatedAt))

	reg, err := out.Registry()
	require.NoError(t, err)
	device, ok := reg.CameraFor(Entrada)
	require.True(t, ok)
	assert.Equal(t, "/dev/video0", device)
}

func TestLoadMappingRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"zones":{},"bogus":true}`), 0o600))

	_, err := LoadMapping(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse zone mapping")
}

func TestLoadMappingRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := LoadMapping(path)
	require.Error(t, err)
}

func TestMappingRegistryValidation(t *testing.T) {
	m := &Mapping{Zones: map[string]Assignment{"GARAGE": {Device: "/dev/video0"}}}
	_, err := m.Registry()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown zone")
}

func TestNilMappingRegistryIsEmpty(t *testing.T) {
	var m *Mapping
	reg, err := m.Registry()
	require.NoError(t, err)
	assert.Zero(t, reg.Len())
}

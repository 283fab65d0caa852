package validation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/zonewatch/internal/config"
	"github.com/ManuGH/zonewatch/internal/log"
)

// fakeBinDir drops an executable stub named bin on a fresh PATH entry so
// exec.LookPath resolves it without touching the host system.
func fakeBinDir(t *testing.T, bin string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, bin)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755)) // #nosec G306
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func zonesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"zones":{"ENTRADA":"/dev/video0"}}`), 0o600))
	return path
}

func TestPerformStartupChecks_AllValid(t *testing.T) {
	fakeBinDir(t, "ffmpeg")

	cfg := config.AppConfig{
		DataDir: filepath.Join(t.TempDir(), "recordings"),
		Server: config.ServerConfig{
			Listen:        ":8080",
			MetricsListen: ":9108",
		},
		Transport: config.TransportConfig{Addr: "127.0.0.1:2217"},
		Recording: config.RecordingConfig{FFmpegBin: "ffmpeg"},
		Zones:     config.ZonesConfig{File: zonesFile(t)},
	}

	err := PerformStartupChecks(context.Background(), cfg)
	require.NoError(t, err)

	// The data directory is created on the fly.
	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPerformStartupChecks_MissingFFmpeg(t *testing.T) {
	t.Setenv("PATH", t.TempDir()) // nothing on PATH

	cfg := config.AppConfig{
		DataDir:   t.TempDir(),
		Server:    config.ServerConfig{Listen: ":8080"},
		Recording: config.RecordingConfig{FFmpegBin: "ffmpeg"},
		Zones:     config.ZonesConfig{File: zonesFile(t)},
	}

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg binary not found")
}

func TestPerformStartupChecks_UnreadableZonesFile(t *testing.T) {
	fakeBinDir(t, "ffmpeg")

	cfg := config.AppConfig{
		DataDir:   t.TempDir(),
		Server:    config.ServerConfig{Listen: ":8080"},
		Recording: config.RecordingConfig{FFmpegBin: "ffmpeg"},
		Zones:     config.ZonesConfig{File: filepath.Join(t.TempDir(), "missing.json")},
	}

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zones file")
}

func TestCheckDataDir_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	err := checkDataDir(log.WithComponent("test"), path)
	require.Error(t, err)
}

func TestCheckListenAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":8080", wantErr: false},
		{name: "host and port", addr: "127.0.0.1:9108", wantErr: false},
		{name: "missing port", addr: "localhost", wantErr: true},
		{name: "port out of range", addr: ":99999", wantErr: true},
		{name: "garbage port", addr: ":http-ish", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkListenAddr(log.WithComponent("test"), "API", tt.addr)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCheckZonesFile_NotConfigured(t *testing.T) {
	err := checkZonesFile(log.WithComponent("test"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestPerformStartupChecks_InvalidTransportAddr(t *testing.T) {
	fakeBinDir(t, "ffmpeg")

	cfg := config.AppConfig{
		DataDir:   t.TempDir(),
		Server:    config.ServerConfig{Listen: ":8080"},
		Transport: config.TransportConfig{Addr: "no-port-here"},
		Recording: config.RecordingConfig{FFmpegBin: "ffmpeg"},
		Zones:     config.ZonesConfig{File: zonesFile(t)},
	}

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport address")
}

package validation

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ManuGH/zonewatch/internal/config"
	"github.com/ManuGH/zonewatch/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment and dependencies before the
// daemon starts its subsystems. Transport connectivity is deliberately not
// checked here: the ingestion loop owns reconnects, and an unreachable
// sensor bridge must not prevent the command API from coming up.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	// 1. Recording Directory Permissions
	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}

	// 2. Listener Addresses
	if err := checkListenAddr(logger, "API", cfg.Server.Listen); err != nil {
		return err
	}
	if cfg.Server.MetricsListen != "" {
		if err := checkListenAddr(logger, "metrics", cfg.Server.MetricsListen); err != nil {
			return err
		}
	}

	// 3. Sensor Transport Address (syntax only)
	if cfg.Transport.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Transport.Addr); err != nil {
			return fmt.Errorf("invalid transport address %q: %w", cfg.Transport.Addr, err)
		}
		logger.Info().Str("addr", cfg.Transport.Addr).Msg("✓ Transport address is valid")
	}

	// 4. Encoder Binary
	if err := checkFFmpeg(logger, cfg.Recording.FFmpegBin); err != nil {
		return fmt.Errorf("encoder check failed: %w", err)
	}

	// 5. Zone Mapping File
	if err := checkZonesFile(logger, cfg.Zones.File); err != nil {
		return fmt.Errorf("zones file check failed: %w", err)
	}

	warnTempDataDir(logger, cfg.DataDir)

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	// MkdirAll returns nil if the directory already exists.
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("failed to ensure data directory %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Check write permissions by creating a temp file
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("✓ Data directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, name, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s listen address %q: %w", name, addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid %s listen port %q in %q", name, port, addr)
	}
	logger.Info().Str("addr", addr).Msgf("✓ %s listen address is valid", name)
	return nil
}

func checkFFmpeg(logger zerolog.Logger, bin string) error {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("ffmpeg binary not found (%s): %w", bin, err)
	}
	logger.Info().Str("ffmpeg", path).Msg("✓ Encoder binary available")
	return nil
}

func checkZonesFile(logger zerolog.Logger, path string) error {
	if path == "" {
		return fmt.Errorf("zones file is not configured")
	}
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return fmt.Errorf("zones file not readable: %w", err)
	}
	_ = f.Close()
	logger.Info().Str("path", path).Msg("✓ Zones file is readable")
	return nil
}

// warnTempDataDir flags recordings landing under the OS temp directory,
// where a reboot silently discards them.
func warnTempDataDir(logger zerolog.Logger, dataDir string) {
	tempDir := filepath.Clean(os.TempDir())
	dir := filepath.Clean(dataDir)
	if tempDir != "." && (dir == tempDir || strings.HasPrefix(dir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", dataDir).
			Msg("data directory is under temp; recordings may be lost on reboot")
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/zonewatch/internal/log"
)

// envLogger returns the logger for configuration resolution. Debug level
// keeps per-key chatter out of production logs while staying available when
// diagnosing precedence questions.
func envLogger() zerolog.Logger {
	return log.WithComponent("config")
}

// lookup fetches key and reports whether a usable (set, non-empty) value was
// found. Unset and empty both fall back, so `FOO=` in a unit file behaves
// like an absent override.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// sensitiveKey reports whether values for key must never be logged.
func sensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") ||
		strings.Contains(k, "password") ||
		strings.Contains(k, "secret")
}

// ParseString resolves a string override from the environment.
func ParseString(key, defaultValue string) string {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	logger := envLogger()
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if sensitiveKey(key) {
		ev.Bool("sensitive", true).Msg("environment override applied")
	} else {
		ev.Str("value", v).Msg("environment override applied")
	}
	return v
}

// ParseInt resolves an integer override. A value that does not parse keeps
// the default and logs a warning rather than failing startup.
func ParseInt(key string, defaultValue int) int {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger := envLogger()
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger := envLogger()
	logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").
		Msg("environment override applied")
	return i
}

// ParseDuration resolves a Go duration override (e.g. "750ms", "10s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger := envLogger()
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	logger := envLogger()
	logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").
		Msg("environment override applied")
	return d
}

// ParseBool resolves a boolean override. Accepted spellings are true/false,
// 1/0 and yes/no, case-insensitive; anything else keeps the default.
func ParseBool(key string, defaultValue bool) bool {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	var b bool
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		b = true
	case "false", "0", "no":
		b = false
	default:
		logger := envLogger()
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
	logger := envLogger()
	logger.Debug().Str("key", key).Bool("value", b).Str("source", "environment").
		Msg("environment override applied")
	return b
}

// ParseFloat resolves a float override, used for the trace sampling rate.
func ParseFloat(key string, defaultValue float64) float64 {
	v, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger := envLogger()
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	logger := envLogger()
	logger.Debug().Str("key", key).Float64("value", f).Str("source", "environment").
		Msg("environment override applied")
	return f
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// handleRecordings serves GET /api/recordings?limit=&offset=.
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	items, total, err := s.journal.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recordings": items,
		"total":      total,
		"limit":      limit,
		"offset":     offset,
	})
}

// handleDevices serves GET /api/devices from the cache.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	snap, err := s.devices.Devices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleDevicesRefresh serves POST /api/devices/refresh, forcing a probe.
func (s *Server) handleDevicesRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.devices.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// queryInt parses a non-negative integer query parameter, falling back to
// def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s parameter: %q", name, raw)
	}
	return n, nil
}

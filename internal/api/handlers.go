// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/recorder"
	"github.com/ManuGH/zonewatch/internal/sensor"
	"github.com/ManuGH/zonewatch/internal/zone"
)

// maxCommandBody bounds the raw-command request body. Sensor-board commands
// are single short lines; anything bigger is a client error.
const maxCommandBody = 4 << 10

// handleStatus serves GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rec.Snapshot())
}

// handleZoneStart serves POST /api/zones/{zone}/start. Manual starts run
// the same admission rules as sensor alerts.
func (s *Server) handleZoneStart(w http.ResponseWriter, r *http.Request) {
	z, ok := zone.Parse(chi.URLParam(r, "zone"))
	if !ok {
		writeError(w, http.StatusNotFound, recorder.ErrUnknownZone)
		return
	}

	if err := s.rec.StartZone(r.Context(), z); err != nil {
		writeRecorderError(w, err)
		return
	}

	st := s.rec.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"zone":   z.String(),
		"status": st.Zones[z.String()],
	})
}

// handleZoneStop serves POST /api/zones/{zone}/stop. The stop is
// acknowledged once signaled; finalization continues in the background.
func (s *Server) handleZoneStop(w http.ResponseWriter, r *http.Request) {
	z, ok := zone.Parse(chi.URLParam(r, "zone"))
	if !ok {
		writeError(w, http.StatusNotFound, recorder.ErrUnknownZone)
		return
	}

	if err := s.rec.StopZone(r.Context(), z); err != nil {
		writeRecorderError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"zone":  z.String(),
		"state": string(recorder.StateStopping),
	})
}

// handleStopAll serves POST /api/stop.
func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	stopping := s.rec.StopAll(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]int{"stopping": stopping})
}

type commandRequest struct {
	Text string `json:"text"`
}

// handleCommand serves POST /api/command, forwarding one raw line to the
// sensor transport. The deactivate token additionally stops every local
// session.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBody)

	var req commandRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, errors.New("command text must not be empty"))
		return
	}

	if err := s.sender.SendCommand(r.Context(), text); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).Msg("raw command delivery failed")
		writeError(w, http.StatusBadGateway, errors.New("transport unavailable"))
		return
	}

	resp := map[string]any{"status": "sent"}

	// A deactivate command also stops local sessions right away. The board's
	// acknowledgement would do the same via the ingest path, but that echo
	// is lost when the transport is mid-reconnect.
	if s.rec != nil && strings.EqualFold(text, sensor.CommandDeactivate) {
		resp["stopping"] = s.rec.StopAll(r.Context())
	}

	writeJSON(w, http.StatusOK, resp)
}

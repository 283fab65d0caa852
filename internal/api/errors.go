// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/zonewatch/internal/recorder"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error envelope with the given status code
func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeRecorderError maps state-machine errors onto HTTP status codes.
// Races on zone state (already recording, debounced, nothing to stop,
// device held by another session) are conflicts, not failures.
func writeRecorderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recorder.ErrUnknownZone):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, recorder.ErrDuplicateStart),
		errors.Is(err, recorder.ErrDebounced),
		errors.Is(err, recorder.ErrNotRecording),
		errors.Is(err, recorder.ErrDeviceUnavailable):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, recorder.ErrSpawnFailure):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, recorder.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

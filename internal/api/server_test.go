// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/zonewatch/internal/device"
	"github.com/ManuGH/zonewatch/internal/health"
	"github.com/ManuGH/zonewatch/internal/journal"
	"github.com/ManuGH/zonewatch/internal/recorder"
	"github.com/ManuGH/zonewatch/internal/zone"
)

type fakeRecorder struct {
	mu           sync.Mutex
	startErr     error
	stopErr      error
	started      []zone.Zone
	stopped      []zone.Zone
	stopAllN     int
	stopAllCalls int
	status       recorder.Status
}

func (f *fakeRecorder) StartZone(_ context.Context, z zone.Zone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, z)
	return nil
}

func (f *fakeRecorder) StopZone(_ context.Context, z zone.Zone) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, z)
	return nil
}

func (f *fakeRecorder) StopAll(_ context.Context) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopAllCalls++
	return f.stopAllN
}

func (f *fakeRecorder) Snapshot() recorder.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (f *fakeSender) SendCommand(_ context.Context, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, command)
	return nil
}

type fakeJournal struct {
	items     []journal.Record
	total     int
	err       error
	gotLimit  int
	gotOffset int
}

func (f *fakeJournal) List(_ context.Context, limit, offset int) ([]journal.Record, int, error) {
	f.gotLimit = limit
	f.gotOffset = offset
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.items, f.total, nil
}

type fakeDevices struct {
	snap      device.Snapshot
	err       error
	refreshes int
}

func (f *fakeDevices) Devices(_ context.Context) (device.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeDevices) Refresh(_ context.Context) (device.Snapshot, error) {
	f.refreshes++
	return f.snap, f.err
}

func idleStatus() recorder.Status {
	zones := make(map[string]recorder.ZoneStatus)
	for _, z := range zone.All() {
		zones[z.String()] = recorder.ZoneStatus{State: recorder.StateIdle}
	}
	return recorder.Status{Zones: zones, IngestAlive: true}
}

func newTestServer(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Recorder == nil {
		deps.Recorder = &fakeRecorder{status: idleStatus()}
	}
	return New(Config{}, deps).Routes()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatus_ReturnsSnapshot(t *testing.T) {
	rec := &fakeRecorder{status: idleStatus()}
	h := newTestServer(t, Deps{Recorder: rec})

	w := doRequest(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var st recorder.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.True(t, st.IngestAlive)
	assert.Len(t, st.Zones, 4)
	assert.Equal(t, recorder.StateIdle, st.Zones["ENTRADA"].State)
}

func TestStatus_CarriesSecurityHeaders(t *testing.T) {
	h := newTestServer(t, Deps{})

	w := doRequest(t, h, http.MethodGet, "/api/status", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestZoneStart_OK(t *testing.T) {
	status := idleStatus()
	started := time.Now()
	status.Zones["ENTRADA"] = recorder.ZoneStatus{
		State:     recorder.StateActive,
		Active:    true,
		SessionID: "abc",
		Device:    "/dev/video0",
		Output:    "/data/entrada_2026-08-25_10-00-00.mp4",
		StartedAt: &started,
	}
	rec := &fakeRecorder{status: status}
	h := newTestServer(t, Deps{Recorder: rec})

	w := doRequest(t, h, http.MethodPost, "/api/zones/entrada/start", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Zone   string              `json:"zone"`
		Status recorder.ZoneStatus `json:"status"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ENTRADA", resp.Zone)
	assert.Equal(t, recorder.StateActive, resp.Status.State)
	assert.Equal(t, []zone.Zone{zone.Entrada}, rec.started)
}

func TestZoneStart_UnknownZoneName(t *testing.T) {
	rec := &fakeRecorder{status: idleStatus()}
	h := newTestServer(t, Deps{Recorder: rec})

	w := doRequest(t, h, http.MethodPost, "/api/zones/patio/start", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, rec.started)
}

func TestZoneStart_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "duplicate start", err: recorder.ErrDuplicateStart, want: http.StatusConflict},
		{name: "debounced", err: recorder.ErrDebounced, want: http.StatusConflict},
		{name: "device unavailable", err: recorder.ErrDeviceUnavailable, want: http.StatusConflict},
		{name: "unknown zone", err: recorder.ErrUnknownZone, want: http.StatusNotFound},
		{name: "spawn failure", err: recorder.ErrSpawnFailure, want: http.StatusBadGateway},
		{name: "closed", err: recorder.ErrClosed, want: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("kaput"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &fakeRecorder{status: idleStatus(), startErr: tt.err}
			h := newTestServer(t, Deps{Recorder: rec})

			w := doRequest(t, h, http.MethodPost, "/api/zones/ENTRADA/start", "")
			require.Equal(t, tt.want, w.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestZoneStop_Accepted(t *testing.T) {
	rec := &fakeRecorder{status: idleStatus()}
	h := newTestServer(t, Deps{Recorder: rec})

	w := doRequest(t, h, http.MethodPost, "/api/zones/bodega/stop", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "BODEGA", resp["zone"])
	assert.Equal(t, "STOPPING", resp["state"])
	assert.Equal(t, []zone.Zone{zone.Bodega}, rec.stopped)
}

func TestZoneStop_NotRecording(t *testing.T) {
	rec := &fakeRecorder{status: idleStatus(), stopErr: recorder.ErrNotRecording}
	h := newTestServer(t, Deps{Recorder: rec})

	w := doRequest(t, h, http.MethodPost, "/api/zones/bodega/stop", "")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestStopAll_ReportsCount(t *testing.T) {
	rec := &fakeRecorder{status: idleStatus(), stopAllN: 2}
	h := newTestServer(t, Deps{Recorder: rec})

	w := doRequest(t, h, http.MethodPost, "/api/stop", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]int
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp["stopping"])
}

func TestCommand_ForwardsText(t *testing.T) {
	sender := &fakeSender{}
	h := newTestServer(t, Deps{Sender: sender})

	w := doRequest(t, h, http.MethodPost, "/api/command", `{"text":" estadoAlarma "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"estadoAlarma"}, sender.sent)
}

func TestCommand_DeactivateStopsLocalSessions(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{status: idleStatus(), stopAllN: 2}
	h := newTestServer(t, Deps{Recorder: rec, Sender: sender})

	w := doRequest(t, h, http.MethodPost, "/api/command", `{"text":"DESACTIVADO"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"DESACTIVADO"}, sender.sent)
	assert.Equal(t, 1, rec.stopAllCalls)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "sent", resp["status"])
	assert.Equal(t, float64(2), resp["stopping"])
}

func TestCommand_NonDeactivateLeavesSessionsAlone(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{status: idleStatus()}
	h := newTestServer(t, Deps{Recorder: rec, Sender: sender})

	w := doRequest(t, h, http.MethodPost, "/api/command", `{"text":"activado"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, rec.stopAllCalls)
}

func TestCommand_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty text", body: `{"text":""}`},
		{name: "whitespace text", body: `{"text":"   "}`},
		{name: "malformed json", body: `{"text":`},
		{name: "unknown field", body: `{"text":"x","extra":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			h := newTestServer(t, Deps{Sender: sender})

			w := doRequest(t, h, http.MethodPost, "/api/command", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, sender.sent)
		})
	}
}

func TestCommand_TransportFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("not connected")}
	h := newTestServer(t, Deps{Sender: sender})

	w := doRequest(t, h, http.MethodPost, "/api/command", `{"text":"activar"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCommand_RouteAbsentWithoutSender(t *testing.T) {
	h := newTestServer(t, Deps{})

	w := doRequest(t, h, http.MethodPost, "/api/command", `{"text":"x"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecordings_Pagination(t *testing.T) {
	j := &fakeJournal{
		items: []journal.Record{{ID: "rec-1", Zone: "ENTRADA", Outcome: "ok"}},
		total: 7,
	}
	h := newTestServer(t, Deps{Journal: j})

	w := doRequest(t, h, http.MethodGet, "/api/recordings?limit=2&offset=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, j.gotLimit)
	assert.Equal(t, 5, j.gotOffset)

	var resp struct {
		Recordings []journal.Record `json:"recordings"`
		Total      int              `json:"total"`
		Limit      int              `json:"limit"`
		Offset     int              `json:"offset"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Recordings, 1)
	assert.Equal(t, 7, resp.Total)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 5, resp.Offset)
}

func TestRecordings_DefaultsAndCaps(t *testing.T) {
	j := &fakeJournal{}
	h := newTestServer(t, Deps{Journal: j})

	w := doRequest(t, h, http.MethodGet, "/api/recordings", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultListLimit, j.gotLimit)
	assert.Equal(t, 0, j.gotOffset)

	w = doRequest(t, h, http.MethodGet, "/api/recordings?limit=9999", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxListLimit, j.gotLimit)
}

func TestRecordings_InvalidParams(t *testing.T) {
	for _, q := range []string{"limit=abc", "limit=-1", "offset=x", "offset=-2"} {
		t.Run(q, func(t *testing.T) {
			h := newTestServer(t, Deps{Journal: &fakeJournal{}})
			w := doRequest(t, h, http.MethodGet, "/api/recordings?"+q, "")
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRecordings_StoreError(t *testing.T) {
	h := newTestServer(t, Deps{Journal: &fakeJournal{err: errors.New("db locked")}})

	w := doRequest(t, h, http.MethodGet, "/api/recordings", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDevices_ListAndRefresh(t *testing.T) {
	f := &fakeDevices{snap: device.Snapshot{
		Devices:  []device.Device{{Path: "/dev/video0", Name: "USB Camera"}},
		ProbedAt: time.Now(),
	}}
	h := newTestServer(t, Deps{Devices: f})

	w := doRequest(t, h, http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap device.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, "/dev/video0", snap.Devices[0].Path)
	assert.Equal(t, 0, f.refreshes)

	w = doRequest(t, h, http.MethodPost, "/api/devices/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, f.refreshes)
}

func TestHealthRoutes_WiredThroughManager(t *testing.T) {
	m := health.NewManager("test")
	m.RegisterChecker(health.NewZonesChecker(func() int { return 0 }))
	h := newTestServer(t, Deps{Health: m})

	w := doRequest(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

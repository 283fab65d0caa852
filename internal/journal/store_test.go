// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/zonewatch/internal/bus"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(id string, startedAt time.Time) Record {
	return Record{
		ID:              id,
		Zone:            "ENTRADA",
		Device:          "/dev/video0",
		OutputPath:      "/data/entrada_2025-03-01_10-00-00.mp4",
		Codec:           "libx265",
		StartedAt:       startedAt,
		EndedAt:         startedAt.Add(90 * time.Second),
		DurationSeconds: 90,
		SizeBytes:       1 << 20,
		Outcome:         "ok",
	}
}

func TestStore_InsertAndList(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("rec-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Insert(ctx, rec))
	}

	page, total, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	// Newest first.
	assert.Equal(t, "rec-2", page[0].ID)
	assert.Equal(t, "rec-1", page[1].ID)

	rest, total, err := store.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rest, 1)
	assert.Equal(t, "rec-0", rest[0].ID)

	got := page[0]
	assert.Equal(t, "ENTRADA", got.Zone)
	assert.Equal(t, "/dev/video0", got.Device)
	assert.Equal(t, "libx265", got.Codec)
	assert.Equal(t, int64(1<<20), got.SizeBytes)
	assert.Equal(t, "ok", got.Outcome)
	assert.WithinDuration(t, base.Add(2*time.Minute), got.StartedAt, time.Second)
	assert.WithinDuration(t, base.Add(2*time.Minute+90*time.Second), got.EndedAt, time.Second)
}

func TestStore_RejectsUnknownOutcome(t *testing.T) {
	store := testStore(t)

	rec := testRecord("rec-bad", time.Now())
	rec.Outcome = "exploded"

	err := store.Insert(context.Background(), rec)
	require.Error(t, err)
}

func TestStore_CountEmpty(t *testing.T) {
	store := testStore(t)

	total, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStore_DuplicateIDRejected(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rec := testRecord("rec-dup", time.Now())
	require.NoError(t, store.Insert(ctx, rec))
	require.Error(t, store.Insert(ctx, rec))
}

func TestConsumer_PersistsFinishedEvents(t *testing.T) {
	store := testStore(t)
	b := bus.NewMemoryBus()

	ctx := context.Background()
	consumer, err := StartConsumer(ctx, b, store)
	require.NoError(t, err)

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := bus.RecordingEvent{
		SessionID: "sess-1",
		Zone:      "SALIDA",
		Device:    "/dev/video1",
		Output:    "/data/salida_2025-03-01_12-00-00.mp4",
		Codec:     "hevc_nvenc",
		Outcome:   "degraded",
		Detail:    "stop escalated to killed",
		SizeBytes: 512,
		StartedAt: started,
		EndedAt:   started.Add(30 * time.Second),
	}
	require.NoError(t, b.Publish(ctx, bus.TopicRecordingFinished, ev))

	require.Eventually(t, func() bool {
		total, err := store.Count(ctx)
		return err == nil && total == 1
	}, 2*time.Second, 10*time.Millisecond)

	records, _, err := store.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, "SALIDA", got.Zone)
	assert.Equal(t, "degraded", got.Outcome)
	assert.Equal(t, "stop escalated to killed", got.Detail)
	assert.InDelta(t, 30, got.DurationSeconds, 0.01)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, consumer.Stop(stopCtx))
}

func TestConsumer_StopDrainsBufferedEvents(t *testing.T) {
	store := testStore(t)
	b := bus.NewMemoryBus()

	ctx := context.Background()
	consumer, err := StartConsumer(ctx, b, store)
	require.NoError(t, err)

	started := time.Now()
	for i := 0; i < 5; i++ {
		ev := bus.RecordingEvent{
			SessionID: fmt.Sprintf("sess-%d", i),
			Zone:      "BODEGA",
			Device:    "/dev/video2",
			Output:    fmt.Sprintf("/data/bodega_%d.mp4", i),
			Codec:     "libx265",
			Outcome:   "ok",
			StartedAt: started,
			EndedAt:   started.Add(time.Second),
		}
		require.NoError(t, b.Publish(ctx, bus.TopicRecordingFinished, ev))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, consumer.Stop(stopCtx))

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

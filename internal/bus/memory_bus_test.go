// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/zonewatch/internal/metrics"
)

func TestMemoryBusFanOut(t *testing.T) {
	b := NewMemoryBus()

	subA, err := b.Subscribe(context.Background(), TopicRecordingFinished)
	require.NoError(t, err)
	t.Cleanup(func() { _ = subA.Close() })

	subB, err := b.Subscribe(context.Background(), TopicRecordingFinished)
	require.NoError(t, err)
	t.Cleanup(func() { _ = subB.Close() })

	ev := RecordingEvent{SessionID: "s1", Zone: "ENTRADA", Outcome: "ok"}
	require.NoError(t, b.Publish(context.Background(), TopicRecordingFinished, ev))

	for _, sub := range []Subscriber{subA, subB} {
		select {
		case msg := <-sub.C():
			got, ok := msg.(RecordingEvent)
			require.True(t, ok, "expected RecordingEvent payload")
			require.Equal(t, "s1", got.SessionID)
			require.Equal(t, "ENTRADA", got.Zone)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive published event")
		}
	}
}

func TestMemoryBusPublishContextTimeoutIncrementsDropMetrics(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	// Fill subscriber channel to capacity so next publish blocks.
	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), "topic", "msg"))
	}

	initialLegacy := testutil.ToFloat64(metrics.BusDropsTotal.WithLabelValues("topic"))
	initialReasoned := testutil.ToFloat64(metrics.BusDroppedTotal.WithLabelValues("topic", "timeout"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = b.Publish(ctx, "topic", "blocked")
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	finalLegacy := testutil.ToFloat64(metrics.BusDropsTotal.WithLabelValues("topic"))
	finalReasoned := testutil.ToFloat64(metrics.BusDroppedTotal.WithLabelValues("topic", "timeout"))
	require.Greater(t, finalLegacy, initialLegacy, "expected legacy bus drop counter to increase")
	require.Greater(t, finalReasoned, initialReasoned, "expected reasoned bus drop counter to increase")
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	err := b.Publish(nil, "topic", "msg") //nolint:staticcheck // nil context is the case under test
	require.Error(t, err)
	require.Contains(t, err.Error(), "context is nil")
}

func TestMemoryBusCloseUnsubscribes(t *testing.T) {
	b := NewMemoryBus()

	sub, err := b.Subscribe(context.Background(), "topic")
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	// Channel must be closed so range loops terminate.
	_, open := <-sub.C()
	require.False(t, open, "expected closed channel after unsubscribe")

	// Publishing to a topic with no subscribers must not block.
	done := make(chan error, 1)
	go func() { done <- b.Publish(context.Background(), "topic", "msg") }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publish blocked after all subscribers closed")
	}
}

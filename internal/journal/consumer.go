// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package journal

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/zonewatch/internal/bus"
	zwlog "github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/metrics"
)

const insertTimeout = 5 * time.Second

// Consumer drains recording.finished events into the store. Inserts run on
// the consumer goroutine, never on the orchestrator's lock or the ingest
// path, and an insert failure is logged and counted, nothing more.
type Consumer struct {
	store  *Store
	sub    bus.Subscriber
	logger zerolog.Logger
	done   chan struct{}
}

// StartConsumer subscribes to the finished topic and begins persisting.
func StartConsumer(ctx context.Context, b bus.Bus, store *Store) (*Consumer, error) {
	sub, err := b.Subscribe(ctx, bus.TopicRecordingFinished)
	if err != nil {
		return nil, err
	}
	c := &Consumer{
		store:  store,
		sub:    sub,
		logger: zwlog.WithComponent("journal"),
		done:   make(chan struct{}),
	}
	go c.loop()
	return c, nil
}

func (c *Consumer) loop() {
	defer close(c.done)

	for msg := range c.sub.C() {
		ev, ok := msg.(bus.RecordingEvent)
		if !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		err := c.store.Insert(ctx, recordFromEvent(ev))
		cancel()

		if err != nil {
			metrics.IncJournalInsert("error")
			c.logger.Warn().
				Err(err).
				Str(zwlog.FieldSessionID, ev.SessionID).
				Str(zwlog.FieldZone, ev.Zone).
				Msg("journal insert failed")
			continue
		}
		metrics.IncJournalInsert("ok")
	}
}

// Stop unsubscribes and waits for buffered events to be persisted, bounded
// by ctx. Call after the orchestrator has published its final events.
func (c *Consumer) Stop(ctx context.Context) error {
	_ = c.sub.Close()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recordFromEvent(ev bus.RecordingEvent) Record {
	return Record{
		ID:              ev.SessionID,
		Zone:            ev.Zone,
		Device:          ev.Device,
		OutputPath:      ev.Output,
		Codec:           ev.Codec,
		StartedAt:       ev.StartedAt,
		EndedAt:         ev.EndedAt,
		DurationSeconds: ev.EndedAt.Sub(ev.StartedAt).Seconds(),
		SizeBytes:       ev.SizeBytes,
		Outcome:         ev.Outcome,
		Detail:          ev.Detail,
	}
}

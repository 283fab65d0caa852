// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/metrics"
)

// subscriberBuffer is the per-subscriber channel depth. Recording lifecycle
// events are low-rate, so a small buffer absorbs a slow journal write without
// stalling the orchestrator's publish path.
const subscriberBuffer = 64

// dropLogEvery throttles the warn log for publish drops; the per-topic
// counters carry the exact totals.
const dropLogEvery = 100

var dropCount atomic.Uint64

// MemoryBus is an in-memory pub/sub. It is not durable and provides
// at-least-once in-process delivery while publish contexts remain active.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan Message
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan Message)}
}

// Publish delivers msg to every current subscriber of topic. Delivery blocks
// on a full subscriber buffer until ctx expires; the failed publish is
// counted and returned so callers decide whether the loss matters.
func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}

	b.mu.RLock()
	targets := slices.Clone(b.subs[topic])
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- msg:
		case <-ctx.Done():
			b.accountDrop(topic, ctx.Err())
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

func (b *MemoryBus) accountDrop(topic string, cause error) {
	reason := "context_done"
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		reason = "timeout"
	case errors.Is(cause, context.Canceled):
		reason = "canceled"
	}
	metrics.IncBusDropReason(topic, reason)
	if n := dropCount.Add(1); n%dropLogEvery == 0 {
		logger := log.Base()
		logger.Warn().
			Str("topic", topic).
			Str("reason", reason).
			Uint64("dropped", n).
			Msg("memory bus failed to publish due to context cancellation")
	}
}

// Subscribe registers a new subscriber for topic. The context is accepted for
// interface symmetry; subscriptions live until Close.
func (b *MemoryBus) Subscribe(_ context.Context, topic string) (Subscriber, error) {
	ch := make(chan Message, subscriberBuffer)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return &memSub{b: b, topic: topic, ch: ch}, nil
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Message
}

func (s *memSub) C() <-chan Message { return s.ch }

// Close unsubscribes and closes the channel so consumer range loops end.
func (s *memSub) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	remaining := slices.DeleteFunc(s.b.subs[s.topic], func(c chan Message) bool {
		return c == s.ch
	})
	if len(remaining) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = remaining
	}
	close(s.ch)
	return nil
}

var _ Bus = (*MemoryBus)(nil)

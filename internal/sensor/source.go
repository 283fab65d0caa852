// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/runes"
	"golang.org/x/time/rate"

	zwlog "github.com/ManuGH/zonewatch/internal/log"
	"github.com/ManuGH/zonewatch/internal/metrics"
	"github.com/ManuGH/zonewatch/internal/telemetry"
)

// ErrClosed is returned by Next and SendCommand after Close.
var ErrClosed = errors.New("sensor source closed")

var errNotConnected = errors.New("sensor transport not connected")

// maxLine bounds a single transport line; anything longer is a protocol
// violation and forces a reconnect.
const maxLine = 64 * 1024

// Config controls transport recovery and outbound pacing.
type Config struct {
	Dialer Dialer

	// ReconnectAttempts bounds how many dials are tried after a read
	// failure before Next gives up with a TransportError.
	ReconnectAttempts int

	// ReconnectBackoff is the fixed delay between reconnect attempts.
	ReconnectBackoff time.Duration

	// SettleDelay is the pause after each outbound command, giving the
	// board time to process the write before the next one.
	SettleDelay time.Duration
}

// Source turns the byte stream from the sensor board into classified events
// and serializes outbound command writes. Next is single-consumer;
// SendCommand may be called from other goroutines.
type Source struct {
	cfg      Config
	logger   zerolog.Logger
	sanitize runes.Transformer

	// addr labels transport spans and logs; empty when the dialer does not
	// expose its target.
	addr string

	// unknownLog throttles logging of unclassified lines so a chatty or
	// misbehaving board cannot flood the log.
	unknownLog *rate.Limiter

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	scanner *bufio.Scanner
	closed  bool
}

// New creates a source. Call Connect before the first Next.
func New(cfg Config) *Source {
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = 1
	}
	s := &Source{
		cfg:        cfg,
		logger:     zwlog.WithComponent("sensor"),
		sanitize:   runes.ReplaceIllFormed(),
		unknownLog: rate.NewLimiter(rate.Every(time.Second), 10),
	}
	if str, ok := cfg.Dialer.(fmt.Stringer); ok {
		s.addr = str.String()
	}
	return s
}

// Connect establishes the initial transport connection.
func (s *Source) Connect(ctx context.Context) error {
	conn, err := s.cfg.Dialer.Dial(ctx)
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	s.install(conn)
	s.logger.Info().Msg("sensor transport connected")
	return nil
}

func (s *Source) install(conn io.ReadWriteCloser) {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), maxLine)

	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.scanner = sc
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// Next blocks until a classifiable line arrives, the context ends, or the
// transport is lost for good. Empty lines are skipped; unclassified lines are
// returned as TypeUnknown so the caller decides what to do with them. A
// source that never connected dials through the same bounded reconnect
// budget, so a bridge that is down at boot is retried rather than fatal.
func (s *Source) Next(ctx context.Context) (Event, error) {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Event{}, ctxErr
			}
			if s.isClosed() {
				return Event{}, ErrClosed
			}
			if !errors.Is(err, errNotConnected) {
				s.logger.Warn().Err(err).Msg("sensor transport read failed")
			}
			if rerr := s.reconnect(ctx); rerr != nil {
				return Event{}, rerr
			}
			continue
		}

		line = strings.TrimRight(s.sanitize.String(line), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		ev := Classify(line)
		metrics.IncSensorEvent(string(ev.Type))
		if ev.Type == TypeUnknown && s.unknownLog.Allow() {
			s.logger.Debug().Str(zwlog.FieldLine, truncateLine(line)).Msg("unclassified sensor line")
		}
		return ev, nil
	}
}

// readLine returns the next line without its terminator. Context
// cancellation closes the connection to unblock the pending read.
func (s *Source) readLine(ctx context.Context) (string, error) {
	s.mu.Lock()
	sc, conn := s.scanner, s.conn
	s.mu.Unlock()
	if sc == nil || conn == nil {
		return "", errNotConnected
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if sc.Scan() {
		return sc.Text(), nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// reconnect dials until a connection is established or the attempt budget is
// spent. The first attempt is immediate; later ones wait the fixed backoff.
func (s *Source) reconnect(ctx context.Context) error {
	tracer := telemetry.Tracer("zonewatch.sensor")
	ctx, span := tracer.Start(ctx, "sensor.reconnect",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= s.cfg.ReconnectAttempts; attempt++ {
		if wait := s.backoff(attempt); wait > 0 {
			select {
			case <-ctx.Done():
				span.SetStatus(codes.Error, "reconnect canceled")
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		span.SetAttributes(telemetry.TransportAttributes(s.addr, attempt)...)
		metrics.IncTransportReconnect()
		conn, err := s.cfg.Dialer.Dial(ctx)
		if err != nil {
			lastErr = err
			span.RecordError(err)
			s.logger.Warn().
				Err(err).
				Int(zwlog.FieldAttempt, attempt).
				Msg("sensor reconnect failed")
			continue
		}

		s.install(conn)
		s.logger.Info().Int(zwlog.FieldAttempt, attempt).Msg("sensor transport reconnected")
		span.SetStatus(codes.Ok, "")
		return nil
	}

	metrics.IncTransportFailure()
	terr := &TransportError{Op: "reconnect", Attempts: s.cfg.ReconnectAttempts, Err: lastErr}
	span.RecordError(terr)
	span.SetAttributes(telemetry.ErrorAttributes(terr, "transport_failure")...)
	span.SetStatus(codes.Error, "reconnect attempts exhausted")
	return terr
}

func (s *Source) backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return s.cfg.ReconnectBackoff
}

// SendCommand writes one line to the transport and pauses for the settle
// delay. Writes never trigger reconnects; a failed write surfaces to the
// caller while the read path recovers the connection.
func (s *Source) SendCommand(ctx context.Context, command string) error {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		metrics.IncCommandSent("error")
		return &TransportError{Op: "send", Err: errNotConnected}
	}

	if _, err := io.WriteString(conn, command+"\n"); err != nil {
		metrics.IncCommandSent("error")
		return &TransportError{Op: "send", Err: err}
	}
	metrics.IncCommandSent("ok")
	s.logger.Debug().Str(zwlog.FieldEvent, "sensor.command_sent").Str("command", command).Msg("command written to sensor transport")

	if s.cfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.SettleDelay):
		}
	}
	return nil
}

// Close tears down the transport. Any blocked Next returns ErrClosed.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		s.scanner = nil
		return err
	}
	return nil
}

func (s *Source) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func truncateLine(line string) string {
	const max = 200
	if len(line) <= max {
		return line
	}
	return line[:max] + "..."
}

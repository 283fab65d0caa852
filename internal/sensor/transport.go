// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sensor

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// Dialer opens a connection to the sensor board. Tests substitute in-memory
// transports; production uses TCPDialer.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)
}

// TCPDialer connects to the sensor board over TCP, typically a serial-to-WiFi
// bridge on the local network.
type TCPDialer struct {
	Addr    string
	Timeout time.Duration
}

func (d *TCPDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial sensor %s: %w", d.Addr, err)
	}
	return conn, nil
}

// String reports the dial target; sources label transport spans with it.
func (d *TCPDialer) String() string {
	return d.Addr
}

// TransportError reports an unrecoverable transport failure after the
// configured reconnect attempts were exhausted.
type TransportError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("sensor transport %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("sensor transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

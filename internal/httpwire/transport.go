// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpwire

import (
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

// =============================================================================
// TRANSPORT
// =============================================================================

// DefaultReadTimeout bounds a single blocking read, not the whole
// exchange. A stream that keeps delivering chunks within this bound never
// times out, no matter how long the overall response takes.
const DefaultReadTimeout = 120 * time.Second

// Transport owns exactly one TCP socket and exposes blocking read/write
// primitives with per-operation deadlines. It performs no retries and no
// pooling; a Transport serves a single request/response exchange and is
// closed afterwards.
//
// Close is idempotent and safe to call from a cancellation path while a
// read is in flight (the read returns with an error).
type Transport struct {
	conn        net.Conn
	readTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to host:port over plaintext TCP. connectTimeout bounds
// the dial; readTimeout bounds each subsequent Read (zero means
// DefaultReadTimeout).
func Dial(host string, port int, connectTimeout, readTimeout time.Duration) (*Transport, error) {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, &ConnError{Op: "dial", Timeout: isNetTimeout(err), Cause: err}
	}
	return &Transport{conn: conn, readTimeout: readTimeout}, nil
}

// NewTransport wraps an established connection. Used by tests to drive
// the parser against in-process pipes and loopback sockets.
func NewTransport(conn net.Conn, readTimeout time.Duration) *Transport {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Transport{conn: conn, readTimeout: readTimeout}
}

// Read reads up to len(p) bytes, blocking until data arrives, the peer
// closes (io.EOF), or the per-read deadline expires (timeout ConnError).
func (t *Transport) Read(p []byte) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return 0, &ConnError{Op: "read", Cause: err}
	}
	n, err := t.conn.Read(p)
	if err != nil {
		if err == io.EOF {
			return n, io.EOF
		}
		return n, &ConnError{Op: "read", Timeout: isNetTimeout(err), Cause: err}
	}
	return n, nil
}

// Write sends the whole buffer or fails.
func (t *Transport) Write(p []byte) (int, error) {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.readTimeout)); err != nil {
		return 0, &ConnError{Op: "write", Cause: err}
	}
	n, err := t.conn.Write(p)
	if err != nil {
		return n, &ConnError{Op: "write", Timeout: isNetTimeout(err), Cause: err}
	}
	return n, nil
}

// Close shuts the socket. Safe to call more than once; every path that
// finishes or abandons an exchange goes through here.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if err := t.conn.Close(); err != nil {
			t.closeErr = &ConnError{Op: "close", Cause: err}
		}
	})
	return t.closeErr
}

func isNetTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

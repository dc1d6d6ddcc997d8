// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpwire

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ConnError reports a transport-level failure: refused or reset
// connections, resolution failures, and read/write timeouts.
type ConnError struct {
	Op      string // "dial", "read", "write", "close"
	Timeout bool
	Cause   error
}

func (e *ConnError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("httpwire: %s timed out: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("httpwire: %s failed: %v", e.Op, e.Cause)
}

func (e *ConnError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a connection error caused by a
// read/write/dial deadline expiring.
func IsTimeout(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce) && ce.Timeout
}

// ProtoPhase names the protocol phase in which malformed input was seen.
type ProtoPhase int

const (
	PhaseRequest ProtoPhase = iota
	PhaseStatusLine
	PhaseHeaders
	PhaseChunkSize
	PhaseChunkData
	PhaseBody
)

func (p ProtoPhase) String() string {
	switch p {
	case PhaseRequest:
		return "request"
	case PhaseStatusLine:
		return "status line"
	case PhaseHeaders:
		return "headers"
	case PhaseChunkSize:
		return "chunk size"
	case PhaseChunkData:
		return "chunk data"
	case PhaseBody:
		return "body"
	default:
		return "protocol"
	}
}

// ProtocolError reports malformed HTTP traffic. The phase names where in
// the exchange the offending bytes were seen.
type ProtocolError struct {
	Phase  ProtoPhase
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("httpwire: malformed %s: %s", e.Phase, e.Detail)
}

// Sentinel protocol errors for the failure modes callers branch on.
var (
	// ErrBadChunkSize is wrapped by chunk-size lines that are not valid hex.
	ErrBadChunkSize = &ProtocolError{Phase: PhaseChunkSize, Detail: "invalid hex chunk size"}

	// ErrTruncatedBody is returned when the peer closes the connection
	// before the framed body is complete.
	ErrTruncatedBody = &ProtocolError{Phase: PhaseBody, Detail: "connection closed before body completed"}

	// ErrTruncatedJSON is returned when a body stream ends in the middle
	// of a JSON value.
	ErrTruncatedJSON = &ProtocolError{Phase: PhaseBody, Detail: "body ended mid JSON value"}
)

// IsBadChunkSize reports whether err is a chunk-size framing error.
func IsBadChunkSize(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Phase == PhaseChunkSize
}

// IsTruncatedBody reports whether err means the body ended early.
func IsTruncatedBody(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Phase == PhaseBody &&
		pe.Detail == ErrTruncatedBody.Detail
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/morganforge/forge/internal/httpwire"
	"github.com/morganforge/forge/internal/jsonval"
)

// =============================================================================
// STREAM
// =============================================================================

// Stream is a lazy, forward-only, non-restartable sequence of decoded
// JSON values pulled from one response body. It is driven entirely by
// the consumer: nothing is read from the socket until Next is called,
// and no background goroutine exists.
//
// Usage follows the sql.Rows pattern:
//
//	for stream.Next() {
//	    v := stream.Value()
//	    ...
//	}
//	if err := stream.Err(); err != nil && !llm.IsCancelled(err) { ... }
//
// In line-delimited mode the sequence ends when the body ends or when a
// decoded object carries done=true, whichever comes first. Cancelling
// the context stops the stream between values; Err then reports
// Cancelled, which is a status, not a failure, and the values already
// yielded remain valid.
//
// A Stream is single-consumer and not safe for concurrent use; run
// independent requests on independent streams instead.
type Stream struct {
	ctx    context.Context
	body   io.Reader
	closer io.Closer
	line   bool

	buf     []byte
	srcDone bool

	cur      jsonval.Value
	err      error
	finished bool
	closed   bool
}

func newStream(ctx context.Context, body io.Reader, closer io.Closer, line bool) *Stream {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Stream{ctx: ctx, body: body, closer: closer, line: line}
}

// Next advances to the next decoded value. It returns false when the
// sequence is exhausted, cancelled, or failed; consult Err to tell the
// cases apart.
func (s *Stream) Next() bool {
	if s.finished {
		return false
	}

	// Cooperative cancellation, checked between values only. A value
	// already decoded is never discarded.
	select {
	case <-s.ctx.Done():
		s.stop(Cancelled)
		return false
	default:
	}

	if s.line {
		return s.nextLine()
	}
	return s.nextSingle()
}

// nextSingle accumulates the whole body and decodes exactly one value.
func (s *Stream) nextSingle() bool {
	data, err := io.ReadAll(s.body)
	if err != nil {
		s.stop(err)
		return false
	}
	v, perr := jsonval.ParseOne(data)
	if perr != nil {
		if pe, ok := perr.(*jsonval.ParseError); ok && pe.Kind == jsonval.ErrTrailingData {
			s.stop(&httpwire.ProtocolError{Phase: httpwire.PhaseBody,
				Detail: "trailing data after response value"})
		} else {
			s.stop(perr)
		}
		return false
	}
	s.cur = v
	s.finished = true
	s.close()
	return true
}

// nextLine decodes the next value in line-delimited mode, buffering
// across reads until a complete value is available.
func (s *Stream) nextLine() bool {
	for {
		s.buf = trimLeadingSpace(s.buf)

		if len(s.buf) > 0 {
			v, n, err := jsonval.ParseValuePrefix(s.buf)
			switch {
			case err == nil:
				s.buf = s.buf[n:]
				return s.yield(v)
			case !jsonval.IsIncomplete(err):
				s.stop(err)
				return false
			}
			// Incomplete: fall through and read more.
		}

		if s.srcDone {
			return s.finishRemainder()
		}
		if !s.fill() {
			return false
		}
	}
}

// yield publishes v and, on a true done marker, ends the sequence after
// this value.
func (s *Stream) yield(v jsonval.Value) bool {
	s.cur = v
	if ChunkDone(v) {
		s.finished = true
		s.close()
	}
	return true
}

// finishRemainder handles end of body. An all-whitespace remainder is a
// clean end; a parseable remainder (a value not followed by a newline)
// is yielded; anything else is a truncated value.
func (s *Stream) finishRemainder() bool {
	if len(s.buf) == 0 {
		s.stop(nil)
		return false
	}
	v, err := jsonval.ParseOne(s.buf)
	if err != nil {
		if jsonval.IsIncomplete(err) {
			s.stop(httpwire.ErrTruncatedJSON)
		} else {
			s.stop(err)
		}
		return false
	}
	s.buf = nil
	s.srcDone = true
	s.cur = v
	s.finished = true
	s.close()
	return true
}

// fill appends one body read to the buffer. Returns false when the
// stream has terminated with an error.
func (s *Stream) fill() bool {
	scratch := make([]byte, 4096)
	n, err := s.body.Read(scratch)
	if n > 0 {
		s.buf = append(s.buf, scratch[:n]...)
	}
	if err == io.EOF {
		s.srcDone = true
		return true
	}
	if err != nil {
		s.stop(err)
		return false
	}
	if n == 0 {
		s.srcDone = true
	}
	return true
}

// Value returns the value decoded by the last successful Next.
func (s *Stream) Value() jsonval.Value {
	return s.cur
}

// Err returns the terminal status of the stream: nil after a clean end,
// Cancelled after cooperative cancellation, or the failure that stopped
// decoding.
func (s *Stream) Err() error {
	return s.err
}

// stop terminates the sequence with the given status and releases the
// connection.
func (s *Stream) stop(err error) {
	s.finished = true
	s.err = err
	s.close()
}

// Close releases the underlying connection. It is idempotent and safe
// to call at any point; a stream abandoned mid-body leaks nothing.
func (s *Stream) Close() error {
	s.finished = true
	return s.close()
}

func (s *Stream) close() error {
	if s.closed || s.closer == nil {
		return nil
	}
	s.closed = true
	return s.closer.Close()
}

func trimLeadingSpace(b []byte) []byte {
	return bytes.TrimLeft(b, " \t\r\n")
}

// =============================================================================
// STREAM STATISTICS
// =============================================================================

// StreamStats holds statistics collected while consuming a stream. The
// duration and token fields come from the terminal done=true object.
type StreamStats struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	TotalDuration time.Duration
	LoadDuration  time.Duration
	EvalDuration  time.Duration

	PromptTokens     int
	CompletionTokens int

	TTFT            time.Duration // time to first token
	TokensPerSecond float64
}

// NewStreamStats creates stats with the start time set.
func NewStreamStats() *StreamStats {
	return &StreamStats{StartTime: time.Now()}
}

// RecordFirstToken marks the time of first token arrival.
func (s *StreamStats) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Finalize extracts final statistics from the terminal stream object.
func (s *StreamStats) Finalize(v jsonval.Value) {
	s.EndTime = time.Now()
	s.TotalDuration = time.Duration(fieldInt64(v, "total_duration"))
	s.LoadDuration = time.Duration(fieldInt64(v, "load_duration"))
	s.EvalDuration = time.Duration(fieldInt64(v, "eval_duration"))
	s.PromptTokens = int(fieldInt64(v, "prompt_eval_count"))
	s.CompletionTokens = int(fieldInt64(v, "eval_count"))

	if s.EvalDuration > 0 {
		s.TokensPerSecond = float64(s.CompletionTokens) / s.EvalDuration.Seconds()
	}
}

// Format returns a one-line summary suitable for the status line.
func (s *StreamStats) Format() string {
	totalSec := s.TotalDuration.Seconds()
	ttftMs := s.TTFT.Milliseconds()

	return formatStatsDuration(totalSec) + " | " +
		formatStatsInt(s.CompletionTokens) + " tokens | " +
		formatStatsFloat(s.TokensPerSecond) + " tok/s | " +
		"TTFT " + formatStatsInt(int(ttftMs)) + "ms"
}

// =============================================================================
// STREAM ACCUMULATOR
// =============================================================================

// Accumulator collects stream values into the full response text and
// gathers statistics along the way.
type Accumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	content strings.Builder
	Stats   *StreamStats
	Done    bool
}

// NewAccumulator creates an accumulator with live stats.
func NewAccumulator() *Accumulator {
	return &Accumulator{Stats: NewStreamStats()}
}

// Add processes one decoded stream value.
func (a *Accumulator) Add(v jsonval.Value) {
	text := ChunkContent(v)
	if text != "" && a.content.Len() == 0 {
		a.Stats.RecordFirstToken()
	}
	a.content.WriteString(text)

	if ChunkDone(v) {
		a.Done = true
		a.Stats.Finalize(v)
	}
}

// Content returns the accumulated response text.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatStatsInt formats an integer without using fmt.
func formatStatsInt(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}

	if negative {
		return "-" + string(digits)
	}
	return string(digits)
}

// formatStatsFloat formats a float with one decimal place.
func formatStatsFloat(f float64) string {
	whole := int(f)
	frac := int((f - float64(whole)) * 10)
	if frac < 0 {
		frac = -frac
	}
	return formatStatsInt(whole) + "." + formatStatsInt(frac)
}

// formatStatsDuration formats seconds as a nice duration string.
func formatStatsDuration(seconds float64) string {
	if seconds < 1 {
		ms := int(seconds * 1000)
		return formatStatsInt(ms) + "ms"
	}
	return formatStatsFloat(seconds) + "s"
}

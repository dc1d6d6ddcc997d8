// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpwire

import (
	"bytes"
	"io"
	"strconv"
	"strings"
)

// =============================================================================
// RESPONSE
// =============================================================================

// maxHeadBytes bounds the status line plus headers. A head that exceeds
// this without a terminating blank line is malformed.
const maxHeadBytes = 64 * 1024

// FramingKind identifies how a response body is delimited.
type FramingKind int

const (
	// FramingChunked means Transfer-Encoding: chunked. Takes precedence
	// over Content-Length when both are present.
	FramingChunked FramingKind = iota
	// FramingContentLength means a fixed byte count from Content-Length.
	FramingContentLength
	// FramingUntilClose means the body runs until the peer closes.
	FramingUntilClose
)

func (k FramingKind) String() string {
	switch k {
	case FramingChunked:
		return "chunked"
	case FramingContentLength:
		return "content-length"
	case FramingUntilClose:
		return "until-close"
	default:
		return "unknown"
	}
}

// Framing is the resolved body delimiting strategy for a response.
// Length is meaningful only for FramingContentLength.
type Framing struct {
	Kind   FramingKind
	Length int64
}

// Response is a parsed HTTP/1.1 response. Body yields the decoded body
// bytes, already de-chunked when the transfer encoding is chunked.
type Response struct {
	StatusCode int
	Reason     string
	Headers    Headers
	Framing    Framing
	Body       io.Reader
}

// ReadResponse reads and parses a response head from r, which may deliver
// bytes in arbitrarily small fragments, then wires up a body reader
// according to the resolved framing. Bytes read past the head are not
// lost; they are replayed ahead of r in the body reader.
func ReadResponse(r io.Reader) (*Response, error) {
	head, rest, err := readHead(r)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(head, "\r\n")
	code, reason, err := parseStatusLine(lines[0])
	if err != nil {
		return nil, err
	}

	var headers Headers
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			return nil, &ProtocolError{Phase: PhaseHeaders,
				Detail: "obsolete header line folding"}
		}
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			return nil, &ProtocolError{Phase: PhaseHeaders,
				Detail: "header line missing colon"}
		}
		name := line[:i]
		if strings.ContainsAny(name, " \t") {
			return nil, &ProtocolError{Phase: PhaseHeaders,
				Detail: "whitespace in header name"}
		}
		headers.Set(name, strings.TrimSpace(line[i+1:]))
	}

	framing, err := resolveFraming(headers)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		StatusCode: code,
		Reason:     reason,
		Headers:    headers,
		Framing:    framing,
	}

	raw := io.Reader(r)
	if len(rest) > 0 {
		raw = io.MultiReader(bytes.NewReader(rest), r)
	}
	switch framing.Kind {
	case FramingChunked:
		resp.Body = NewChunkedReader(raw)
	case FramingContentLength:
		resp.Body = &fixedLengthReader{src: raw, remaining: framing.Length}
	case FramingUntilClose:
		resp.Body = raw
	}
	return resp, nil
}

// readHead accumulates reads from r until the \r\n\r\n head terminator
// appears, returning the head (without the terminator) and any body bytes
// read past it.
func readHead(r io.Reader) (head string, rest []byte, err error) {
	var buf []byte
	scratch := make([]byte, 4096)
	for {
		if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
			return string(buf[:i]), buf[i+4:], nil
		}
		if len(buf) > maxHeadBytes {
			return "", nil, &ProtocolError{Phase: PhaseHeaders,
				Detail: "response head too large"}
		}
		n, rerr := r.Read(scratch)
		if n > 0 {
			buf = append(buf, scratch[:n]...)
			continue
		}
		if rerr == io.EOF || rerr == nil {
			phase := PhaseStatusLine
			if bytes.Contains(buf, []byte("\r\n")) {
				phase = PhaseHeaders
			}
			return "", nil, &ProtocolError{Phase: phase,
				Detail: "connection closed before end of response head"}
		}
		return "", nil, rerr
	}
}

// parseStatusLine parses "HTTP/1.1 <code> <reason>". The reason phrase
// may be empty; the version and a three-digit code are required.
func parseStatusLine(line string) (int, string, error) {
	const prefix = "HTTP/1.1 "
	if !strings.HasPrefix(line, prefix) {
		if strings.HasPrefix(line, "HTTP/1.0 ") {
			line = "HTTP/1.1 " + line[len("HTTP/1.0 "):]
		} else {
			return 0, "", &ProtocolError{Phase: PhaseStatusLine,
				Detail: "malformed status line"}
		}
	}
	tail := line[len(prefix):]
	codeStr := tail
	reason := ""
	if i := strings.IndexByte(tail, ' '); i >= 0 {
		codeStr = tail[:i]
		reason = tail[i+1:]
	}
	if len(codeStr) != 3 {
		return 0, "", &ProtocolError{Phase: PhaseStatusLine,
			Detail: "status code must be three digits"}
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 {
		return 0, "", &ProtocolError{Phase: PhaseStatusLine,
			Detail: "invalid status code"}
	}
	return code, reason, nil
}

// resolveFraming picks the body delimiting strategy from the headers.
// Chunked wins over Content-Length; with neither, the body runs to close.
func resolveFraming(h Headers) (Framing, error) {
	if h.Has("Transfer-Encoding") {
		te := h.Get("Transfer-Encoding")
		if strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return Framing{Kind: FramingChunked}, nil
		}
		return Framing{}, &ProtocolError{Phase: PhaseHeaders,
			Detail: "unsupported transfer encoding: " + te}
	}
	if h.Has("Content-Length") {
		cl := h.Get("Content-Length")
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			return Framing{}, &ProtocolError{Phase: PhaseHeaders,
				Detail: "invalid content length: " + cl}
		}
		return Framing{Kind: FramingContentLength, Length: n}, nil
	}
	return Framing{Kind: FramingUntilClose}, nil
}

// fixedLengthReader caps the body at a declared Content-Length and turns
// an early peer close into ErrTruncatedBody.
type fixedLengthReader struct {
	src       io.Reader
	remaining int64
}

func (f *fixedLengthReader) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}
	n, err := f.src.Read(p)
	f.remaining -= int64(n)
	if err == io.EOF && f.remaining > 0 {
		return n, ErrTruncatedBody
	}
	if err == io.EOF && f.remaining == 0 {
		return n, io.EOF
	}
	return n, err
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpwire

import (
	"io"
	"strings"
)

// =============================================================================
// CHUNKED DECODER
// =============================================================================

// maxChunkLine bounds a chunk-size or trailer line. Anything longer is
// treated as malformed rather than buffered without limit.
const maxChunkLine = 4096

type chunkState int

const (
	chunkReadingSize chunkState = iota
	chunkReadingData
	chunkReadingDataCRLF
	chunkReadingTrailers
	chunkDone
)

// ChunkedReader decodes HTTP/1.1 chunked transfer encoding from src into
// a contiguous byte stream. It is an incremental state machine: a read
// that ends mid-size-line or mid-chunk is buffered and resumed on the
// next call, so arbitrarily fragmented source reads reassemble correctly.
//
// A zero-size chunk ends the body; trailer headers, if any, are consumed
// and discarded up to the final blank line. The peer closing before the
// zero-size terminator yields ErrTruncatedBody.
type ChunkedReader struct {
	src       io.Reader
	state     chunkState
	remaining int64 // data bytes left in the current chunk

	buf     []byte // unconsumed raw bytes from src
	srcDone bool   // src returned io.EOF
	err     error  // sticky terminal error
}

// NewChunkedReader returns a decoder over src.
func NewChunkedReader(src io.Reader) *ChunkedReader {
	return &ChunkedReader{src: src}
}

// Read implements io.Reader over the decoded byte stream.
func (c *ChunkedReader) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		switch c.state {
		case chunkDone:
			c.err = io.EOF
			return 0, io.EOF

		case chunkReadingSize:
			line, ok, err := c.takeLine()
			if err != nil {
				return 0, c.fail(err)
			}
			if !ok {
				if err := c.fill(); err != nil {
					return 0, c.fail(err)
				}
				continue
			}
			size, err := parseChunkSize(line)
			if err != nil {
				return 0, c.fail(err)
			}
			if size == 0 {
				c.state = chunkReadingTrailers
				continue
			}
			c.remaining = size
			c.state = chunkReadingData

		case chunkReadingData:
			if len(c.buf) == 0 {
				if err := c.fill(); err != nil {
					return 0, c.fail(err)
				}
				continue
			}
			n := len(p)
			if int64(n) > c.remaining {
				n = int(c.remaining)
			}
			if n > len(c.buf) {
				n = len(c.buf)
			}
			copy(p, c.buf[:n])
			c.buf = c.buf[n:]
			c.remaining -= int64(n)
			if c.remaining == 0 {
				c.state = chunkReadingDataCRLF
			}
			return n, nil

		case chunkReadingDataCRLF:
			// The CRLF after chunk data is mandatory.
			if len(c.buf) < 2 {
				if err := c.fill(); err != nil {
					return 0, c.fail(err)
				}
				continue
			}
			if c.buf[0] != '\r' || c.buf[1] != '\n' {
				return 0, c.fail(&ProtocolError{Phase: PhaseChunkData,
					Detail: "missing CRLF after chunk data"})
			}
			c.buf = c.buf[2:]
			c.state = chunkReadingSize

		case chunkReadingTrailers:
			line, ok, err := c.takeLine()
			if err != nil {
				return 0, c.fail(err)
			}
			if !ok {
				if err := c.fill(); err != nil {
					return 0, c.fail(err)
				}
				continue
			}
			// Trailer headers are ignored; a blank line ends the body.
			if line == "" {
				c.state = chunkDone
			}
		}
	}
}

// takeLine returns the next CRLF-terminated line (without the CRLF) from
// the buffer. ok is false when no full line is buffered yet.
func (c *ChunkedReader) takeLine() (line string, ok bool, err error) {
	for i := 0; i < len(c.buf); i++ {
		if c.buf[i] == '\n' {
			raw := c.buf[:i]
			c.buf = c.buf[i+1:]
			if n := len(raw); n > 0 && raw[n-1] == '\r' {
				raw = raw[:n-1]
			}
			return string(raw), true, nil
		}
	}
	if len(c.buf) > maxChunkLine {
		return "", false, &ProtocolError{Phase: PhaseChunkSize, Detail: "chunk line too long"}
	}
	return "", false, nil
}

// fill appends one source read to the buffer. io.EOF before the body
// terminator is a truncated body.
func (c *ChunkedReader) fill() error {
	if c.srcDone {
		return ErrTruncatedBody
	}
	scratch := make([]byte, 4096)
	n, err := c.src.Read(scratch)
	if n > 0 {
		c.buf = append(c.buf, scratch[:n]...)
	}
	if err == io.EOF {
		c.srcDone = true
		if n == 0 {
			return ErrTruncatedBody
		}
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTruncatedBody
	}
	return nil
}

func (c *ChunkedReader) fail(err error) error {
	c.err = err
	return err
}

// parseChunkSize parses a chunk-size line: hex digits optionally followed
// by a ';'-introduced extension, which is ignored.
func parseChunkSize(line string) (int64, error) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, &ProtocolError{Phase: PhaseChunkSize, Detail: "empty chunk size line"}
	}
	var size int64
	for i := 0; i < len(line); i++ {
		var d int64
		switch ch := line[i]; {
		case ch >= '0' && ch <= '9':
			d = int64(ch - '0')
		case ch >= 'a' && ch <= 'f':
			d = int64(ch-'a') + 10
		case ch >= 'A' && ch <= 'F':
			d = int64(ch-'A') + 10
		default:
			return 0, &ProtocolError{Phase: PhaseChunkSize,
				Detail: "invalid hex chunk size"}
		}
		size = size<<4 | d
		if size < 0 || size > 1<<40 {
			return 0, &ProtocolError{Phase: PhaseChunkSize, Detail: "chunk size overflow"}
		}
	}
	return size, nil
}

// =============================================================================
// CHUNKED ENCODER (test and tooling support)
// =============================================================================

// EncodeChunked frames payload as chunked transfer encoding, splitting it
// into chunks of the given sizes in rotation. Used by tests and the fake
// servers in this repo; the client never sends chunked requests.
func EncodeChunked(payload []byte, chunkSizes []int) []byte {
	if len(chunkSizes) == 0 {
		chunkSizes = []int{len(payload)}
	}
	var out []byte
	i, si := 0, 0
	for i < len(payload) {
		n := chunkSizes[si%len(chunkSizes)]
		si++
		if n <= 0 {
			continue
		}
		if i+n > len(payload) {
			n = len(payload) - i
		}
		out = appendHex(out, n)
		out = append(out, '\r', '\n')
		out = append(out, payload[i:i+n]...)
		out = append(out, '\r', '\n')
		i += n
	}
	out = append(out, '0', '\r', '\n', '\r', '\n')
	return out
}

func appendHex(dst []byte, n int) []byte {
	if n == 0 {
		return append(dst, '0')
	}
	var tmp [16]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = hexDigits[n&0xf]
		n >>= 4
	}
	return append(dst, tmp[i:]...)
}

const hexDigits = "0123456789abcdef"

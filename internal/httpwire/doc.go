// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpwire implements a minimal HTTP/1.1 client wire layer over
// raw TCP. It covers exactly what talking to a local inference server
// needs: building requests, parsing responses from arbitrarily
// fragmented reads, and decoding chunked transfer encoding.
//
// # Key Types
//
//   - Transport: a TCP connection with a per-read inactivity deadline,
//     so a stream that keeps producing tokens is never killed by an
//     overall request timeout.
//   - Request: an ordered-header request builder that owns the Host and
//     Content-Length headers and rejects CR/LF injection.
//   - Response: a parsed response head plus a Body reader wired for the
//     resolved framing (chunked, fixed length, or until close).
//   - ChunkedReader: a resumable chunked transfer decoder.
//
// # Usage
//
//	t, err := httpwire.Dial("127.0.0.1", 11434, 5*time.Second, 120*time.Second)
//	if err != nil { ... }
//	defer t.Close()
//
//	req := httpwire.NewRequest("POST", "/api/generate").SetBody(payload)
//	raw, err := req.Build("127.0.0.1:11434")
//	if _, err := t.Write(raw); err != nil { ... }
//
//	resp, err := httpwire.ReadResponse(t)
//	if err != nil { ... }
//	body, err := io.ReadAll(resp.Body)
//
// Errors are classified: ConnError for socket failures (with a Timeout
// flag), ProtocolError for malformed peer output (tagged with the parse
// phase), and the sentinels ErrBadChunkSize and ErrTruncatedBody.
package httpwire

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpwire

import (
	"strconv"
	"strings"
)

// =============================================================================
// HEADERS
// =============================================================================

// Headers is an ordered, case-insensitive header map. Lookup and replace
// ignore case; iteration order is insertion order. Setting an existing
// name replaces its value (last value wins).
type Headers struct {
	items []headerItem
}

type headerItem struct {
	name  string
	value string
}

// Set stores value under name, replacing any existing entry whose name
// matches case-insensitively.
func (h *Headers) Set(name, value string) {
	for i := range h.items {
		if strings.EqualFold(h.items[i].name, name) {
			h.items[i].value = value
			return
		}
	}
	h.items = append(h.items, headerItem{name: name, value: value})
}

// Get returns the value stored under name, matched case-insensitively.
func (h *Headers) Get(name string) string {
	for i := range h.items {
		if strings.EqualFold(h.items[i].name, name) {
			return h.items[i].value
		}
	}
	return ""
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	for i := range h.items {
		if strings.EqualFold(h.items[i].name, name) {
			return true
		}
	}
	return false
}

// Len returns the number of stored headers.
func (h *Headers) Len() int {
	return len(h.items)
}

// =============================================================================
// REQUEST BUILDER
// =============================================================================

// Request describes one HTTP/1.1 request to be serialized. Host and port
// are owned by the Transport; the builder only needs the host for the
// mandatory Host header.
type Request struct {
	Method  string
	Path    string
	Headers Headers
	Body    []byte
}

// NewRequest returns a request with the given method and path.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path}
}

// SetHeader sets a header and returns the request for chaining.
func (r *Request) SetHeader(name, value string) *Request {
	r.Headers.Set(name, value)
	return r
}

// SetBody attaches body bytes. Content-Length is derived at build time.
func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

// Build serializes the request into a single byte buffer:
//
//	METHOD path HTTP/1.1\r\n
//	Host: <host>\r\n
//	Name: value\r\n ...
//	Content-Length: <len>\r\n   (when a body is present)
//	\r\n
//	<body verbatim>
//
// Bodies are always fully buffered before send; chunked request encoding
// is never produced. Header names and values containing raw CR or LF are
// rejected so callers cannot smuggle extra header lines.
func (r *Request) Build(host string) ([]byte, error) {
	if r.Method == "" || strings.ContainsAny(r.Method, " \r\n") {
		return nil, &ProtocolError{Phase: PhaseRequest, Detail: "invalid method"}
	}
	path := r.Path
	if path == "" {
		path = "/"
	}
	if strings.ContainsAny(path, " \r\n") {
		return nil, &ProtocolError{Phase: PhaseRequest, Detail: "invalid path"}
	}
	if strings.ContainsAny(host, "\r\n") {
		return nil, &ProtocolError{Phase: PhaseRequest, Detail: "invalid host"}
	}

	var b strings.Builder
	b.Grow(128 + len(r.Body))
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(path)
	b.WriteString(" HTTP/1.1\r\n")

	b.WriteString("Host: ")
	b.WriteString(host)
	b.WriteString("\r\n")

	for _, it := range r.Headers.items {
		if it.name == "" || strings.ContainsAny(it.name, ":\r\n ") {
			return nil, &ProtocolError{Phase: PhaseRequest,
				Detail: "invalid header name " + strconv.Quote(it.name)}
		}
		if strings.ContainsAny(it.value, "\r\n") {
			return nil, &ProtocolError{Phase: PhaseRequest,
				Detail: "header value for " + it.name + " contains CR/LF"}
		}
		// Host and Content-Length are owned by the builder.
		if strings.EqualFold(it.name, "Host") || strings.EqualFold(it.name, "Content-Length") {
			continue
		}
		b.WriteString(it.name)
		b.WriteString(": ")
		b.WriteString(it.value)
		b.WriteString("\r\n")
	}

	if r.Body != nil {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(r.Body)))
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	out := make([]byte, 0, b.Len()+len(r.Body))
	out = append(out, b.String()...)
	out = append(out, r.Body...)
	return out, nil
}

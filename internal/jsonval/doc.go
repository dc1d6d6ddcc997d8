// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jsonval implements the JSON value model, parser, and serializer
// used by the forge wire protocol.
//
// Unlike encoding/json this package keeps JSON as JSON: a Value is a
// tagged union over the six variants, numbers are stored as their decimal
// source text (no premature float conversion), and object member order is
// preserved exactly as encountered, duplicates included.
//
// # Key Types
//
//   - Value: tagged union over null/bool/number/string/array/object
//   - Member: ordered (key, value) pair of an object
//   - ParseError: parse failure with byte offset and error kind
//
// # Entry Points
//
// ParseOne parses a complete document and rejects trailing bytes.
// ParseValuePrefix stops after the first complete value and reports how
// many bytes it consumed; input that merely ends too early is reported
// via IsIncomplete so a streaming caller can keep buffering.
//
//	v, n, err := jsonval.ParseValuePrefix(buf)
//	if jsonval.IsIncomplete(err) {
//	    // read more bytes and retry
//	}
//
// Nesting depth is bounded by an explicit counter (DefaultMaxDepth, or a
// caller-supplied limit) rather than native recursion on untrusted input.
package jsonval

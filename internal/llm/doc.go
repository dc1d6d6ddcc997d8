// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm is the client for a local inference server. It speaks
// HTTP/1.1 through the httpwire package and decodes responses with the
// jsonval package; nothing in the response path touches net/http or
// encoding/json, so the decoding behavior is fully owned by this repo.
//
// # Key Types
//
//   - Client: dials one fresh connection per request and exposes
//     generate, chat, and model listing operations.
//   - RequestSpec: the request descriptor callers hand to Do. Both
//     streaming and non-streaming responses come back the same way.
//   - Stream: a pull-based sequence of decoded JSON values. Streaming
//     responses yield one value per NDJSON line until the body ends or
//     an object carries done=true; non-streaming responses yield
//     exactly one value.
//   - Accumulator: collects stream values into the full response text
//     plus timing statistics.
//
// # Usage
//
//	client := llm.NewClientWithConfig(&llm.ClientConfig{Host: host, Port: port})
//	stream, err := client.GenerateStream(ctx, model, prompt, nil)
//	if err != nil { ... }
//	defer stream.Close()
//
//	acc := llm.NewAccumulator()
//	for stream.Next() {
//	    acc.Add(stream.Value())
//	}
//	if err := stream.Err(); err != nil && !llm.IsCancelled(err) { ... }
//
// Cancellation is cooperative: cancelling the request context stops the
// stream between values, closes the connection, and surfaces Cancelled
// from Err. Values already yielded stay valid; Cancelled is a status,
// not a failure. This layer never retries; retry policy belongs to the
// caller.
package llm

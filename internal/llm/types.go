// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"strconv"

	"github.com/morganforge/forge/internal/jsonval"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Message is a single turn in a chat conversation.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// NewMessage creates a message with the given role and content.
func NewMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// ModelInfo describes one locally available model.
type ModelInfo struct {
	Name       string
	Size       int64
	ModifiedAt string
}

// Options tunes generation. Zero values mean "not set" and are omitted
// from the request body.
type Options struct {
	Temperature float64
	MaxTokens   int
}

func (o *Options) value() (jsonval.Value, bool) {
	if o == nil {
		return jsonval.Null(), false
	}
	var members []jsonval.Member
	if o.Temperature != 0 {
		members = append(members, jsonval.Member{
			Key:   "temperature",
			Value: jsonval.Number(strconv.FormatFloat(o.Temperature, 'g', -1, 64)),
		})
	}
	if o.MaxTokens != 0 {
		members = append(members, jsonval.Member{
			Key:   "num_predict",
			Value: jsonval.Int(int64(o.MaxTokens)),
		})
	}
	if len(members) == 0 {
		return jsonval.Null(), false
	}
	return jsonval.Object(members...), true
}

// =============================================================================
// REQUEST BODIES
// =============================================================================

// GenerateBody builds the request body for /api/generate.
func GenerateBody(model, prompt string, stream bool, opts *Options) jsonval.Value {
	members := []jsonval.Member{
		{Key: "model", Value: jsonval.String(model)},
		{Key: "prompt", Value: jsonval.String(prompt)},
		{Key: "stream", Value: jsonval.Bool(stream)},
	}
	if ov, ok := opts.value(); ok {
		members = append(members, jsonval.Member{Key: "options", Value: ov})
	}
	return jsonval.Object(members...)
}

// ChatBody builds the request body for /api/chat.
func ChatBody(model string, messages []Message, stream bool, opts *Options) jsonval.Value {
	msgs := make([]jsonval.Value, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, jsonval.Object(
			jsonval.Member{Key: "role", Value: jsonval.String(m.Role)},
			jsonval.Member{Key: "content", Value: jsonval.String(m.Content)},
		))
	}
	members := []jsonval.Member{
		{Key: "model", Value: jsonval.String(model)},
		{Key: "messages", Value: jsonval.Array(msgs...)},
		{Key: "stream", Value: jsonval.Bool(stream)},
	}
	if ov, ok := opts.value(); ok {
		members = append(members, jsonval.Member{Key: "options", Value: ov})
	}
	return jsonval.Object(members...)
}

// =============================================================================
// RESPONSE FIELD EXTRACTION
// =============================================================================

// ChunkContent extracts the partial output text from one decoded stream
// object. Generate responses carry it in "response"; chat responses in
// "message"."content".
func ChunkContent(v jsonval.Value) string {
	if s, ok := v.GetString("response"); ok {
		return s
	}
	if msg, ok := v.Get("message"); ok {
		if s, ok := msg.GetString("content"); ok {
			return s
		}
	}
	return ""
}

// ChunkDone reports whether v carries a true "done" completion marker.
func ChunkDone(v jsonval.Value) bool {
	done, ok := v.GetBool("done")
	return ok && done
}

// ChunkDoneReason returns the "done_reason" field, if present.
func ChunkDoneReason(v jsonval.Value) string {
	s, _ := v.GetString("done_reason")
	return s
}

func fieldInt64(v jsonval.Value, key string) int64 {
	f, ok := v.Get(key)
	if !ok {
		return 0
	}
	n, _ := f.Int64()
	return n
}

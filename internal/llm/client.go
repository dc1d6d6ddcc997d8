// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/morganforge/forge/internal/httpwire"
	"github.com/morganforge/forge/internal/jsonval"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the inference client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeCancelled
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "inference server is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}

	// Cancelled is not a failure. It marks a deliberate termination and
	// accompanies whatever values the stream already yielded.
	Cancelled = &ClientError{Type: ErrTypeCancelled, Message: "cancelled"}
)

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeModelNotFound
}

// IsNotRunning checks if an error indicates the server is not running.
func IsNotRunning(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeNotRunning
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) && ce.Type == ErrTypeTimeout {
		return true
	}
	return httpwire.IsTimeout(err)
}

// IsCancelled checks if an error marks deliberate stream termination.
func IsCancelled(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeCancelled
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the inference client.
// Host and port are resolved once at startup and threaded through here;
// nothing in this package reads ambient global state.
type ClientConfig struct {
	// Host of the inference server (default: 127.0.0.1).
	// Note: explicit IPv4 instead of localhost avoids IPv6 resolution issues on Windows.
	Host string

	// Port of the inference server (default: 11434).
	Port int

	// ConnectTimeout bounds the TCP dial (default: 5s).
	ConnectTimeout time.Duration

	// ReadTimeout bounds each socket read, not the whole request
	// (default: 120s). A live stream never times out between chunks
	// that arrive within this bound.
	ReadTimeout time.Duration

	// DefaultModel to use if none specified (default: "qwen2.5-coder:14b").
	DefaultModel string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Host:           "127.0.0.1",
		Port:           11434,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    httpwire.DefaultReadTimeout,
		DefaultModel:   "qwen2.5-coder:14b",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to a local inference server over its own HTTP/1.1 wire
// layer. Each request dials a fresh connection and drives it to
// completion; there is no pooling and no shared mutable state, so a
// Client is safe for concurrent use and independent requests may run in
// parallel.
//
// Example:
//
//	client := llm.NewClient()
//	stream, err := client.GenerateStream(ctx, "llama3", "hi", nil)
//	if err != nil { ... }
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(llm.ChunkContent(stream.Value()))
//	}
//	if err := stream.Err(); err != nil && !llm.IsCancelled(err) { ... }
type Client struct {
	config *ClientConfig
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.Port == 0 {
		config.Port = 11434
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = httpwire.DefaultReadTimeout
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "qwen2.5-coder:14b"
	}

	return &Client{config: config}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// SetModel updates the default model.
func (c *Client) SetModel(model string) {
	c.config.DefaultModel = model
}

// GetDefaultModel returns the current default model.
func (c *Client) GetDefaultModel() string {
	return c.config.DefaultModel
}

// =============================================================================
// REQUEST DESCRIPTOR
// =============================================================================

// RequestSpec describes one exchange with the server. Stream selects
// line-delimited decoding of the response body; callers setting it must
// also set the matching "stream" flag inside Body.
type RequestSpec struct {
	Method string
	Path   string
	Body   jsonval.Value
	Stream bool
}

// Do performs the exchange described by spec and returns the decoded
// response as a lazy sequence. Non-streaming responses yield exactly one
// value; streaming responses yield one value per line until the body
// ends or a decoded object carries done=true. The returned stream owns
// the connection and must be closed (or drained) by the caller.
func (c *Client) Do(ctx context.Context, spec *RequestSpec) (*Stream, error) {
	req := httpwire.NewRequest(spec.Method, spec.Path)
	if !spec.Body.IsNull() {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(jsonval.Serialize(spec.Body))
	}

	host := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	raw, err := req.Build(host)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build request", Cause: err}
	}

	t, err := httpwire.Dial(c.config.Host, c.config.Port, c.config.ConnectTimeout, c.config.ReadTimeout)
	if err != nil {
		if httpwire.IsTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, ErrNotRunning
	}

	if _, err := t.Write(raw); err != nil {
		t.Close()
		if httpwire.IsTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to send request", Cause: err}
	}

	resp, err := httpwire.ReadResponse(t)
	if err != nil {
		t.Close()
		if httpwire.IsTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to read response", Cause: err}
	}

	if resp.StatusCode == 404 {
		t.Close()
		return nil, ErrModelNotFound
	}
	if resp.StatusCode != 200 {
		msg := readServerError(resp.Body)
		t.Close()
		if msg == "" {
			msg = "request failed: " + resp.Reason
		}
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
	}

	return newStream(ctx, resp.Body, t, spec.Stream), nil
}

// readServerError extracts the "error" field from an error response
// body, best effort.
func readServerError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 16*1024))
	if err != nil && len(data) == 0 {
		return ""
	}
	v, perr := jsonval.ParseOne(data)
	if perr != nil {
		return ""
	}
	msg, _ := v.GetString("error")
	return msg
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the inference server is reachable. The
// health endpoint returns plain text, so only the status matters here.
func (c *Client) CheckRunning(ctx context.Context) error {
	stream, err := c.Do(ctx, &RequestSpec{Method: "GET", Path: "/"})
	if err != nil {
		return err
	}
	return stream.Close()
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all locally available models.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	stream, err := c.Do(ctx, &RequestSpec{Method: "GET", Path: "/api/tags"})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to list models", Cause: err}
		}
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "empty response from /api/tags"}
	}
	v := stream.Value()

	modelsField, ok := v.Get("models")
	if !ok {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "response missing models field"}
	}
	var models []ModelInfo
	for _, m := range modelsField.Elems() {
		name, _ := m.GetString("name")
		modified, _ := m.GetString("modified_at")
		models = append(models, ModelInfo{
			Name:       name,
			Size:       fieldInt64(m, "size"),
			ModifiedAt: modified,
		})
	}
	return models, nil
}

// ModelExists checks if a model is available locally.
func (c *Client) ModelExists(ctx context.Context, model string) bool {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m.Name == model {
			return true
		}
	}
	return false
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate sends a non-streaming completion request and returns the full
// response text.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts *Options) (string, error) {
	if model == "" {
		model = c.config.DefaultModel
	}
	stream, err := c.Do(ctx, &RequestSpec{
		Method: "POST",
		Path:   "/api/generate",
		Body:   GenerateBody(model, prompt, false, opts),
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return "", err
		}
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "empty generate response"}
	}
	return ChunkContent(stream.Value()), stream.Err()
}

// GenerateStream sends a streaming completion request. The caller pulls
// decoded objects off the returned stream one at a time.
func (c *Client) GenerateStream(ctx context.Context, model, prompt string, opts *Options) (*Stream, error) {
	if model == "" {
		model = c.config.DefaultModel
	}
	return c.Do(ctx, &RequestSpec{
		Method: "POST",
		Path:   "/api/generate",
		Body:   GenerateBody(model, prompt, true, opts),
		Stream: true,
	})
}

// Chat sends a non-streaming chat request and returns the assistant
// message.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts *Options) (Message, error) {
	if model == "" {
		model = c.config.DefaultModel
	}
	stream, err := c.Do(ctx, &RequestSpec{
		Method: "POST",
		Path:   "/api/chat",
		Body:   ChatBody(model, messages, false, opts),
	})
	if err != nil {
		return Message{}, err
	}
	defer stream.Close()

	if !stream.Next() {
		if err := stream.Err(); err != nil {
			return Message{}, err
		}
		return Message{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "empty chat response"}
	}
	v := stream.Value()
	role := "assistant"
	if msg, ok := v.Get("message"); ok {
		if r, ok := msg.GetString("role"); ok && r != "" {
			role = r
		}
	}
	return Message{Role: role, Content: ChunkContent(v)}, stream.Err()
}

// ChatStream sends a streaming chat request.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message, opts *Options) (*Stream, error) {
	if model == "" {
		model = c.config.DefaultModel
	}
	return c.Do(ctx, &RequestSpec{
		Method: "POST",
		Path:   "/api/chat",
		Body:   ChatBody(model, messages, true, opts),
		Stream: true,
	})
}

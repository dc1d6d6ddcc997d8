// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/morganforge/forge/internal/httpwire"
	"github.com/morganforge/forge/internal/jsonval"
)

// =============================================================================
// TEST SERVER
// =============================================================================

// fakeServer accepts one connection on loopback, captures the request
// bytes up to the end of the body, and writes a canned response.
type fakeServer struct {
	ln       net.Listener
	response []byte
	keepOpen bool // leave the connection open after writing

	mu      sync.Mutex
	request []byte
}

func startFakeServer(t *testing.T, response []byte, keepOpen bool) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeServer{ln: ln, response: response, keepOpen: keepOpen}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var req []byte
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			req = append(req, buf[:n]...)
		}
		if err != nil || requestComplete(req) {
			break
		}
	}
	s.mu.Lock()
	s.request = req
	s.mu.Unlock()

	conn.Write(s.response)
	if !s.keepOpen {
		conn.Close()
	}
}

// requestComplete reports whether req holds a full head plus the body
// promised by its Content-Length header.
func requestComplete(req []byte) bool {
	i := bytes.Index(req, []byte("\r\n\r\n"))
	if i < 0 {
		return false
	}
	head := string(req[:i])
	bodyLen := 0
	for _, line := range strings.Split(head, "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			v := strings.TrimSpace(line[len("content-length:"):])
			for _, c := range v {
				bodyLen = bodyLen*10 + int(c-'0')
			}
		}
	}
	return len(req)-i-4 >= bodyLen
}

func (s *fakeServer) capturedRequest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.request)
}

func (s *fakeServer) client() *Client {
	addr := s.ln.Addr().(*net.TCPAddr)
	return NewClientWithConfig(&ClientConfig{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
	})
}

func chunkedResponse(body []byte, sizes []int) []byte {
	head := "HTTP/1.1 200 OK\r\nContent-Type: application/x-ndjson\r\nTransfer-Encoding: chunked\r\n\r\n"
	return append([]byte(head), httpwire.EncodeChunked(body, sizes)...)
}

func fixedResponse(status, body string) []byte {
	return []byte("HTTP/1.1 " + status + "\r\nContent-Type: application/json\r\nContent-Length: " +
		formatStatsInt(len(body)) + "\r\n\r\n" + body)
}

// =============================================================================
// END TO END STREAMING
// =============================================================================

const helloStreamBody = `{"response":"Hel","done":false}` + "\n" +
	`{"response":"lo","done":false}` + "\n" +
	`{"response":"","done":true}` + "\n"

func TestGenerateStreamEndToEnd(t *testing.T) {
	// The connection stays open after the done line; the stream must
	// still terminate on the marker, not on close.
	srv := startFakeServer(t, chunkedResponse([]byte(helloStreamBody), []int{7}), true)
	client := srv.client()

	stream, err := client.GenerateStream(context.Background(), "llama3", "hi", nil)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	defer stream.Close()

	var values []jsonval.Value
	acc := NewAccumulator()
	for stream.Next() {
		values = append(values, stream.Value())
		acc.Add(stream.Value())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("got %d values, want 3", len(values))
	}
	if acc.Content() != "Hello" {
		t.Errorf("accumulated content = %q, want Hello", acc.Content())
	}
	if !acc.Done {
		t.Error("accumulator did not see the done marker")
	}
	if !ChunkDone(values[2]) || ChunkDone(values[0]) {
		t.Error("done marker attribution wrong")
	}

	req := srv.capturedRequest()
	if !strings.Contains(req, `{"model":"llama3","prompt":"hi","stream":true}`) {
		t.Errorf("request body not as serialized:\n%s", req)
	}
	if !strings.HasPrefix(req, "POST /api/generate HTTP/1.1\r\n") {
		t.Errorf("request line wrong:\n%s", req)
	}
}

func TestGenerateStreamCancellation(t *testing.T) {
	srv := startFakeServer(t, chunkedResponse([]byte(helloStreamBody), []int{7}), true)
	client := srv.client()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.GenerateStream(ctx, "llama3", "hi", nil)
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	defer stream.Close()

	if !stream.Next() {
		t.Fatalf("first value missing: %v", stream.Err())
	}
	first := stream.Value()
	cancel()

	if stream.Next() {
		t.Fatal("Next returned a value after cancellation")
	}
	if !IsCancelled(stream.Err()) {
		t.Fatalf("Err = %v, want Cancelled", stream.Err())
	}
	if got, _ := first.GetString("response"); got != "Hel" {
		t.Errorf("yielded value = %q, want Hel", got)
	}
	// Terminal state is sticky.
	if stream.Next() || !IsCancelled(stream.Err()) {
		t.Error("cancelled stream did not stay terminated")
	}
}

// =============================================================================
// STREAM DECODING (driven directly, no sockets)
// =============================================================================

// fragReader delivers data in fragments of the given sizes in rotation.
type fragReader struct {
	data  []byte
	sizes []int
	i     int
}

func (f *fragReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	n := f.sizes[f.i%len(f.sizes)]
	f.i++
	if n > len(f.data) {
		n = len(f.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, f.data[:n])
	f.data = f.data[n:]
	return n, nil
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++
	return nil
}

func TestStreamFragmentedNDJSON(t *testing.T) {
	lines := []string{
		`{"response":"a","done":false}`,
		`{"response":"b","done":false}`,
		`[1,2,3]`,
		`"bare string"`,
		`{"response":"c","done":false}`,
	}
	body := strings.Join(lines, "\n") + "\n"

	src := &fragReader{data: []byte(body), sizes: []int{1, 3, 17, 1 << 20}}
	cc := &closeCounter{}
	stream := newStream(context.Background(), src, cc, true)

	var got []jsonval.Value
	for stream.Next() {
		got = append(got, stream.Value())
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if len(got) != len(lines) {
		t.Fatalf("got %d values, want %d", len(got), len(lines))
	}
	for i, line := range lines {
		want, err := jsonval.ParseOne([]byte(line))
		if err != nil {
			t.Fatalf("bad test line: %v", err)
		}
		if !got[i].Equal(want) {
			t.Errorf("value %d = %s, want %s", i, jsonval.SerializeString(got[i]), line)
		}
	}
	stream.Close()
	if cc.n < 1 {
		t.Error("stream never closed the connection")
	}
}

func TestStreamEndsCleanlyWithoutDoneMarker(t *testing.T) {
	body := `{"response":"x","done":false}` + "\n"
	stream := newStream(context.Background(), strings.NewReader(body), &closeCounter{}, true)
	n := 0
	for stream.Next() {
		n++
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Err = %v, want nil on clean end", err)
	}
	if n != 1 {
		t.Errorf("got %d values, want 1", n)
	}
}

func TestStreamTruncatedValue(t *testing.T) {
	body := `{"response":"x","done":false}` + "\n" + `{"respo`
	stream := newStream(context.Background(), strings.NewReader(body), &closeCounter{}, true)
	if !stream.Next() {
		t.Fatalf("first value missing: %v", stream.Err())
	}
	if stream.Next() {
		t.Fatal("truncated value yielded")
	}
	if stream.Err() != httpwire.ErrTruncatedJSON {
		t.Errorf("Err = %v, want truncated JSON protocol error", stream.Err())
	}
}

func TestStreamStopsOnDoneEvenWithTrailingData(t *testing.T) {
	body := `{"done":true}` + "\n" + `{"response":"never","done":false}` + "\n"
	cc := &closeCounter{}
	stream := newStream(context.Background(), strings.NewReader(body), cc, true)
	n := 0
	for stream.Next() {
		n++
	}
	if n != 1 {
		t.Errorf("got %d values, want 1 (stop at done marker)", n)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err = %v, want nil", err)
	}
	if cc.n == 0 {
		t.Error("connection not closed at done marker")
	}
}

func TestStreamSingleValueMode(t *testing.T) {
	body := ` {"response":"full","done":true} `
	stream := newStream(context.Background(), strings.NewReader(body), &closeCounter{}, false)
	if !stream.Next() {
		t.Fatalf("value missing: %v", stream.Err())
	}
	if got := ChunkContent(stream.Value()); got != "full" {
		t.Errorf("content = %q", got)
	}
	if stream.Next() {
		t.Error("single-value mode yielded more than one value")
	}
	if err := stream.Err(); err != nil {
		t.Errorf("Err = %v, want nil", err)
	}
}

func TestStreamSingleValueRejectsTrailing(t *testing.T) {
	stream := newStream(context.Background(), strings.NewReader(`{"a":1} garbage`), &closeCounter{}, false)
	if stream.Next() {
		t.Fatal("trailing garbage accepted")
	}
	pe, ok := stream.Err().(*httpwire.ProtocolError)
	if !ok || pe.Phase != httpwire.PhaseBody {
		t.Errorf("Err = %v, want body protocol error", stream.Err())
	}
}

// =============================================================================
// CLIENT OPERATIONS
// =============================================================================

func TestGenerateNonStreaming(t *testing.T) {
	body := `{"model":"llama3","response":"42","done":true,"eval_count":2,"eval_duration":1000000000}`
	srv := startFakeServer(t, fixedResponse("200 OK", body), false)

	got, err := srv.client().Generate(context.Background(), "llama3", "answer?", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "42" {
		t.Errorf("response = %q, want 42", got)
	}
	req := srv.capturedRequest()
	if !strings.Contains(req, `"stream":false`) {
		t.Errorf("non-streaming request should carry stream:false:\n%s", req)
	}
}

func TestChatNonStreaming(t *testing.T) {
	body := `{"message":{"role":"assistant","content":"hi there"},"done":true}`
	srv := startFakeServer(t, fixedResponse("200 OK", body), false)

	msg, err := srv.client().Chat(context.Background(), "llama3",
		[]Message{UserMessage("hello")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if msg.Role != "assistant" || msg.Content != "hi there" {
		t.Errorf("message = %+v", msg)
	}
	if !strings.Contains(srv.capturedRequest(), `"messages":[{"role":"user","content":"hello"}]`) {
		t.Errorf("messages not serialized in order:\n%s", srv.capturedRequest())
	}
}

func TestServerErrorMessageSurfaced(t *testing.T) {
	srv := startFakeServer(t, fixedResponse("500 Internal Server Error", `{"error":"model exploded"}`), false)
	_, err := srv.client().Generate(context.Background(), "llama3", "hi", nil)
	if err == nil || !strings.Contains(err.Error(), "model exploded") {
		t.Errorf("err = %v, want server error message", err)
	}
}

func TestModelNotFound(t *testing.T) {
	srv := startFakeServer(t, fixedResponse("404 Not Found", `{"error":"model not found"}`), false)
	_, err := srv.client().Generate(context.Background(), "nope", "hi", nil)
	if !IsModelNotFound(err) {
		t.Errorf("err = %v, want model not found", err)
	}
}

func TestConnectionRefused(t *testing.T) {
	// A listener that is immediately closed leaves a port nothing is
	// listening on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	client := NewClientWithConfig(&ClientConfig{Host: "127.0.0.1", Port: port,
		ConnectTimeout: time.Second, ReadTimeout: time.Second})
	_, err = client.Generate(context.Background(), "llama3", "hi", nil)
	if !IsNotRunning(err) {
		t.Errorf("err = %v, want not running", err)
	}
}

func TestListModels(t *testing.T) {
	body := `{"models":[{"name":"llama3:8b","size":4661224676,"modified_at":"2024-05-01T10:00:00Z"},` +
		`{"name":"qwen2.5-coder:14b","size":8988124173,"modified_at":"2024-06-02T09:00:00Z"}]}`
	srv := startFakeServer(t, fixedResponse("200 OK", body), false)

	models, err := srv.client().ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].Name != "llama3:8b" || models[0].Size != 4661224676 {
		t.Errorf("first model = %+v", models[0])
	}
}

func TestDefaultModelSubstitution(t *testing.T) {
	body := `{"response":"ok","done":true}`
	srv := startFakeServer(t, fixedResponse("200 OK", body), false)
	client := srv.client()
	client.SetModel("fallback:7b")

	if _, err := client.Generate(context.Background(), "", "hi", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(srv.capturedRequest(), `"model":"fallback:7b"`) {
		t.Errorf("default model not substituted:\n%s", srv.capturedRequest())
	}
}

// =============================================================================
// BODY BUILDERS
// =============================================================================

func TestGenerateBodyShape(t *testing.T) {
	v := GenerateBody("m", "p", true, &Options{Temperature: 0.5, MaxTokens: 64})
	got := jsonval.SerializeString(v)
	want := `{"model":"m","prompt":"p","stream":true,"options":{"temperature":0.5,"num_predict":64}}`
	if got != want {
		t.Errorf("body = %s\nwant  %s", got, want)
	}
}

func TestGenerateBodyOmitsEmptyOptions(t *testing.T) {
	for _, opts := range []*Options{nil, {}} {
		got := jsonval.SerializeString(GenerateBody("m", "p", false, opts))
		if strings.Contains(got, "options") {
			t.Errorf("empty options serialized: %s", got)
		}
	}
}

func TestAccumulatorStats(t *testing.T) {
	acc := NewAccumulator()
	chunks := []string{
		`{"response":"to","done":false}`,
		`{"response":"ken","done":false}`,
		`{"response":"","done":true,"eval_count":10,"eval_duration":2000000000,"prompt_eval_count":5}`,
	}
	for _, c := range chunks {
		v, err := jsonval.ParseOne([]byte(c))
		if err != nil {
			t.Fatalf("bad chunk: %v", err)
		}
		acc.Add(v)
	}
	if acc.Content() != "token" {
		t.Errorf("content = %q", acc.Content())
	}
	if !acc.Done {
		t.Error("done not recorded")
	}
	if acc.Stats.CompletionTokens != 10 || acc.Stats.PromptTokens != 5 {
		t.Errorf("token counts = %d/%d", acc.Stats.CompletionTokens, acc.Stats.PromptTokens)
	}
	if acc.Stats.TokensPerSecond != 5.0 {
		t.Errorf("tok/s = %v, want 5", acc.Stats.TokensPerSecond)
	}
}

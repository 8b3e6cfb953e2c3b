package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, events []string, inspect func(r *http.Request, body []byte)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(r, body)
		}

		flusher, ok := w.(http.Flusher)
		assert.True(t, ok, "ResponseWriter should support Flusher")

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, evt := range events {
			w.Write([]byte(evt + "\n\n"))
			flusher.Flush()
		}
	}))
}

func collect(chunks <-chan string, errs <-chan error) ([]string, error) {
	var out []string
	for c := range chunks {
		out = append(out, c)
	}
	return out, <-errs
}

func TestStream_ChatDeltas(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"choices":[{"delta":{"content":"<change>"}}]}`,
		`data: {"choices":[{"delta":{"content":"<search>"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"after done"}}]}`,
	}, func(r *http.Request, body []byte) {
		assert.Equal(t, "POST", r.Method, "HTTP method")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path, "path")
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"), "Accept header")
		assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"), "request id header")
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"), "auth header")
		assert.Empty(t, r.Header.Get("Content-Encoding"), "uncompressed")

		var req ChatRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.True(t, req.Stream, "stream flag set")
		assert.Equal(t, "m", req.Model)
		assert.Equal(t, 2, len(req.Messages))
	})
	defer server.Close()

	client := NewClient(server.URL, "key")
	chunks, err := collect(client.Stream(context.Background(), &ChatRequest{
		Model:    "m",
		Messages: []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "<x>"}},
	}, "req-1"))

	require.NoError(t, err)
	assert.Equal(t, []string{"<change>", "<search>"}, chunks, "role-only delta skipped, stops at DONE")
}

func TestStream_CompletionTextField(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"id":"1","choices":[{"text":"line 1\n","index":0}]}`,
		`data: {"id":"2","choices":[{"text":"line 2\n","index":0}]}`,
	}, nil)
	defer server.Close()

	chunks, err := collect(NewClient(server.URL, "").Stream(context.Background(), &ChatRequest{Model: "m"}, ""))

	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\n", strings.Join(chunks, ""), "EOF without DONE ends cleanly")
}

func TestStream_GeneratesRequestID(t *testing.T) {
	var got string
	server := sseServer(t, nil, func(r *http.Request, _ []byte) {
		got = r.Header.Get("X-Request-Id")
	})
	defer server.Close()

	_, err := collect(NewClient(server.URL, "").Stream(context.Background(), &ChatRequest{Model: "m"}, ""))

	require.NoError(t, err)
	assert.Len(t, got, 36, "uuid string")
}

func TestStream_BrotliCompression(t *testing.T) {
	server := sseServer(t, []string{`data: {"choices":[{"delta":{"content":"ok"}}]}`}, func(r *http.Request, body []byte) {
		assert.Equal(t, "br", r.Header.Get("Content-Encoding"), "Content-Encoding header")

		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		assert.NoError(t, err, "decompressing request")

		var req ChatRequest
		assert.NoError(t, json.Unmarshal(decompressed, &req), "parsing JSON")
		assert.Equal(t, "m", req.Model)
	})
	defer server.Close()

	client := NewClient(server.URL, "")
	client.Compress = true
	chunks, err := collect(client.Stream(context.Background(), &ChatRequest{Model: "m"}, "id"))

	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, chunks)
}

func TestStream_SkipsInvalidJSONAndComments(t *testing.T) {
	server := sseServer(t, []string{
		`: keep-alive`,
		`data: not json`,
		`event: ping`,
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
	}, nil)
	defer server.Close()

	chunks, err := collect(NewClient(server.URL, "").Stream(context.Background(), &ChatRequest{Model: "m"}, ""))

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, chunks)
}

func TestStream_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("server error"))
	}))
	defer server.Close()

	chunks, err := collect(NewClient(server.URL, "").Stream(context.Background(), &ChatRequest{Model: "m"}, ""))

	assert.Empty(t, chunks)
	require.Error(t, err, "Expected error for HTTP 500")
	assert.Contains(t, err.Error(), "500", "Error should mention status code")
}

func TestStream_Cancel(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		close(started)
		for i := 0; i < 100; i++ {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			w.Write([]byte(`data: {"choices":[{"delta":{"content":"x"}}]}` + "\n\n"))
			flusher.Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	chunks, errs := NewClient(server.URL, "").Stream(ctx, &ChatRequest{Model: "m"}, "")

	<-started
	<-chunks
	cancel()

	done := make(chan error)
	go func() {
		_, err := collect(chunks, errs)
		done <- err
	}()

	select {
	case err := <-done:
		assert.Error(t, err, "cancellation surfaces as an error")
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
		ok   bool
	}{
		{"chat delta", `{"choices":[{"delta":{"content":"hi"}}]}`, "hi", true},
		{"completion text", `{"choices":[{"text":"yo"}]}`, "yo", true},
		{"no content", `{"choices":[{"delta":{}}]}`, "", true},
		{"invalid", `{"choices":`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chunkText(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

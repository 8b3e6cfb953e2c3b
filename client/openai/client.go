package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ghostedit/logger"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest matches the OpenAI Chat Completions API format
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	Stream      bool      `json:"stream"`
}

// Client is a reusable OpenAI-compatible API client
type Client struct {
	HTTPClient *http.Client
	URL        string
	APIKey     string
	// Compress brotli-encodes request bodies.
	Compress bool
}

// NewClient creates a new OpenAI-compatible client
func NewClient(url, apiKey string) *Client {
	return &Client{
		HTTPClient: &http.Client{},
		URL:        strings.TrimSuffix(url, "/"),
		APIKey:     apiKey,
	}
}

// Stream sends a streaming chat request and delivers content deltas on the
// returned channel in arrival order. The chunk channel closes at end of
// stream; at most one error is sent before it does. Cancelling ctx aborts the
// request. requestID is sent as X-Request-Id; a new one is generated when
// empty.
func (c *Client) Stream(ctx context.Context, req *ChatRequest, requestID string) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		body, err := c.doStream(ctx, req, requestID)
		if err != nil {
			errs <- err
			return
		}
		defer body.Close()

		if err := readStream(ctx, body, chunks); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

func (c *Client) doStream(ctx context.Context, req *ChatRequest, requestID string) (io.ReadCloser, error) {
	defer logger.Trace("openai.doStream")()
	req.Stream = true

	// Marshal the request without HTML escaping
	var reqBodyBuf bytes.Buffer
	encoder := json.NewEncoder(&reqBodyBuf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body := &reqBodyBuf
	if c.Compress {
		var compressedBuf bytes.Buffer
		// quality 1 for speed
		brotliWriter := brotli.NewWriterLevel(&compressedBuf, 1)
		if _, err := brotliWriter.Write(reqBodyBuf.Bytes()); err != nil {
			return nil, fmt.Errorf("failed to compress request: %w", err)
		}
		if err := brotliWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to close brotli writer: %w", err)
		}
		body = &compressedBuf
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.URL+"/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Request-Id", requestID)
	if c.Compress {
		httpReq.Header.Set("Content-Encoding", "br")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(errBody))
	}
	return resp.Body, nil
}

// chunkText extracts the text delta from one SSE data payload. Chat
// endpoints put it in choices[0].delta.content, completion endpoints in
// choices[0].text.
func chunkText(data string) (string, bool) {
	if !gjson.Valid(data) {
		return "", false
	}
	res := gjson.GetMany(data, "choices.0.delta.content", "choices.0.text")
	for _, r := range res {
		if r.Exists() {
			return r.String(), true
		}
	}
	return "", true
}

// readStream reads SSE lines until [DONE], EOF or cancellation.
func readStream(ctx context.Context, body io.Reader, out chan<- string) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if line == "data: [DONE]" {
			return nil
		}
		jsonData, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}

		text, ok := chunkText(jsonData)
		if !ok {
			logger.Debug("openai stream: failed to parse chunk: %s", jsonData)
			continue
		}
		if text == "" {
			continue
		}

		select {
		case out <- text:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

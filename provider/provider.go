package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ghostedit/client/openai"
	"ghostedit/logger"
	"ghostedit/types"
	"ghostedit/utils"
)

// Compile-time check that Provider implements types.StreamSource
var _ types.StreamSource = (*Provider)(nil)

// Client is the streaming API (enables mocking in tests)
type Client interface {
	Stream(ctx context.Context, req *openai.ChatRequest, requestID string) (<-chan string, <-chan error)
}

// Context carries data through the request pipeline
type Context struct {
	Request *types.SuggestionRequest
	Window  utils.Window
}

// Preprocessor processes the context before prompt building.
// Return ErrSkipCompletion to skip without error, or another error to fail.
type Preprocessor func(p *Provider, ctx *Context) error

// PromptBuilder builds the chat request from the context
type PromptBuilder func(p *Provider, ctx *Context) *openai.ChatRequest

// ErrSkipCompletion is returned by preprocessors to skip a request without
// treating it as an error.
var ErrSkipCompletion = errors.New("skip completion")

// Provider turns suggestion requests into model streams.
type Provider struct {
	Name          string
	Config        *types.ProviderConfig
	Client        Client
	Preprocessors []Preprocessor
	PromptBuilder PromptBuilder
}

// New returns the default pipeline backed by an OpenAI-compatible client.
func New(config *types.ProviderConfig) *Provider {
	client := openai.NewClient(config.ProviderURL, config.APIKey)
	client.Compress = config.CompressRequests
	return &Provider{
		Name:          "openai",
		Config:        config,
		Client:        client,
		Preprocessors: []Preprocessor{SkipEmptyDocument(), TrimContent()},
		PromptBuilder: ChatPrompt(),
	}
}

// Stream implements types.StreamSource
func (p *Provider) Stream(ctx context.Context, req *types.SuggestionRequest) (<-chan string, <-chan error) {
	pctx := &Context{Request: req}

	for _, pre := range p.Preprocessors {
		if err := pre(p, pctx); err != nil {
			if errors.Is(err, ErrSkipCompletion) {
				return closed(nil)
			}
			return closed(fmt.Errorf("%s: %w", p.Name, err))
		}
	}

	chatReq := p.PromptBuilder(p, pctx)
	p.logRequest(chatReq)
	return p.Client.Stream(ctx, chatReq, req.RequestID)
}

func closed(err error) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)
	if err != nil {
		errs <- err
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func (p *Provider) logRequest(req *openai.ChatRequest) {
	size := 0
	for _, m := range req.Messages {
		size += len(m.Content)
	}
	logger.Debug("%s provider request:\n  URL: %s\n  Model: %s\n  Temperature: %.2f\n  MaxTokens: %d\n  Prompt length: %d chars",
		p.Name,
		p.Config.ProviderURL,
		req.Model,
		req.Temperature,
		req.MaxTokens,
		size)
}

// --- Preprocessors ---

// SkipEmptyDocument skips requests for documents with no text.
func SkipEmptyDocument() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		if strings.TrimSpace(strings.Join(ctx.Request.Lines, "")) == "" && ctx.Request.UserInput == "" {
			logger.Debug("%s: skipping, empty document", p.Name)
			return ErrSkipCompletion
		}
		return nil
	}
}

// TrimContent cuts the document to the context budget around the cursor.
func TrimContent() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		ctx.Window = utils.WindowAroundCursor(ctx.Request.Lines, ctx.Request.CursorRow, p.Config.MaxContextTokens)
		if ctx.Window.Trimmed {
			logger.Debug("%s: trimmed to lines [%d, %d) of %d", p.Name, ctx.Window.Start, ctx.Window.End(), len(ctx.Request.Lines))
		}
		return nil
	}
}

// --- Prompt builders ---

// ChatPrompt builds a system + user chat request with the cursor marked.
func ChatPrompt() PromptBuilder {
	return func(p *Provider, ctx *Context) *openai.ChatRequest {
		req := ctx.Request
		w := ctx.Window
		if w.Lines == nil {
			w = utils.Window{Lines: req.Lines, CursorRow: req.CursorRow}
		}
		code := WithCursorMarker(w.Lines, w.CursorRow, req.CursorCol)

		return &openai.ChatRequest{
			Model:       p.Config.ProviderModel,
			Temperature: p.Config.ProviderTemperature,
			MaxTokens:   p.Config.ProviderMaxTokens,
			Messages: []openai.Message{
				{Role: "system", Content: SystemPrompt(req.UserInput, p.Config.CustomInstructions)},
				{Role: "user", Content: UserPrompt(req.FilePath, code, req.CursorRow, req.CursorCol, w.Start, req.UserInput)},
			},
		}
	}
}

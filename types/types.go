package types

import "context"

// Position is a 0-based line/character location in a document.
type Position struct {
	Line      int
	Character int
}

// LineRange covers Count whole lines starting at Start (0-based), line
// breaks included.
type LineRange struct {
	Start int
	Count int
}

func (r LineRange) End() int { return r.Start + r.Count }

// LineInsert inserts Lines before line Line (0-based). Line may equal the
// document's line count to append.
type LineInsert struct {
	Line  int
	Lines []string
}

// Edit is an atomic document mutation. Every position refers to the document
// as it was before the edit.
type Edit struct {
	Deletes []LineRange
	Inserts []LineInsert
}

func (e Edit) IsEmpty() bool {
	return len(e.Deletes) == 0 && len(e.Inserts) == 0
}

// SuggestionRequest is what a stream source needs to ask the model for an edit.
type SuggestionRequest struct {
	RequestID string
	FilePath  string
	Lines     []string
	// Cursor position
	CursorRow int // 0-indexed
	CursorCol int // 0-indexed, bytes
	// Optional user instruction for the edit
	UserInput string
}

// StreamSource produces the model response for a request as an ordered
// sequence of text chunks. The chunk channel is closed at end of stream; at
// most one error is sent before it closes.
type StreamSource interface {
	Stream(ctx context.Context, req *SuggestionRequest) (<-chan string, <-chan error)
}

// ProviderConfig holds configuration for stream sources.
type ProviderConfig struct {
	ProviderURL         string  // Base URL of an OpenAI-compatible server
	APIKey              string  // Bearer token, optional
	ProviderModel       string  // Model name
	ProviderTemperature float64 // Sampling temperature
	ProviderMaxTokens   int     // Max tokens to generate
	MaxContextTokens    int     // Budget for the document window sent in the prompt
	CompressRequests    bool    // Brotli-compress request bodies
	CustomInstructions  string  // Appended to the system prompt
}

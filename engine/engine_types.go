package engine

import (
	"ghostedit/buffer"
	"ghostedit/edit"
	"ghostedit/suggestion"
	"ghostedit/types"
)

// Buffer is the live document the engine suggests edits for.
// Implemented by buffer.NvimBuffer for Neovim integration.
type Buffer interface {
	edit.Document
	Sync(workspacePath string) (*buffer.SyncResult, error)
	Lines() []string
	Path() string
	Cursor() types.Position
}

// UI renders suggestions. Implemented by buffer.NvimBuffer.
type UI interface {
	ShowSuggestions(f *suggestion.File, cursorLine int) error
	ShowFillIn(fill suggestion.FillIn) error
	Clear() error
	MoveCursor(line int, center, mark bool) error
}

// EventSource delivers editor events to the engine.
type EventSource interface {
	RegisterEventHandler(handler func(event string)) error
	RegisterRequestHandler(handler func(userInput string)) error
}

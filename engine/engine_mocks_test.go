package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"ghostedit/buffer"
	"ghostedit/suggestion"
	"ghostedit/types"
)

// --- Mock implementations ---

// mockBuffer is an in-memory Buffer with a fixed path and cursor.
type mockBuffer struct {
	*buffer.Memory

	mu        sync.Mutex
	path      string
	cursor    types.Position
	syncCalls int
	syncErr   error
}

func newMockBuffer(content string, cursor types.Position) *mockBuffer {
	return &mockBuffer{
		Memory: buffer.NewMemory("test.go", content),
		path:   "test.go",
		cursor: cursor,
	}
}

func (b *mockBuffer) Sync(workspacePath string) (*buffer.SyncResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncCalls++
	if b.syncErr != nil {
		return nil, b.syncErr
	}
	return &buffer.SyncResult{}, nil
}

func (b *mockBuffer) Path() string {
	return b.path
}

func (b *mockBuffer) Cursor() types.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// mockUI records what the engine asked it to show.
type mockUI struct {
	shown       []int // selected index per ShowSuggestions call
	cursorLines []int // cursorLine per ShowSuggestions call
	fillIns     []suggestion.FillIn
	clears      int
	moves       []int
}

func (u *mockUI) ShowSuggestions(f *suggestion.File, cursorLine int) error {
	selected, ok := f.Selected()
	if !ok {
		selected = -1
	}
	u.shown = append(u.shown, selected)
	u.cursorLines = append(u.cursorLines, cursorLine)
	return nil
}

func (u *mockUI) ShowFillIn(fill suggestion.FillIn) error {
	u.fillIns = append(u.fillIns, fill)
	return nil
}

func (u *mockUI) Clear() error {
	u.clears++
	return nil
}

func (u *mockUI) MoveCursor(line int, center, mark bool) error {
	u.moves = append(u.moves, line)
	return nil
}

// scriptedSource replays fixed chunks, then err. With block set it instead
// waits for the request context and reports its error.
type scriptedSource struct {
	mu       sync.Mutex
	chunks   []string
	err      error
	block    bool
	requests []*types.SuggestionRequest
}

func (s *scriptedSource) Stream(ctx context.Context, req *types.SuggestionRequest) (<-chan string, <-chan error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	chunks, err, block := s.chunks, s.err, s.block
	s.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		if block {
			<-ctx.Done()
			errs <- ctx.Err()
			return
		}
		for _, c := range chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err != nil {
			errs <- err
		}
	}()
	return out, errs
}

func (s *scriptedSource) lastRequest() *types.SuggestionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func newTestEngine(source types.StreamSource, buf *mockBuffer) (*Engine, *mockUI) {
	ui := &mockUI{}
	e := NewEngine(source, buf, ui, EngineConfig{CompletionTimeout: 5 * time.Second})
	return e, ui
}

// send handles one event synchronously, as the event loop would.
func send(e *Engine, eventType EventType, data any) {
	e.handleEvent(Event{Type: eventType, Data: data})
}

// pump handles queued events until one of type until has been handled.
func pump(t *testing.T, e *Engine, until EventType) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event := <-e.eventChan:
			e.handleEvent(event)
			if event.Type == until {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", until)
		}
	}
}

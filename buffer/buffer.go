package buffer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"ghostedit/logger"
	"ghostedit/suggestion"
	"ghostedit/types"

	"github.com/neovim/go-client/nvim"
)

type Config struct {
	NsID int
}

// NvimBuffer is the Neovim-backed document. Reads are served from the
// snapshot taken by the last Sync; writes go to Neovim and the snapshot.
type NvimBuffer struct {
	client *nvim.Nvim // set via SetClient

	mu   sync.RWMutex
	doc  *Memory
	id   nvim.Buffer
	row  int // 1-indexed
	col  int // 0-indexed
	path string

	config Config
}

// SyncResult reports what changed during a Sync.
type SyncResult struct {
	BufferChanged bool
	OldPath       string
	NewPath       string
}

func New(config Config) *NvimBuffer {
	return &NvimBuffer{
		doc:    NewMemory("", ""),
		row:    1,
		id:     nvim.Buffer(0),
		config: config,
	}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = n
}

func (b *NvimBuffer) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

// ID identifies the document in suggestion state.
func (b *NvimBuffer) ID() string {
	return b.Path()
}

// Cursor returns the 0-based cursor position.
func (b *NvimBuffer) Cursor() types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return types.Position{Line: b.row - 1, Character: b.col}
}

func (b *NvimBuffer) CursorOffset() int {
	return b.OffsetAt(b.Cursor())
}

func (b *NvimBuffer) Text() string { return b.snapshot().Text() }

func (b *NvimBuffer) Lines() []string { return b.snapshot().Lines() }

func (b *NvimBuffer) LineCount() int { return b.snapshot().LineCount() }

func (b *NvimBuffer) LineAt(line int) (string, error) { return b.snapshot().LineAt(line) }

func (b *NvimBuffer) OffsetAt(pos types.Position) int { return b.snapshot().OffsetAt(pos) }

func (b *NvimBuffer) snapshot() *Memory {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.doc
}

// Sync reads current state from the editor
func (b *NvimBuffer) Sync(workspacePath string) (*SyncResult, error) {
	defer logger.Trace("buffer.Sync")()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil, fmt.Errorf("nvim client not set")
	}

	// Use batch API to make all calls in a single round-trip
	batch := b.client.NewBatch()

	var currentBuf nvim.Buffer
	var path string
	var lines [][]byte
	var cursor [2]int
	var nvimCwd string

	batch.CurrentBuffer(&currentBuf)
	batch.BufferName(nvim.Buffer(0), &path) // Use 0 for current buffer
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	batch.WindowCursor(nvim.Window(0), &cursor) // Use 0 for current window
	batch.ExecLua(`return vim.fn.getcwd()`, &nvimCwd, nil)

	if err := batch.Execute(); err != nil {
		logger.Error("error executing sync batch: %v", err)
		return nil, err
	}

	if nvimCwd == "" {
		nvimCwd = workspacePath
	}
	relativePath := makeRelativeToWorkspace(path, nvimCwd)
	oldPath := b.path

	b.doc = memoryFromBytes(relativePath, lines)
	b.row = cursor[0] // 1-based in nvim cursor
	b.col = cursor[1] // 0-based in nvim cursor
	b.path = relativePath

	changed := b.id != currentBuf
	b.id = currentBuf
	return &SyncResult{
		BufferChanged: changed,
		OldPath:       oldPath,
		NewPath:       relativePath,
	}, nil
}

func memoryFromBytes(id string, lines [][]byte) *Memory {
	m := &Memory{id: id, lines: make([]string, len(lines))}
	for i, line := range lines {
		m.lines[i] = string(line)
	}
	if len(m.lines) == 0 {
		m.lines = []string{""}
	}
	return m
}

// Helper function to convert absolute path to relative workspace path
func makeRelativeToWorkspace(absolutePath, workspacePath string) string {
	absolutePath = filepath.Clean(absolutePath)
	workspacePath = filepath.Clean(workspacePath)

	if relativePath, found := strings.CutPrefix(absolutePath, workspacePath); found {
		return strings.TrimPrefix(relativePath, string(filepath.Separator))
	}
	return absolutePath
}

type lineCall struct {
	start, end int
	lines      [][]byte
}

// lineCalls turns e into nvim_buf_set_lines calls ordered bottom-up, so each
// call still sees the pre-edit line numbers. A deletion runs before an
// insertion at the same line.
func lineCalls(e types.Edit) []lineCall {
	type item struct {
		line   int
		delete bool
		call   lineCall
	}
	var items []item
	for _, r := range e.Deletes {
		items = append(items, item{r.Start, true, lineCall{start: r.Start, end: r.End(), lines: [][]byte{}}})
	}
	for _, ins := range e.Inserts {
		lines := make([][]byte, len(ins.Lines))
		for i, l := range ins.Lines {
			lines[i] = []byte(l)
		}
		items = append(items, item{ins.Line, false, lineCall{start: ins.Line, end: ins.Line, lines: lines}})
	}
	sort.SliceStable(items, func(a, b int) bool {
		if items[a].line != items[b].line {
			return items[a].line > items[b].line
		}
		return items[a].delete && !items[b].delete
	})

	calls := make([]lineCall, len(items))
	for i, it := range items {
		calls[i] = it.call
	}
	return calls
}

// ApplyEdit writes e to the buffer in one batch.
func (b *NvimBuffer) ApplyEdit(ctx context.Context, e types.Edit) error {
	defer logger.Trace("buffer.ApplyEdit")()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	next, err := applyEdit(b.doc.lines, e)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := b.client.NewBatch()
	b.clearNamespace(batch)
	for _, c := range lineCalls(e) {
		batch.SetBufferLines(b.id, c.start, c.end, true, c.lines)
	}
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("set buffer lines: %w", err)
	}

	b.doc = &Memory{id: b.doc.id, lines: next, version: b.doc.version + 1}
	return nil
}

// luaSuggestions converts groups to the table handed to the Lua renderer.
// Lines are 1-indexed for Lua.
func luaSuggestions(groups []*suggestion.Group, selected int, hasSelection bool, cursorLine int) map[string]any {
	luaGroups := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		var added, removed []map[string]any
		for _, op := range g.Ops {
			entry := map[string]any{"line": op.Line + 1, "text": op.Content}
			if op.Kind == suggestion.Insert {
				added = append(added, entry)
			} else {
				removed = append(removed, entry)
			}
		}
		luaGroups = append(luaGroups, map[string]any{
			"type":       g.Kind.String(),
			"start_line": g.MinLine() + 1,
			"end_line":   g.MaxLine() + 1,
			"added":      added,
			"removed":    removed,
		})
	}

	payload := map[string]any{
		"groups":      luaGroups,
		"cursor_line": cursorLine + 1,
	}
	if hasSelection {
		payload["selected"] = selected + 1
	}
	return payload
}

// ShowSuggestions hands the pending groups to the Lua side for rendering.
func (b *NvimBuffer) ShowSuggestions(f *suggestion.File, cursorLine int) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	selected, ok := f.Selected()
	logger.Debug("sending to lua on_suggestions: groups=%d selected=%d", len(f.Groups()), selected)
	b.executeLuaFunction("require('ghostedit').on_suggestions(...)", luaSuggestions(f.Groups(), selected, ok, cursorLine))
	return nil
}

// ShowFillIn offers a single-span completion at the cursor.
func (b *NvimBuffer) ShowFillIn(fill suggestion.FillIn) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	b.executeLuaFunction("require('ghostedit').on_fill_in(...)", map[string]any{
		"text":   fill.Text,
		"prefix": fill.Prefix,
		"suffix": fill.Suffix,
	})
	return nil
}

// Clear removes any suggestion UI.
func (b *NvimBuffer) Clear() error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	logger.Debug("sending to lua on_clear")
	b.executeLuaFunction("require('ghostedit').on_clear()")
	return nil
}

// MoveCursor moves the cursor to the start of the 0-based line.
func (b *NvimBuffer) MoveCursor(line int, center bool, mark bool) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}

	batch := b.client.NewBatch()
	applyCursorMove(batch, line+1, 0, center, mark)
	batch.ExecLua("vim.cmd('normal! ^')", nil, nil)
	return batch.Execute()
}

// RegisterEventHandler registers a handler for nvim RPC events
func (b *NvimBuffer) RegisterEventHandler(handler func(event string)) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	return b.client.RegisterHandler("ghostedit_event", func(_ *nvim.Nvim, event string) {
		handler(event)
	})
}

// RegisterRequestHandler registers a handler for explicit suggestion requests.
// userInput is empty for auto-triggered requests.
func (b *NvimBuffer) RegisterRequestHandler(handler func(userInput string)) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	return b.client.RegisterHandler("ghostedit_request", func(_ *nvim.Nvim, userInput string) {
		handler(userInput)
	})
}

func (b *NvimBuffer) executeLuaFunction(luaCode string, args ...any) {
	if b.client == nil {
		return
	}
	batch := b.client.NewBatch()
	if len(args) > 0 {
		batch.ExecLua(luaCode, nil, args...)
	} else {
		batch.ExecLua(luaCode, nil, nil)
	}
	if err := batch.Execute(); err != nil {
		logger.Error("error executing lua function: %v", err)
	}
}

func applyCursorMove(batch *nvim.Batch, line, col int, center bool, mark bool) {
	if mark {
		// setpos avoids `normal! m'`, which would leave insert mode
		batch.ExecLua("vim.fn.setpos(\"''\", vim.fn.getpos('.'))", nil, nil)
	}
	batch.SetWindowCursor(0, [2]int{line, col})
	if center {
		batch.ExecLua("vim.cmd('normal! zz')", nil, nil)
	}
}

func (b *NvimBuffer) clearNamespace(batch *nvim.Batch) {
	batch.ClearBufferNamespace(b.id, b.config.NsID, 0, -1)
}

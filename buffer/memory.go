package buffer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ghostedit/text"
	"ghostedit/types"
)

// Memory is an in-memory document. Lines are split on "\n", so a trailing
// newline shows up as a final empty line.
type Memory struct {
	mu      sync.RWMutex
	id      string
	lines   []string
	version int
}

func NewMemory(id, content string) *Memory {
	return &Memory{id: id, lines: text.SplitLines(content)}
}

func (m *Memory) ID() string { return m.id }

func (m *Memory) Version() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

func (m *Memory) Text() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return text.JoinLines(m.lines)
}

func (m *Memory) Lines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

func (m *Memory) LineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lines)
}

func (m *Memory) LineAt(line int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if line < 0 || line >= len(m.lines) {
		return "", fmt.Errorf("line %d out of range [0,%d)", line, len(m.lines))
	}
	return m.lines[line], nil
}

// OffsetAt converts pos to a byte offset, clamping to the document.
func (m *Memory) OffsetAt(pos types.Position) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return offsetAt(m.lines, pos)
}

func offsetAt(lines []string, pos types.Position) int {
	if pos.Line < 0 {
		return 0
	}
	offset := 0
	for i := 0; i < pos.Line && i < len(lines); i++ {
		offset += len(lines[i]) + 1
	}
	if pos.Line >= len(lines) {
		return max(0, offset-1)
	}
	return offset + min(max(pos.Character, 0), len(lines[pos.Line]))
}

// ApplyEdit applies e atomically: either every range is applied or, when a
// range is out of bounds, none is.
func (m *Memory) ApplyEdit(_ context.Context, e types.Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := applyEdit(m.lines, e)
	if err != nil {
		return err
	}
	m.lines = next
	m.version++
	return nil
}

// SetText replaces the whole document, as a user edit would.
func (m *Memory) SetText(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = text.SplitLines(content)
	m.version++
}

func applyEdit(lines []string, e types.Edit) ([]string, error) {
	deleted := make([]bool, len(lines))
	for _, r := range e.Deletes {
		if r.Start < 0 || r.Count < 0 || r.End() > len(lines) {
			return nil, fmt.Errorf("delete range %d+%d out of bounds (%d lines)", r.Start, r.Count, len(lines))
		}
		for i := r.Start; i < r.End(); i++ {
			deleted[i] = true
		}
	}

	inserts := make([]types.LineInsert, len(e.Inserts))
	copy(inserts, e.Inserts)
	sort.SliceStable(inserts, func(a, b int) bool { return inserts[a].Line < inserts[b].Line })
	for _, ins := range inserts {
		if ins.Line < 0 || ins.Line > len(lines) {
			return nil, fmt.Errorf("insert at line %d out of bounds (%d lines)", ins.Line, len(lines))
		}
	}

	out := make([]string, 0, len(lines))
	k := 0
	for i := 0; i <= len(lines); i++ {
		for k < len(inserts) && inserts[k].Line == i {
			out = append(out, inserts[k].Lines...)
			k++
		}
		if i < len(lines) && !deleted[i] {
			out = append(out, lines[i])
		}
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out, nil
}

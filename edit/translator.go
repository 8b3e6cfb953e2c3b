// Package edit turns suggestion groups into line edits on the live document.
package edit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"ghostedit/logger"
	"ghostedit/suggestion"
	"ghostedit/types"
)

// ErrLocked is returned when an apply is attempted while another is running.
// Nothing is queued; the caller may retry.
var ErrLocked = errors.New("document edit already in progress")

// Document is the editor document capability the translator needs.
type Document interface {
	Text() string
	OffsetAt(pos types.Position) int
	LineCount() int
	LineAt(line int) (string, error)
	// ApplyEdit performs every range of e as one mutation. Ranges refer to the
	// document before the edit.
	ApplyEdit(ctx context.Context, e types.Edit) error
}

// Translator maps groups onto the live document. One Translator guards one
// edit session; at most one Apply runs at a time.
type Translator struct {
	locked atomic.Bool
}

func NewTranslator() *Translator {
	return &Translator{}
}

func (t *Translator) IsLocked() bool {
	return t.locked.Load()
}

type simOp struct {
	op     suggestion.EditOperation
	target bool
	group  int // index into the slice the op was collected from
	index  int // index into the group's Ops
}

type placed struct {
	kind    suggestion.OpKind
	line    int // pre-edit live document line
	content string
}

// walk visits pending and target operations the way they would be written
// into the document in one pass. Deletions address live lines directly;
// insertions address modified-document lines and are shifted back by the net
// number of lines inserted minus deleted before them.
func walk(target []*suggestion.Group, pending []*suggestion.Group, visit func(s simOp, line int)) {
	var dels, inss []simOp
	collect := func(groups []*suggestion.Group, isTarget bool) {
		for gi, g := range groups {
			if g == nil {
				continue
			}
			for oi, op := range g.Ops {
				s := simOp{op: op, target: isTarget, group: gi, index: oi}
				if op.Kind == suggestion.Delete {
					dels = append(dels, s)
				} else {
					inss = append(inss, s)
				}
			}
		}
	}
	collect(pending, false)
	collect(target, true)

	sort.SliceStable(dels, func(a, b int) bool { return dels[a].op.Line < dels[b].op.Line })
	sort.SliceStable(inss, func(a, b int) bool { return inss[a].op.Line < inss[b].op.Line })

	d, i, lineOffset := 0, 0, 0
	for d < len(dels) || i < len(inss) {
		nextDelete, nextInsert := math.MaxInt, math.MaxInt
		if d < len(dels) {
			nextDelete = dels[d].op.Line
		}
		if i < len(inss) {
			nextInsert = inss[i].op.Line - lineOffset
		}

		if nextDelete <= nextInsert {
			visit(dels[d], nextDelete)
			lineOffset--
			d++
		} else {
			visit(inss[i], nextInsert)
			lineOffset++
			i++
		}
	}
}

// replay places the target operations in the live document, given pending
// groups that come before them and have not been applied.
func replay(target []*suggestion.Group, pending []*suggestion.Group) []placed {
	var out []placed
	walk(target, pending, func(s simOp, line int) {
		if s.target {
			out = append(out, placed{kind: s.op.Kind, line: line, content: s.op.Content})
		}
	})
	return out
}

// liveLines returns the live-document line of every operation in groups, with
// nothing applied yet. The result is indexed like groups and their Ops.
func liveLines(groups []*suggestion.Group) [][]int {
	lines := make([][]int, len(groups))
	for i, g := range groups {
		if g != nil {
			lines[i] = make([]int, len(g.Ops))
		}
	}
	walk(groups, nil, func(s simOp, line int) {
		lines[s.group][s.index] = line
	})
	return lines
}

// Translate computes the edit that applies target to a live document in which
// the preceding groups have not been applied yet.
func (t *Translator) Translate(target *suggestion.Group, preceding []*suggestion.Group) types.Edit {
	if target == nil {
		return types.Edit{}
	}
	return toEdit(replay([]*suggestion.Group{target}, preceding))
}

// toEdit batches contiguous deletions into ranges and merges insertions that
// share an anchor line.
func toEdit(ops []placed) types.Edit {
	var e types.Edit
	for _, p := range ops {
		switch p.kind {
		case suggestion.Delete:
			if n := len(e.Deletes); n > 0 && e.Deletes[n-1].End() == p.line {
				e.Deletes[n-1].Count++
				continue
			}
			e.Deletes = append(e.Deletes, types.LineRange{Start: p.line, Count: 1})
		case suggestion.Insert:
			if n := len(e.Inserts); n > 0 && e.Inserts[n-1].Line == p.line {
				e.Inserts[n-1].Lines = append(e.Inserts[n-1].Lines, p.content)
				continue
			}
			e.Inserts = append(e.Inserts, types.LineInsert{Line: p.line, Lines: []string{p.content}})
		}
	}
	return e
}

// Apply translates target and writes it to doc in one mutation. It returns
// false without touching doc when the group produces no edit.
func (t *Translator) Apply(ctx context.Context, doc Document, target *suggestion.Group, preceding []*suggestion.Group) (bool, error) {
	if target == nil {
		return false, nil
	}
	return t.apply(ctx, doc, t.Translate(target, preceding))
}

// ApplyAll writes every group to doc in one mutation.
func (t *Translator) ApplyAll(ctx context.Context, doc Document, groups []*suggestion.Group) (bool, error) {
	return t.apply(ctx, doc, toEdit(replay(groups, nil)))
}

func (t *Translator) apply(ctx context.Context, doc Document, e types.Edit) (bool, error) {
	if doc == nil {
		return false, errors.New("edit: no document")
	}
	if !t.locked.CompareAndSwap(false, true) {
		logger.Debug("edit: apply skipped, another apply is in flight")
		return false, ErrLocked
	}
	defer t.locked.Store(false)

	if e.IsEmpty() {
		return false, nil
	}
	if err := validate(e, doc.LineCount()); err != nil {
		return false, err
	}

	logger.Debug("edit: applying %d delete range(s), %d insert block(s)", len(e.Deletes), len(e.Inserts))
	if err := doc.ApplyEdit(ctx, e); err != nil {
		return false, fmt.Errorf("apply edit: %w", err)
	}
	return true, nil
}

func validate(e types.Edit, lineCount int) error {
	for _, r := range e.Deletes {
		if r.Start < 0 || r.Count <= 0 || r.End() > lineCount {
			return fmt.Errorf("edit: delete range %d+%d outside document of %d lines", r.Start, r.Count, lineCount)
		}
	}
	for _, ins := range e.Inserts {
		if ins.Line < 0 || ins.Line > lineCount {
			return fmt.Errorf("edit: insert at line %d outside document of %d lines", ins.Line, lineCount)
		}
	}
	return nil
}

// SelectedLine returns the live-document line of the selected group's first
// operation, where the editor cursor should go.
func (t *Translator) SelectedLine(f *suggestion.File) (int, bool) {
	g := f.SelectedGroup()
	if g == nil {
		return 0, false
	}
	ops := replay([]*suggestion.Group{g}, f.PrecedingGroups())
	if len(ops) == 0 {
		return 0, false
	}
	line := ops[0].line
	for _, p := range ops[1:] {
		line = min(line, p.line)
	}
	return line, true
}

// SelectClosest selects the group of f nearest to the live-document range
// [startLine, endLine], measuring insertions at the line they land on in the
// live document rather than in the modified one.
func (t *Translator) SelectClosest(f *suggestion.File, startLine, endLine int) {
	lines := liveLines(f.Groups())
	f.SelectClosestFunc(startLine, endLine, func(g, op int) int {
		return lines[g][op]
	})
}

package suggestion

import "sort"

const noSelection = -1

// File holds the operation groups suggested for one document and the
// currently selected group. The selection is either unset or a valid index.
type File struct {
	ID       string
	groups   []*Group
	selected int
}

func NewFile(id string) *File {
	return &File{ID: id, selected: noSelection}
}

// AddOperation places op into a group, in priority order:
//  1. pair with an opposite-kind operation sharing its NewLine into a Modification
//  2. join an Insertion/Deletion group whose line extremes it extends by one
//  3. start a new group
func (f *File) AddOperation(op EditOperation) {
	defer f.clampSelection()

	if f.pair(op) {
		return
	}

	for _, g := range f.groups {
		if !g.accepts(op) {
			continue
		}
		if op.Line == g.MinLine()-1 || op.Line == g.MaxLine()+1 {
			g.Ops = append(g.Ops, op)
			return
		}
	}

	f.groups = append(f.groups, newSingleton(op))
}

func (f *File) pair(op EditOperation) bool {
	for gi, g := range f.groups {
		if g.Kind == Modification {
			continue
		}
		for oi, other := range g.Ops {
			if other.Kind == op.Kind || other.NewLine != op.NewLine {
				continue
			}

			g.remove(oi)
			if len(g.Ops) == 0 {
				f.removeGroup(gi)
			}

			del, ins := other, op
			if op.Kind == Delete {
				del, ins = op, other
			}
			f.groups = append(f.groups, newModification(del, ins))
			return true
		}
	}
	return false
}

func (f *File) removeGroup(i int) {
	f.groups = append(f.groups[:i], f.groups[i+1:]...)
	switch {
	case f.selected == i:
		f.selected = noSelection
	case f.selected > i:
		f.selected--
	}
}

func (f *File) clampSelection() {
	if f.selected >= len(f.groups) {
		f.selected = noSelection
	}
}

// SortGroups orders groups by their first line in the original document,
// orders each group's operations by line, and selects the first group.
func (f *File) SortGroups() {
	for _, g := range f.groups {
		g.sortOps()
	}
	sort.SliceStable(f.groups, func(a, b int) bool {
		ga, gb := f.groups[a], f.groups[b]
		if ga.Anchor() != gb.Anchor() {
			return ga.Anchor() < gb.Anchor()
		}
		return ga.MinLine() < gb.MinLine()
	})
	if len(f.groups) > 0 {
		f.selected = 0
	} else {
		f.selected = noSelection
	}
}

// Groups returns the groups in order. The returned groups are shared.
func (f *File) Groups() []*Group {
	return f.groups
}

func (f *File) IsEmpty() bool {
	return len(f.groups) == 0
}

// Selected returns the selected group index.
func (f *File) Selected() (int, bool) {
	if f.selected == noSelection {
		return 0, false
	}
	return f.selected, true
}

func (f *File) SelectedGroup() *Group {
	if f.selected == noSelection {
		return nil
	}
	return f.groups[f.selected]
}

// PrecedingGroups returns the groups ordered before the selected one.
func (f *File) PrecedingGroups() []*Group {
	if f.selected == noSelection {
		return nil
	}
	return f.groups[:f.selected]
}

func (f *File) Select(i int) bool {
	if i < 0 || i >= len(f.groups) {
		return false
	}
	f.selected = i
	return true
}

func (f *File) ClearSelection() {
	f.selected = noSelection
}

// SelectNext moves the selection forward, wrapping to the first group.
func (f *File) SelectNext() {
	n := len(f.groups)
	if n == 0 {
		f.selected = noSelection
		return
	}
	if f.selected == noSelection {
		f.selected = 0
		return
	}
	f.selected = (f.selected + 1) % n
}

// SelectPrevious moves the selection back, wrapping to the last group.
func (f *File) SelectPrevious() {
	n := len(f.groups)
	if n == 0 {
		f.selected = noSelection
		return
	}
	if f.selected == noSelection {
		f.selected = n - 1
		return
	}
	f.selected = (f.selected - 1 + n) % n
}

// SelectClosest selects the group with an operation nearest to the line range
// [startLine, endLine], measured from each operation's Line. Ties go to the
// earlier group; an operation inside the range wins immediately.
func (f *File) SelectClosest(startLine, endLine int) {
	f.SelectClosestFunc(startLine, endLine, func(g, op int) int {
		return f.groups[g].Ops[op].Line
	})
}

// SelectClosestFunc is SelectClosest with lineOf giving the line that
// operation op of group g is measured from.
func (f *File) SelectClosestFunc(startLine, endLine int, lineOf func(g, op int) int) {
	if startLine > endLine {
		startLine, endLine = endLine, startLine
	}

	best, bestDist := noSelection, -1
	for i, g := range f.groups {
		for j := range g.Ops {
			d := lineDistance(lineOf(i, j), startLine, endLine)
			if d == 0 {
				f.selected = i
				return
			}
			if bestDist == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}
	}
	f.selected = best
}

func lineDistance(line, start, end int) int {
	switch {
	case line < start:
		return start - line
	case line > end:
		return line - end
	default:
		return 0
	}
}

// DeleteSelectedGroup removes the selected group after it has been applied
// and clears the selection. Deletions in later groups are shifted by the
// removed group's net line change so they keep pointing at the same text in
// the live document. Insertions address the modified document and stay put.
func (f *File) DeleteSelectedGroup() *Group {
	if f.selected == noSelection {
		return nil
	}
	idx := f.selected
	removed := f.groups[idx]
	f.groups = append(f.groups[:idx], f.groups[idx+1:]...)
	f.selected = noSelection

	net := removed.Net()
	if net != 0 {
		for _, g := range f.groups[idx:] {
			for i := range g.Ops {
				if g.Ops[i].Kind == Delete {
					g.Ops[i].Line += net
				}
			}
		}
	}
	return removed
}

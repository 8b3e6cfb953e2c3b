package suggestion

import "sort"

// GroupKind tags a group when it is built.
type GroupKind int

const (
	Insertion GroupKind = iota
	Deletion
	Modification
)

func (k GroupKind) String() string {
	switch k {
	case Insertion:
		return "insertion"
	case Deletion:
		return "deletion"
	case Modification:
		return "modification"
	default:
		return "unknown"
	}
}

// Group is a non-empty list of operations accepted or rejected together.
// Insertion and Deletion groups hold operations of one kind; a Modification
// holds exactly one deletion followed by one insertion.
type Group struct {
	Kind GroupKind
	Ops  []EditOperation
}

func newSingleton(op EditOperation) *Group {
	kind := Insertion
	if op.Kind == Delete {
		kind = Deletion
	}
	return &Group{Kind: kind, Ops: []EditOperation{op}}
}

func newModification(del, ins EditOperation) *Group {
	return &Group{Kind: Modification, Ops: []EditOperation{del, ins}}
}

// accepts reports whether op can join the group by kind alone.
func (g *Group) accepts(op EditOperation) bool {
	switch g.Kind {
	case Insertion:
		return op.Kind == Insert
	case Deletion:
		return op.Kind == Delete
	default:
		return false
	}
}

func (g *Group) MinLine() int {
	m := g.Ops[0].Line
	for _, op := range g.Ops[1:] {
		m = min(m, op.Line)
	}
	return m
}

func (g *Group) MaxLine() int {
	m := g.Ops[0].Line
	for _, op := range g.Ops[1:] {
		m = max(m, op.Line)
	}
	return m
}

// Anchor is the smallest original-document line the group touches; it
// orders groups in document order regardless of how many lines earlier
// groups insert.
func (g *Group) Anchor() int {
	m := g.Ops[0].OldLine
	for _, op := range g.Ops[1:] {
		m = min(m, op.OldLine)
	}
	return m
}

// Counts returns the number of insert and delete operations.
func (g *Group) Counts() (inserts, deletes int) {
	for _, op := range g.Ops {
		if op.Kind == Insert {
			inserts++
		} else {
			deletes++
		}
	}
	return inserts, deletes
}

// Net is the change in document line count once the group is applied.
func (g *Group) Net() int {
	ins, del := g.Counts()
	return ins - del
}

func (g *Group) remove(i int) {
	g.Ops = append(g.Ops[:i], g.Ops[i+1:]...)
}

func (g *Group) sortOps() {
	sort.SliceStable(g.Ops, func(a, b int) bool {
		if g.Ops[a].Line != g.Ops[b].Line {
			return g.Ops[a].Line < g.Ops[b].Line
		}
		return g.Ops[a].Kind == Delete && g.Ops[b].Kind == Insert
	})
}

// Clone returns a deep copy.
func (g *Group) Clone() *Group {
	ops := make([]EditOperation, len(g.Ops))
	copy(ops, g.Ops)
	return &Group{Kind: g.Kind, Ops: ops}
}

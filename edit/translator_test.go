package edit

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"ghostedit/buffer"
	"ghostedit/suggestion"
	"ghostedit/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sampleOriginal = "a\nb\nc\nd\ne\nf\ng\nh\ni\nj"
	sampleModified = "a\nX\nY\nb\nc\nd\nE\nf\ng\nh\nj"
)

// sampleFile returns groups [insert X,Y] [e -> E] [delete i].
func sampleFile(t *testing.T) *suggestion.File {
	t.Helper()
	f := suggestion.Build("a.go", sampleOriginal, sampleModified)
	require.Len(t, f.Groups(), 3)
	assert.Equal(t, suggestion.Insertion, f.Groups()[0].Kind)
	assert.Equal(t, suggestion.Modification, f.Groups()[1].Kind)
	assert.Equal(t, suggestion.Deletion, f.Groups()[2].Kind)
	return f
}

func indexOf(groups []*suggestion.Group, g *suggestion.Group) int {
	for i, candidate := range groups {
		if candidate == g {
			return i
		}
	}
	return -1
}

// applyInOrder applies the given groups one at a time, the way an accept
// command does, and returns the final document text.
func applyInOrder(t *testing.T, tr *Translator, doc *buffer.Memory, f *suggestion.File, order []*suggestion.Group) string {
	t.Helper()
	for _, g := range order {
		i := indexOf(f.Groups(), g)
		require.GreaterOrEqual(t, i, 0, "group still pending")
		require.True(t, f.Select(i))

		_, err := tr.Apply(context.Background(), doc, f.SelectedGroup(), f.PrecedingGroups())
		require.NoError(t, err)
		f.DeleteSelectedGroup()
	}
	return doc.Text()
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for pos := 0; pos <= len(p); pos++ {
			q := make([]int, 0, n)
			q = append(q, p[:pos]...)
			q = append(q, n-1)
			q = append(q, p[pos:]...)
			out = append(out, q)
		}
	}
	return out
}

func TestTranslate_FirstGroup(t *testing.T) {
	f := sampleFile(t)
	tr := NewTranslator()

	e := tr.Translate(f.Groups()[0], nil)

	assert.Empty(t, e.Deletes)
	assert.Equal(t, []types.LineInsert{{Line: 1, Lines: []string{"X", "Y"}}}, e.Inserts, "inserts at one anchor merged")
}

func TestTranslate_AccountsForPrecedingGroups(t *testing.T) {
	f := sampleFile(t)
	tr := NewTranslator()
	groups := f.Groups()

	mod := tr.Translate(groups[1], groups[:1])
	assert.Equal(t, []types.LineRange{{Start: 4, Count: 1}}, mod.Deletes)
	assert.Equal(t, []types.LineInsert{{Line: 5, Lines: []string{"E"}}}, mod.Inserts)

	del := tr.Translate(groups[2], groups[:2])
	assert.Equal(t, []types.LineRange{{Start: 8, Count: 1}}, del.Deletes)
	assert.Empty(t, del.Inserts)
}

func TestTranslate_BatchesContiguousDeletes(t *testing.T) {
	f := suggestion.Build("a.go", "a\nb\nc\nd\ne", "a\ne")
	require.Len(t, f.Groups(), 1)

	e := NewTranslator().Translate(f.Groups()[0], nil)

	assert.Equal(t, []types.LineRange{{Start: 1, Count: 3}}, e.Deletes)
}

func TestTranslate_NilTarget(t *testing.T) {
	assert.True(t, NewTranslator().Translate(nil, nil).IsEmpty())
}

func TestApply_SequentialMatchesUnionInAnyOrder(t *testing.T) {
	for _, perm := range permutations(3) {
		f := sampleFile(t)
		initial := append([]*suggestion.Group(nil), f.Groups()...)
		order := make([]*suggestion.Group, len(perm))
		for i, p := range perm {
			order[i] = initial[p]
		}

		doc := buffer.NewMemory("a.go", sampleOriginal)
		got := applyInOrder(t, NewTranslator(), doc, f, order)

		assert.Equal(t, sampleModified, got, "order %v", perm)
		assert.True(t, f.IsEmpty())
		assert.Equal(t, 3, doc.Version(), "one mutation per group")
	}
}

func TestApply_RandomEditsConverge(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []string{"a", "b", "c", "d", "e", "f"}

	for iter := 0; iter < 200; iter++ {
		original := make([]string, 1+rng.Intn(12))
		for i := range original {
			original[i] = alphabet[rng.Intn(len(alphabet))]
		}

		modified := append([]string(nil), original...)
		for n := 1 + rng.Intn(4); n > 0; n-- {
			pos := rng.Intn(len(modified) + 1)
			switch rng.Intn(3) {
			case 0:
				modified = append(modified[:pos], append([]string{strings.ToUpper(alphabet[rng.Intn(len(alphabet))])}, modified[pos:]...)...)
			case 1:
				if pos < len(modified) && len(modified) > 1 {
					modified = append(modified[:pos], modified[pos+1:]...)
				}
			case 2:
				if pos < len(modified) {
					modified[pos] = modified[pos] + "!"
				}
			}
		}

		oldText, newText := strings.Join(original, "\n"), strings.Join(modified, "\n")
		f := suggestion.Build("a.go", oldText, newText)
		order := append([]*suggestion.Group(nil), f.Groups()...)
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		doc := buffer.NewMemory("a.go", oldText)
		got := applyInOrder(t, NewTranslator(), doc, f, order)
		require.Equal(t, newText, got, "iteration %d: %q -> %q", iter, oldText, newText)
	}
}

func TestApplyAll(t *testing.T) {
	f := sampleFile(t)
	doc := buffer.NewMemory("a.go", sampleOriginal)

	applied, err := NewTranslator().ApplyAll(context.Background(), doc, f.Groups())

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, sampleModified, doc.Text())
	assert.Equal(t, 1, doc.Version(), "single mutation")
}

func TestApply_EmptyEditDoesNotMutate(t *testing.T) {
	doc := buffer.NewMemory("a.go", sampleOriginal)
	tr := NewTranslator()

	applied, err := tr.Apply(context.Background(), doc, nil, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = tr.ApplyAll(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, doc.Version())
}

func TestApply_OutOfRangeRejected(t *testing.T) {
	doc := buffer.NewMemory("a.go", "a\nb")
	g := &suggestion.Group{Kind: suggestion.Deletion, Ops: []suggestion.EditOperation{
		{Kind: suggestion.Delete, Line: 9, OldLine: 9, NewLine: 9, Content: "x"},
	}}

	applied, err := NewTranslator().Apply(context.Background(), doc, g, nil)

	assert.Error(t, err)
	assert.False(t, applied)
	assert.Equal(t, "a\nb", doc.Text())
}

// blockingDoc parks ApplyEdit until released.
type blockingDoc struct {
	*buffer.Memory
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDoc) ApplyEdit(ctx context.Context, e types.Edit) error {
	close(d.entered)
	<-d.release
	return d.Memory.ApplyEdit(ctx, e)
}

func TestApply_ConcurrentApplyIsRejected(t *testing.T) {
	f := sampleFile(t)
	doc := &blockingDoc{
		Memory:  buffer.NewMemory("a.go", sampleOriginal),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	tr := NewTranslator()

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = tr.Apply(context.Background(), doc, f.Groups()[0], nil)
	}()

	<-doc.entered
	assert.True(t, tr.IsLocked())

	applied, err := tr.Apply(context.Background(), doc, f.Groups()[1], f.Groups()[:1])
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, applied)

	close(doc.release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.False(t, tr.IsLocked(), "lock released")
	assert.Equal(t, 1, doc.Version(), "only the first apply ran")
}

func TestSelectedLine(t *testing.T) {
	f := sampleFile(t)
	tr := NewTranslator()

	tests := []struct {
		selected int
		want     int
	}{
		{0, 1},
		{1, 4},
		{2, 8},
	}
	for _, tt := range tests {
		require.True(t, f.Select(tt.selected))
		line, ok := tr.SelectedLine(f)
		assert.True(t, ok)
		assert.Equal(t, tt.want, line, "group %d", tt.selected)
	}

	f.ClearSelection()
	_, ok := tr.SelectedLine(f)
	assert.False(t, ok, "no selection")
}

func TestSelectClosest_MeasuresInsertionsInLiveDocument(t *testing.T) {
	// insert X,Y,Z after a; insert N before g; delete i
	f := suggestion.Build("a.go", sampleOriginal, "a\nX\nY\nZ\nb\nc\nd\ne\nf\nN\ng\nh\nj")
	require.Len(t, f.Groups(), 3)
	tr := NewTranslator()

	// cursor on g, where N lands before any group is applied
	f.SelectClosest(6, 6)
	sel, _ := f.Selected()
	assert.Equal(t, 2, sel, "modified-document lines point at the deletion")

	tr.SelectClosest(f, 6, 6)
	sel, ok := f.Selected()
	require.True(t, ok)
	assert.Equal(t, 1, sel)
	assert.Equal(t, "N", f.SelectedGroup().Ops[0].Content)
}

func TestLiveLines(t *testing.T) {
	f := sampleFile(t)

	lines := liveLines(f.Groups())

	assert.Equal(t, [][]int{{1, 1}, {4, 5}, {8}}, lines)
}

// Package suggestion groups line-level edit operations into units the user
// can step through and accept one at a time.
package suggestion

import "fmt"

// OpKind is the kind of a single line operation.
type OpKind int

const (
	Insert OpKind = iota
	Delete
)

func (k OpKind) String() string {
	switch k {
	case Insert:
		return "+"
	case Delete:
		return "-"
	default:
		return "?"
	}
}

// EditOperation inserts or deletes one line. All line numbers are 0-based.
//
// Line is where the operation applies: for a deletion it is the line in the
// live document, for an insertion the line in the modified document. OldLine
// and NewLine record the old/new diff positions the operation was built from.
type EditOperation struct {
	Kind    OpKind
	Line    int
	OldLine int
	NewLine int
	Content string
}

func (op EditOperation) String() string {
	return fmt.Sprintf("%s%d %q", op.Kind, op.Line, op.Content)
}

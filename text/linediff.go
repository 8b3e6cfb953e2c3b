package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines kept around each hunk.
const DefaultContext = 3

// Hunk is a contiguous run of line operations. OldStart and NewStart are the
// 1-based positions of the hunk's first line in the old and new text; a hunk
// with no old lines still reports the old line it is inserted before.
// Each entry of Lines starts with '+', '-' or ' '.
type Hunk struct {
	OldStart int
	NewStart int
	Lines    []string
}

// SplitLines splits text on "\n". A trailing newline yields a trailing empty line,
// so JoinLines(SplitLines(s)) == s.
func SplitLines(s string) []string {
	return strings.Split(s, "\n")
}

func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

type lineOp struct {
	op   byte
	text string
}

// LineDiff computes a unified-style line diff between oldText and newText.
func LineDiff(oldText, newText string) []Hunk {
	return LineDiffContext(oldText, newText, DefaultContext)
}

// LineDiffContext is LineDiff with a caller-chosen amount of context.
func LineDiffContext(oldText, newText string, context int) []Hunk {
	if oldText == newText {
		return nil
	}
	ops := diffLines(SplitLines(oldText), SplitLines(newText))
	return buildHunks(ops, context)
}

func diffLines(oldLines, newLines []string) []lineOp {
	dmp := diffmatchpatch.New()
	a := strings.Join(oldLines, "\n") + "\n"
	b := strings.Join(newLines, "\n") + "\n"
	chars1, chars2, lineArray := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(chars1, chars2, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []lineOp
	for _, d := range diffs {
		var op byte
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			op = ' '
		case diffmatchpatch.DiffDelete:
			op = '-'
		case diffmatchpatch.DiffInsert:
			op = '+'
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			ops = append(ops, lineOp{op: op, text: line})
		}
	}
	return ops
}

func buildHunks(ops []lineOp, context int) []Hunk {
	// old/new positions (0-based) before each op
	oldAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)
	for i, o := range ops {
		oldAt[i+1], newAt[i+1] = oldAt[i], newAt[i]
		if o.op != '+' {
			oldAt[i+1]++
		}
		if o.op != '-' {
			newAt[i+1]++
		}
	}

	var hunks []Hunk
	i := 0
	for i < len(ops) {
		if ops[i].op == ' ' {
			i++
			continue
		}

		first := max(0, i-context)
		last := i
		// extend while the gap of equal lines to the next change is bridgeable
		for j := i + 1; j < len(ops); j++ {
			if ops[j].op == ' ' {
				continue
			}
			if j-last-1 > 2*context {
				break
			}
			last = j
		}
		end := min(len(ops), last+context+1)

		h := Hunk{OldStart: oldAt[first] + 1, NewStart: newAt[first] + 1}
		for _, o := range ops[first:end] {
			h.Lines = append(h.Lines, string(o.op)+o.text)
		}
		hunks = append(hunks, h)
		i = end
	}
	return hunks
}

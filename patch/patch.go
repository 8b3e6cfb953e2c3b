// Package patch applies parsed search/replace records to a document snapshot.
package patch

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"ghostedit/logger"
	"ghostedit/parser"
	"ghostedit/text"
)

// ErrNoneApplied is returned when no record matched the document.
var ErrNoneApplied = errors.New("no change matched the document")

// Outcome describes one Apply run.
type Outcome struct {
	Text      string
	Applied   int
	Unmatched int
	Overlaps  int
	// Cursor is the offset in Text where the first applied record's cursor
	// marker ended up, or -1.
	Cursor int
}

type span struct {
	start, end int
	replace    string
	order      int
	cursor     int
}

// Apply returns original with every matching record substituted.
// cursorOffset is where the cursor sits in original, or -1 if unknown; it is
// only used when a search payload refers to parser.CursorMarker.
func Apply(original string, records []parser.ChangeRecord, cursorOffset int) (string, error) {
	out, err := ApplyDetailed(original, records, cursorOffset)
	return out.Text, err
}

func ApplyDetailed(original string, records []parser.ChangeRecord, cursorOffset int) (Outcome, error) {
	defer logger.Trace("patch.Apply")()

	working, marked := withCursorMarker(original, records, cursorOffset)

	var accepted []span
	out := Outcome{Text: original, Cursor: -1}

	for i, rec := range records {
		start, end, ok := text.FindBestMatchSpan(working, rec.Search)
		if !ok {
			logger.Debug("patch: no match for search %q", preview(rec.Search))
			out.Unmatched++
			continue
		}

		replace := rec.Replace
		if strings.HasSuffix(rec.Search, "\n") {
			extra := countNewlines(working, end)
			if extra > 0 {
				blank := strings.Repeat("\n", extra)
				if !strings.HasSuffix(replace, "\n"+blank) {
					replace = strings.TrimRightFunc(replace, unicode.IsSpace) + "\n" + blank
				}
				end += extra
			}
		}

		if overlapsAny(accepted, start, end) {
			logger.Warn("patch: skipping overlapping change %q", preview(rec.Search))
			out.Overlaps++
			continue
		}

		accepted = append(accepted, span{start: start, end: end, replace: replace, order: i, cursor: rec.CursorOffset})
	}

	if len(accepted) == 0 {
		return out, ErrNoneApplied
	}

	sort.Slice(accepted, func(a, b int) bool { return accepted[a].start > accepted[b].start })

	result := working
	for _, s := range accepted {
		result = result[:s.start] + s.replace + result[s.end:]
	}

	out.Cursor = finalCursor(result, accepted, marked)
	if marked {
		result = strings.ReplaceAll(result, parser.CursorMarker, "")
	}

	out.Text = result
	out.Applied = len(accepted)
	return out, nil
}

// withCursorMarker inserts the cursor marker at cursorOffset when a search
// payload mentions it and the document does not already contain it.
func withCursorMarker(original string, records []parser.ChangeRecord, cursorOffset int) (string, bool) {
	if cursorOffset < 0 || cursorOffset > len(original) {
		return original, false
	}
	if strings.Contains(original, parser.CursorMarker) {
		return original, false
	}
	for _, rec := range records {
		if strings.Contains(rec.Search, parser.CursorMarker) {
			return original[:cursorOffset] + parser.CursorMarker + original[cursorOffset:], true
		}
	}
	return original, false
}

func overlapsAny(accepted []span, start, end int) bool {
	for _, s := range accepted {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

func countNewlines(s string, from int) int {
	n := 0
	for from+n < len(s) && s[from+n] == '\n' {
		n++
	}
	return n
}

// finalCursor maps the cursor of the earliest-parsed applied record into the
// patched text. accepted is sorted by descending start.
func finalCursor(result string, accepted []span, marked bool) int {
	pick := -1
	for i, s := range accepted {
		if s.cursor >= 0 && (pick == -1 || s.order < accepted[pick].order) {
			pick = i
		}
	}
	if pick == -1 {
		return -1
	}

	target := accepted[pick]
	pos := target.start
	// spans after pick in the slice start earlier and shift it
	for _, s := range accepted[pick+1:] {
		pos += len(s.replace) - (s.end - s.start)
	}
	pos += min(target.cursor, len(target.replace))

	if marked {
		pos -= strings.Count(result[:pos], parser.CursorMarker) * len(parser.CursorMarker)
	}
	return pos
}

func preview(s string) string {
	const limit = 50
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

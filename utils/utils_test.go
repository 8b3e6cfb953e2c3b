package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowAroundCursor_EmptyFile(t *testing.T) {
	w := WindowAroundCursor([]string{}, 0, 100)

	assert.Equal(t, 0, len(w.Lines), "lines")
	assert.Equal(t, 0, w.CursorRow, "cursorRow")
	assert.Equal(t, 0, w.Start, "start")
	assert.False(t, w.Trimmed, "not trimmed")
}

func TestWindowAroundCursor_SmallFile(t *testing.T) {
	lines := []string{"line 1", "line 2", "line 3"}
	w := WindowAroundCursor(lines, 1, 1000)

	assert.Equal(t, lines, w.Lines, "small file kept whole")
	assert.Equal(t, 1, w.CursorRow, "cursorRow")
	assert.Equal(t, 0, w.Start, "start")
	assert.Equal(t, 3, w.End(), "end")
	assert.False(t, w.Trimmed)
}

func TestWindowAroundCursor_LargeFileTrims(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "this is line content that takes up space"
	}

	w := WindowAroundCursor(lines, 50, 100)

	assert.True(t, w.Trimmed, "trimmed")
	assert.Less(t, len(w.Lines), 100, "fewer lines")
	assert.True(t, w.CursorRow >= 0 && w.CursorRow < len(w.Lines), "cursor inside window")
	assert.Equal(t, lines[50], w.Lines[w.CursorRow], "cursor line kept")
	assert.Equal(t, 50, w.Start+w.CursorRow, "cursor maps back to document")

	size := 0
	for _, l := range w.Lines {
		size += len(l) + 1
	}
	assert.LessOrEqual(t, size, EstimateCharsFromTokens(100), "fits the budget")
}

func TestWindowAroundCursor_CursorClamping(t *testing.T) {
	lines := []string{"line 1", "line 2", "line 3"}

	w := WindowAroundCursor(lines, 100, 1000)
	assert.Equal(t, 2, w.CursorRow, "clamped to last line")

	w = WindowAroundCursor(lines, -5, 1000)
	assert.Equal(t, 0, w.CursorRow, "clamped to first line")
}

func TestWindowAroundCursor_ZeroMaxTokens(t *testing.T) {
	lines := []string{strings.Repeat("x", 500), "b"}
	w := WindowAroundCursor(lines, 1, 0)

	assert.False(t, w.Trimmed, "no limit")
	assert.Equal(t, 2, len(w.Lines))
}

func TestWindowAroundCursor_Balanced(t *testing.T) {
	// 21 lines of 9 chars + newline = 10 chars each; budget 110 chars keeps
	// the cursor line plus 5 lines either side.
	lines := make([]string, 21)
	for i := range lines {
		lines[i] = "123456789"
	}

	w := WindowAroundCursor(lines, 10, 55)

	assert.Equal(t, 5, w.Start, "5 lines above")
	assert.Equal(t, 16, w.End(), "5 lines below")
	assert.Equal(t, 5, w.CursorRow)
}

func TestWindowAroundCursor_UnusedBudgetMovesUp(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "123456789"
	}

	// Cursor on the last line: nothing below, so the window extends upward.
	w := WindowAroundCursor(lines, 19, 55)

	assert.Equal(t, 20, w.End())
	assert.Equal(t, 9, w.Start, "10 lines above use the whole budget")
}

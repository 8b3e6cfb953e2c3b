package utils

// AvgCharsPerToken is a conservative estimate for mixed code and prose.
const AvgCharsPerToken = 2

func EstimateCharsFromTokens(tokens int) int {
	return tokens * AvgCharsPerToken
}

// Window is a run of whole lines cut from a document around the cursor.
type Window struct {
	Lines     []string
	Start     int // first document line in the window, 0-indexed
	CursorRow int // cursor row within Lines
	Trimmed   bool
}

// End returns the document line just past the window.
func (w Window) End() int { return w.Start + len(w.Lines) }

// WindowAroundCursor keeps the lines around cursorRow that fit in maxTokens.
// The budget is split evenly above and below the cursor line; budget one side
// cannot use goes to the other. maxTokens <= 0 disables trimming. cursorRow
// is clamped to the document.
func WindowAroundCursor(lines []string, cursorRow, maxTokens int) Window {
	if len(lines) == 0 {
		return Window{Lines: lines}
	}
	cursorRow = min(max(cursorRow, 0), len(lines)-1)

	whole := Window{Lines: lines, CursorRow: cursorRow}
	if maxTokens <= 0 {
		return whole
	}

	maxChars := EstimateCharsFromTokens(maxTokens)
	total := 0
	for _, line := range lines {
		total += len(line) + 1
	}
	if total <= maxChars {
		return whole
	}

	half := (maxChars - len(lines[cursorRow]) - 1) / 2

	_, usedAbove := grow(lines, cursorRow, -1, half)
	end, usedBelow := grow(lines, cursorRow, +1, 2*half-usedAbove)
	start, _ := grow(lines, cursorRow, -1, 2*half-usedBelow)

	out := make([]string, end-start+1)
	copy(out, lines[start:end+1])
	return Window{
		Lines:     out,
		Start:     start,
		CursorRow: cursorRow - start,
		Trimmed:   true,
	}
}

// grow extends from line `from` in direction dir while whole lines fit in
// budget, returning the last line taken and the characters used.
func grow(lines []string, from, dir, budget int) (int, int) {
	at, used := from, 0
	for {
		next := at + dir
		if next < 0 || next >= len(lines) {
			return at, used
		}
		cost := len(lines[next]) + 1
		if used+cost > budget {
			return at, used
		}
		at, used = next, used+cost
	}
}

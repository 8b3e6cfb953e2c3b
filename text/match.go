package text

import "strings"

// FindBestMatch returns the offset of pattern inside haystack, or -1.
//
// An exact substring match wins. Otherwise every start offset is tried
// with a whitespace-tolerant walk:
//   - runs of newlines (\n, \r) match runs of newlines of any length
//   - runs of spaces and tabs match runs of spaces and tabs of any length
//   - spaces and tabs in the haystack are skipped when the pattern expects a newline
//   - a newline never matches a space, tab or any other character
//
// Whitespace left over at the end of the pattern when the haystack runs
// out is ignored. Leading pattern whitespace is not.
func FindBestMatch(haystack, pattern string) int {
	start, _, ok := FindBestMatchSpan(haystack, pattern)
	if !ok {
		return -1
	}
	return start
}

// FindBestMatchSpan is FindBestMatch that also reports the end offset of the
// matched region in haystack.
func FindBestMatchSpan(haystack, pattern string) (start, end int, ok bool) {
	if haystack == "" || pattern == "" {
		return 0, 0, false
	}

	if idx := strings.Index(haystack, pattern); idx != -1 {
		return idx, idx + len(pattern), true
	}

	for s := 0; s < len(haystack); s++ {
		if e, ok := matchAt(haystack, pattern, s); ok {
			return s, e, true
		}
	}
	return 0, 0, false
}

func matchAt(h, p string, start int) (int, bool) {
	i, j := start, 0
	for j < len(p) && i < len(h) {
		pc, hc := p[j], h[i]
		switch {
		case isNewline(pc):
			if isNewline(hc) {
				end := skipWhile(p, j, isNewline)
				if end == len(p) {
					// trailing run: stop at the matched lines so blank
					// lines after them stay outside the span
					i = skipBreaks(h, i, countBreaks(p[j:]))
				} else {
					i = skipWhile(h, i, isNewline)
				}
				j = end
				continue
			}
			if isBlank(hc) {
				k := skipWhile(h, i, isBlank)
				if k < len(h) && isNewline(h[k]) {
					i = k
					continue
				}
			}
			return 0, false
		case isBlank(pc):
			if !isBlank(hc) {
				return 0, false
			}
			i = skipWhile(h, i, isBlank)
			j = skipWhile(p, j, isBlank)
		case pc == hc:
			i++
			j++
		default:
			return 0, false
		}
	}

	if j == len(p) {
		return i, true
	}
	// haystack exhausted; only trailing whitespace may remain
	for ; j < len(p); j++ {
		if !isBlank(p[j]) && !isNewline(p[j]) {
			return 0, false
		}
	}
	return i, true
}

func skipWhile(s string, i int, pred func(byte) bool) int {
	for i < len(s) && pred(s[i]) {
		i++
	}
	return i
}

// countBreaks counts line breaks in a run of newline characters, treating
// \r\n as one break.
func countBreaks(run string) int {
	n := 0
	for i := 0; i < len(run); i++ {
		if run[i] == '\r' && i+1 < len(run) && run[i+1] == '\n' {
			i++
		}
		n++
	}
	return n
}

// skipBreaks advances past at most n line breaks starting at i.
func skipBreaks(s string, i, n int) int {
	for ; n > 0 && i < len(s) && isNewline(s[i]); n-- {
		if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			i++
		}
		i++
	}
	return i
}

func isNewline(c byte) bool { return c == '\n' || c == '\r' }

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

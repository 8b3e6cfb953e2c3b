// Package parser extracts search/replace change records from a model response
// that arrives in chunks.
//
// The response format is a sequence of blocks:
//
//	<change><search><![CDATA[old]]></search><replace><![CDATA[new]]></replace></change>
package parser

import (
	"regexp"
	"strings"
)

// CursorMarker marks the cursor position inside prompts, search payloads and
// replace payloads.
const CursorMarker = "<<<AUTOCOMPLETE_HERE>>>"

// ChangeRecord is one parsed search/replace pair.
type ChangeRecord struct {
	Search  string
	Replace string
	// CursorOffset is the byte offset in Replace where the cursor marker was,
	// or -1 when the replace payload had no marker.
	CursorOffset int
}

func (r ChangeRecord) HasCursor() bool { return r.CursorOffset >= 0 }

// Result is the outcome of one Parse call.
type Result struct {
	Records       []ChangeRecord
	IsComplete    bool
	HasNewRecords bool
}

var changeRe = regexp.MustCompile(`<change>\s*<search>\s*<!\[CDATA\[([\s\S]*?)\]\]>\s*</search>\s*<replace>\s*<!\[CDATA\[([\s\S]*?)\]\]>\s*</replace>\s*</change>`)

var openTagRe = map[string]*regexp.Regexp{
	"change":  regexp.MustCompile(`(?i)<change(?:\s[^>]*)?>`),
	"search":  regexp.MustCompile(`(?i)<search(?:\s[^>]*)?>`),
	"replace": regexp.MustCompile(`(?i)<replace(?:\s[^>]*)?>`),
}

// Parser accumulates one streamed response. It is not safe for concurrent use;
// chunks for one request are fed sequentially.
type Parser struct {
	buffer  string
	records []ChangeRecord
	// repaired is the sanitized form of buffer when only that form parsed.
	repaired string
}

func New() *Parser {
	return &Parser{}
}

// Reset drops the buffer and every extracted record.
func (p *Parser) Reset() {
	p.buffer = ""
	p.records = nil
	p.repaired = ""
}

func (p *Parser) Buffer() string { return p.buffer }

func (p *Parser) Records() []ChangeRecord {
	out := make([]ChangeRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Parse takes the full response received so far. Text that does not extend
// the previous buffer starts a new response.
func (p *Parser) Parse(text string) Result {
	if !strings.HasPrefix(text, p.buffer) {
		p.Reset()
	}
	if text != p.buffer {
		p.repaired = ""
	}
	p.buffer = text

	source := text
	if p.repaired != "" {
		source = p.repaired
	}
	hasNew := p.absorb(extract(source))
	complete := isComplete(source, len(p.records))

	if !complete && len(p.records) == 0 && strings.TrimSpace(text) != "" {
		if sanitized := sanitize(text); sanitized != text {
			recs := extract(sanitized)
			if len(recs) > 0 {
				p.absorb(recs)
				p.repaired = sanitized
				hasNew = true
				complete = isComplete(sanitized, len(p.records))
			}
		}
	}

	return Result{
		Records:       p.Records(),
		IsComplete:    complete,
		HasNewRecords: hasNew,
	}
}

// absorb appends the records beyond those already seen. Extraction is a
// leftmost scan over an append-only buffer, so known records are a prefix.
func (p *Parser) absorb(all []ChangeRecord) bool {
	if len(all) <= len(p.records) {
		return false
	}
	p.records = append(p.records, all[len(p.records):]...)
	return true
}

func extract(s string) []ChangeRecord {
	var out []ChangeRecord
	for _, m := range changeRe.FindAllStringSubmatch(s, -1) {
		replace := m[2]
		cursor := strings.Index(replace, CursorMarker)
		out = append(out, ChangeRecord{
			Search:       m[1],
			Replace:      strings.ReplaceAll(replace, CursorMarker, ""),
			CursorOffset: cursor,
		})
	}
	return out
}

func isComplete(s string, records int) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	lower := strings.ToLower(trimmed)

	for tag, re := range openTagRe {
		if unclosed(lower, re, "</"+tag+">") {
			return false
		}
	}
	if open := strings.LastIndex(lower, "<![cdata["); open != -1 {
		if !strings.Contains(lower[open:], "]]>") {
			return false
		}
	}
	// "...</change><cha" is mid-tag
	if lt := strings.LastIndex(lower, "<"); lt != -1 && strings.LastIndex(lower, ">") < lt {
		return false
	}
	return records > 0
}

// unclosed reports whether the last opening tag matched by re has no closing
// tag after it.
func unclosed(s string, re *regexp.Regexp, closeTag string) bool {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return false
	}
	last := locs[len(locs)-1]
	return !strings.Contains(s[last[1]:], closeTag)
}

// sanitize repairs two known model mistakes without hiding real truncation:
// a "</![CDATA[" written instead of "]]>", and a single change block whose
// search and replace are closed but whose "</change>" is missing or lacks ">".
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "</![CDATA[", "]]>")

	if strings.Count(s, "<change>") != 1 || strings.Count(s, "</change>") != 0 {
		return s
	}
	if strings.Count(s, "</search>") != 1 || strings.Count(s, "</replace>") != 1 {
		return s
	}

	if strings.Contains(s, "</change") {
		return strings.Replace(s, "</change", "</change>", 1)
	}
	if strings.HasSuffix(strings.TrimSpace(s), "<") {
		return s
	}
	return s + "</change>"
}

package provider

import (
	"fmt"
	"path/filepath"
	"strings"

	"ghostedit/parser"
)

const baseInstructions = `CRITICAL OUTPUT FORMAT:
You must respond with XML-formatted changes ONLY. No explanations or text outside XML tags.

Format: <change><search><![CDATA[exact_code]]></search><replace><![CDATA[new_code]]></replace></change>

XML STRUCTURE RULES:
- Every <change>, <search> and <replace> tag MUST be closed
- Every <![CDATA[ MUST be closed with ]]>
- Use one <change> block per modification

CHANGE ORDERING:
- Order <change> blocks by line distance from the cursor marker (` + parser.CursorMarker + `), closest first

CONTENT MATCHING RULES:
- Search content must match the code EXACTLY, including whitespace, indentation and line breaks
- Wrap all code in CDATA and keep its line breaks
- Never generate overlapping changes
- If you cannot find an exact match, do not generate that change

EXAMPLE:
<change><search><![CDATA[func example() {
	// old code
}]]></search><replace><![CDATA[func example() {
	// new code
}]]></replace></change>`

const autoTriggerTask = `Task: Subtle Auto-Completion
Provide non-intrusive completions after a typing pause. Be conservative and helpful.`

const userRequestTask = `Task: Execute the User's Explicit Request
You are responding to a direct user instruction. Fulfill the specific request accurately.

Priority Order:
1. The user's explicit intent
2. Code correctness
3. Code style and conventions

Provide complete implementations, not partial code. If the request is ambiguous, make reasonable assumptions from the surrounding code.`

// SystemPrompt returns the instructions for a request. custom is appended
// after a separator when non-empty.
func SystemPrompt(userInput, custom string) string {
	task := autoTriggerTask
	if strings.TrimSpace(userInput) != "" {
		task = userRequestTask
	}
	prompt := baseInstructions + "\n\n---\n\n" + task
	if strings.TrimSpace(custom) != "" {
		prompt += "\n\n---\n\n" + custom
	}
	return prompt
}

// WithCursorMarker joins lines and inserts the cursor marker at row/col
// (0-indexed; col in bytes, clamped to the line).
func WithCursorMarker(lines []string, row, col int) string {
	if len(lines) == 0 {
		return parser.CursorMarker
	}
	row = min(max(row, 0), len(lines)-1)
	line := lines[row]
	col = min(max(col, 0), len(line))

	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i == row {
			b.WriteString(line[:col])
			b.WriteString(parser.CursorMarker)
			b.WriteString(line[col:])
			continue
		}
		b.WriteString(l)
	}
	return b.String()
}

// UserPrompt describes the document around the cursor. firstLine is the
// document line of code's first line, 0-indexed.
func UserPrompt(filePath, code string, cursorRow, cursorCol, firstLine int, userInput string) string {
	var b strings.Builder
	lang := languageID(filePath)

	if userInput != "" {
		fmt.Fprintf(&b, "## User Request\n%q\n\n", userInput)
	}

	b.WriteString("## Current Position\n")
	fmt.Fprintf(&b, "File %s, Line %d, Character %d\n\n", filePath, cursorRow+1, cursorCol+1)

	b.WriteString("## Code\n")
	if firstLine > 0 {
		fmt.Fprintf(&b, "(starting at line %d)\n", firstLine+1)
	}
	fmt.Fprintf(&b, "```%s\n%s\n```\n\n", lang, code)

	b.WriteString("## Instructions\n")
	if userInput != "" {
		fmt.Fprintf(&b, "Generate changes that directly implement: %q\n", userInput)
		fmt.Fprintf(&b, "Start with changes at the cursor position (%s).\n", parser.CursorMarker)
		return b.String()
	}
	fmt.Fprintf(&b, "Provide a minimal, obvious completion at the cursor position (%s).\n", parser.CursorMarker)
	fmt.Fprintf(&b, "Your <search> block must include the cursor marker %s to target the exact location.\n", parser.CursorMarker)
	b.WriteString("Include surrounding text with the cursor marker to avoid conflicts with similar code elsewhere.\n")
	b.WriteString("Complete only what the user appears to be typing.\n")
	b.WriteString("If nothing obvious to complete, provide NO suggestion.\n")
	return b.String()
}

var languages = map[string]string{
	".go":   "go",
	".lua":  "lua",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".java": "java",
	".rb":   "ruby",
	".sh":   "bash",
	".md":   "markdown",
}

func languageID(path string) string {
	return languages[strings.ToLower(filepath.Ext(path))]
}

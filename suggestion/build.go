package suggestion

import "ghostedit/text"

// AddHunks converts diff hunks into operations on f and sorts the result.
// Hunk positions are 1-based; operations are 0-based.
func AddHunks(f *File, hunks []text.Hunk) {
	for _, h := range hunks {
		oldLine, newLine := h.OldStart, h.NewStart
		for _, line := range h.Lines {
			if line == "" {
				continue
			}
			content := line[1:]
			switch line[0] {
			case '+':
				f.AddOperation(EditOperation{
					Kind:    Insert,
					Line:    newLine - 1,
					OldLine: oldLine - 1,
					NewLine: newLine - 1,
					Content: content,
				})
				newLine++
			case '-':
				f.AddOperation(EditOperation{
					Kind:    Delete,
					Line:    oldLine - 1,
					OldLine: oldLine - 1,
					NewLine: newLine - 1,
					Content: content,
				})
				oldLine++
			default:
				oldLine++
				newLine++
			}
		}
	}
	f.SortGroups()
}

// Build diffs original against modified and groups the result into a File.
func Build(id, original, modified string) *File {
	f := NewFile(id)
	AddHunks(f, text.LineDiff(original, modified))
	return f
}

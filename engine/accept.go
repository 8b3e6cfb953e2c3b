package engine

import (
	"errors"

	"ghostedit/edit"
	"ghostedit/logger"
	"ghostedit/suggestion"
)

// currentFile returns the suggestion file for the engine's buffer, or nil.
func (e *Engine) currentFile() *suggestion.File {
	files := e.suggestions.Files()
	if len(files) == 0 {
		return nil
	}
	if f, ok := e.suggestions.File(documentID(e.buffer)); ok {
		return f
	}
	return files[0]
}

// show sends the file's groups to the UI and moves the cursor to the
// selected group.
func (e *Engine) show(file *suggestion.File) {
	line, ok := e.translator.SelectedLine(file)
	if !ok {
		line = e.buffer.Cursor().Line
	}
	if err := e.ui.ShowSuggestions(file, line); err != nil {
		logger.Error("error showing suggestions: %v", err)
	}
}

func (e *Engine) navigate(dir int) {
	file := e.currentFile()
	if file == nil {
		e.reject()
		return
	}
	if dir > 0 {
		file.SelectNext()
	} else {
		file.SelectPrevious()
	}
	e.show(file)
	e.moveCursorToSelection(file)
}

func (e *Engine) moveCursorToSelection(file *suggestion.File) {
	line, ok := e.translator.SelectedLine(file)
	if !ok {
		return
	}
	line = min(line, max(e.buffer.LineCount()-1, 0))
	if err := e.ui.MoveCursor(line, true, false); err != nil {
		logger.Error("error moving cursor: %v", err)
	}
}

// applySelected writes the selected group to the buffer, drops it from the
// suggestions and selects the group closest to where it was.
func (e *Engine) applySelected() {
	file := e.currentFile()
	if file == nil || file.SelectedGroup() == nil {
		logger.Debug("apply: nothing selected")
		return
	}

	e.state = stateApplying
	line, _ := e.translator.SelectedLine(file)
	group := file.SelectedGroup()

	applied, err := e.translator.Apply(e.mainCtx, e.buffer, group, file.PrecedingGroups())
	if errors.Is(err, edit.ErrLocked) {
		e.state = stateHasSuggestions
		return
	}
	if err != nil {
		logger.Error("apply %s group: %v", group.Kind, err)
		e.reject()
		return
	}
	if applied {
		logger.Debug("applied %s group at line %d", group.Kind, line+1)
	}

	file.DeleteSelectedGroup()
	e.suggestions.ValidateFiles()
	if !e.suggestions.HasSuggestions() {
		e.finishApply()
		return
	}

	e.translator.SelectClosest(file, line, line+max(len(group.Ops)-1, 0))
	e.state = stateHasSuggestions
	e.show(file)
	e.moveCursorToSelection(file)
}

// applyAll writes every remaining group to the buffer in one edit.
func (e *Engine) applyAll() {
	file := e.currentFile()
	if file == nil {
		e.reject()
		return
	}

	e.state = stateApplying
	groups := file.Groups()
	_, err := e.translator.ApplyAll(e.mainCtx, e.buffer, groups)
	if errors.Is(err, edit.ErrLocked) {
		e.state = stateHasSuggestions
		return
	}
	if err != nil {
		logger.Error("apply all: %v", err)
		e.reject()
		return
	}
	logger.Debug("applied %d group(s)", len(groups))
	e.finishApply()
}

func (e *Engine) finishApply() {
	e.suggestions.Clear()
	if err := e.ui.Clear(); err != nil {
		logger.Error("error clearing suggestions: %v", err)
	}
	e.state = stateIdle
}

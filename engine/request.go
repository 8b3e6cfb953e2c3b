package engine

import (
	"context"
	"errors"

	"ghostedit/logger"
	"ghostedit/types"
)

// requestSuggestion cancels the current request and starts streaming a new
// one for the buffer as it is now. Called from dispatch with e.mu held.
func (e *Engine) requestSuggestion(userInput string) {
	e.reject()

	if _, err := e.buffer.Sync(e.WorkspacePath); err != nil {
		logger.Error("sync error: %v", err)
		return
	}

	session := NewSession()
	session.Attach(e.buffer, e.buffer.Cursor())

	ctx, cancel := e.requestContext()
	session.bind(cancel)
	e.session = session
	e.state = stateStreaming

	cursor := session.Cursor()
	req := &types.SuggestionRequest{
		RequestID: session.ID,
		FilePath:  e.buffer.Path(),
		Lines:     append([]string{}, e.buffer.Lines()...),
		CursorRow: cursor.Line,
		CursorCol: cursor.Character,
		UserInput: userInput,
	}
	logger.Debug("requesting suggestion %s for %s:%d:%d", req.RequestID, req.FilePath, req.CursorRow+1, req.CursorCol)

	go e.stream(ctx, e.source, session, req)
}

func (e *Engine) requestContext() (context.Context, context.CancelFunc) {
	if e.config.CompletionTimeout > 0 {
		return context.WithTimeout(e.mainCtx, e.config.CompletionTimeout)
	}
	return context.WithCancel(e.mainCtx)
}

// stream forwards the source's chunks to the event loop, followed by one
// stream_done or stream_error event.
func (e *Engine) stream(ctx context.Context, source types.StreamSource, session *Session, req *types.SuggestionRequest) {
	chunks, errs := source.Stream(ctx, req)
	for chunk := range chunks {
		e.Post(Event{Type: EventChunk, Data: chunkData{session: session, text: chunk}})
	}
	if err := <-errs; err != nil {
		e.Post(Event{Type: EventStreamError, Data: streamErrorData{session: session, err: err}})
		return
	}
	e.Post(Event{Type: EventStreamDone, Data: session})
}

// finishSuggestion turns the completed response into suggestions and shows
// them. A response with nothing usable returns to idle without telling the
// user.
func (e *Engine) finishSuggestion(session *Session) {
	state, err := session.Finish()
	session.release()
	if err != nil {
		logger.Error("finish suggestion %s: %v", session.ID, err)
		e.reject()
		return
	}
	if session.Cancelled() {
		logger.Debug("suggestion %s cancelled, discarding result", session.ID)
		return
	}

	e.session = nil
	if !state.HasSuggestions() {
		logger.Debug("suggestion %s: nothing to suggest", session.ID)
		e.state = stateIdle
		return
	}

	e.suggestions = state
	file := e.currentFile()
	cursorLine := session.Cursor().Line
	e.translator.SelectClosest(file, cursorLine, cursorLine)
	e.state = stateHasSuggestions

	if fill, ok := state.FillInAtCursor(); ok {
		if err := e.ui.ShowFillIn(fill); err != nil {
			logger.Error("error showing fill-in: %v", err)
		}
	}
	e.show(file)
}

func (e *Engine) handleStreamError(err error) {
	if errors.Is(err, context.Canceled) {
		logger.Debug("stream canceled: %v", err)
	} else if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("stream timed out after %s", e.config.CompletionTimeout)
	} else {
		logger.Error("stream error: %v", err)
	}
	e.reject()
}

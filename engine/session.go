package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"ghostedit/edit"
	"ghostedit/logger"
	"ghostedit/parser"
	"ghostedit/patch"
	"ghostedit/suggestion"
	"ghostedit/text"
	"ghostedit/types"

	"github.com/google/uuid"
)

// ErrNoDocument is returned when a session is used before a document was
// attached to it.
var ErrNoDocument = errors.New("engine: no document attached to session")

// Session owns the state of one suggestion request: the parse buffer, the
// document snapshot it was issued against and its cancellation flag.
// Sessions are not reused; a new request gets a new Session.
type Session struct {
	ID string

	parser   *parser.Parser
	response string
	result   parser.Result

	doc          edit.Document
	docID        string
	cursor       types.Position
	cursorOffset int
	original     string

	cancelled atomic.Bool
	cancel    context.CancelFunc
}

func NewSession() *Session {
	return &Session{
		ID:           uuid.NewString(),
		parser:       parser.New(),
		cursorOffset: -1,
	}
}

// Attach snapshots doc and the cursor. Any response fed so far is dropped.
func (s *Session) Attach(doc edit.Document, cursor types.Position) {
	s.doc = doc
	s.docID = documentID(doc)
	s.cursor = cursor
	s.original = doc.Text()
	s.cursorOffset = doc.OffsetAt(cursor)
	s.parser.Reset()
	s.response = ""
	s.result = parser.Result{}
}

func documentID(doc edit.Document) string {
	if d, ok := doc.(interface{ ID() string }); ok {
		return d.ID()
	}
	return ""
}

func (s *Session) Cursor() types.Position {
	return s.cursor
}

// Feed appends a chunk of the model response and reparses it.
func (s *Session) Feed(chunk string) (parser.Result, error) {
	if s.doc == nil {
		return parser.Result{}, ErrNoDocument
	}
	s.response += chunk
	s.result = s.parser.Parse(s.response)
	if s.result.HasNewRecords {
		logger.Debug("session %s: %d change record(s) so far", s.ID, len(s.result.Records))
	}
	return s.result, nil
}

// Finish turns the complete response into suggestion state. A response with
// no usable change yields an empty state, not an error. Finish does its work
// even after Cancel; the caller checks Cancelled before showing the result.
func (s *Session) Finish() (*suggestion.State, error) {
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	defer logger.Trace("session.Finish")()

	state := suggestion.NewState()
	res := s.parser.Parse(s.response)
	if !res.IsComplete {
		logger.Debug("session %s: response incomplete, %d record(s)", s.ID, len(res.Records))
	}
	if len(res.Records) == 0 {
		return state, nil
	}

	out, err := patch.ApplyDetailed(s.original, res.Records, s.cursorOffset)
	if errors.Is(err, patch.ErrNoneApplied) {
		logger.Debug("session %s: none of %d record(s) matched", s.ID, len(res.Records))
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("apply changes: %w", err)
	}
	if out.Unmatched > 0 || out.Overlaps > 0 {
		logger.Info("session %s: applied %d, unmatched %d, overlapping %d", s.ID, out.Applied, out.Unmatched, out.Overlaps)
	}
	if out.Text == s.original {
		return state, nil
	}

	f := state.AddFile(s.docID)
	suggestion.AddHunks(f, text.LineDiff(s.original, out.Text))
	state.ValidateFiles()

	if s.cursorOffset >= 0 {
		prefix, suffix := s.original[:s.cursorOffset], s.original[s.cursorOffset:]
		if fill, ok := suggestion.ReduceToFillIn(out.Text, prefix, suffix); ok && fill.Text != "" {
			state.SetFillIn(fill)
		}
	}
	return state, nil
}

// bind sets the function that cancels the session's stream.
func (s *Session) bind(cancel context.CancelFunc) {
	s.cancel = cancel
}

// release frees the stream context without marking the session cancelled.
func (s *Session) release() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Cancel marks the session cancelled and stops its stream.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	s.release()
}

func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

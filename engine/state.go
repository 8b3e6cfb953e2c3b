package engine

import "ghostedit/logger"

type state int

const (
	stateIdle state = iota
	stateStreaming
	stateHasSuggestions
	stateApplying
)

// String returns a human-readable name for the state
func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateStreaming:
		return "Streaming"
	case stateHasSuggestions:
		return "HasSuggestions"
	case stateApplying:
		return "Applying"
	default:
		return "Unknown"
	}
}

// Transition represents a valid state transition in the engine's state machine
type Transition struct {
	From   state
	Event  EventType
	Action func(*Engine, Event)
}

// transitions defines all valid state transitions in the engine.
//
// State Machine Overview:
//
//	stateIdle
//	└─[Request]──► stateStreaming
//	                 │
//	                 ├─[Chunk]──► stateStreaming
//	                 ├─[StreamDone + suggestions]──► stateHasSuggestions
//	                 ├─[StreamDone + nothing usable]──► stateIdle
//	                 ├─[StreamError]──► stateIdle
//	                 └─[Request]──► stateStreaming (previous session cancelled)
//
//	stateHasSuggestions
//	├─[SelectNext/SelectPrev]──► stateHasSuggestions
//	├─[ApplySelected]──► stateApplying ──► stateHasSuggestions | stateIdle
//	├─[ApplyAll]──► stateApplying ──► stateIdle
//	└─[Request]──► stateStreaming
//
// stateApplying only lasts for the duration of one apply action.
//
// Rejection (all → stateIdle): Cancel, Esc, TextChanged
var transitions = []Transition{
	// From stateIdle
	{stateIdle, EventRequest, (*Engine).doRequest},

	// From stateStreaming
	{stateStreaming, EventRequest, (*Engine).doRequest},
	{stateStreaming, EventChunk, (*Engine).doChunk},
	{stateStreaming, EventStreamDone, (*Engine).doStreamDone},
	{stateStreaming, EventStreamError, (*Engine).doStreamError},
	{stateStreaming, EventCancel, (*Engine).doReject},
	{stateStreaming, EventEsc, (*Engine).doReject},
	{stateStreaming, EventTextChanged, (*Engine).doReject},

	// From stateHasSuggestions
	{stateHasSuggestions, EventRequest, (*Engine).doRequest},
	{stateHasSuggestions, EventSelectNext, (*Engine).doSelectNext},
	{stateHasSuggestions, EventSelectPrev, (*Engine).doSelectPrev},
	{stateHasSuggestions, EventApplySelected, (*Engine).doApplySelected},
	{stateHasSuggestions, EventApplyAll, (*Engine).doApplyAll},
	{stateHasSuggestions, EventCancel, (*Engine).doReject},
	{stateHasSuggestions, EventEsc, (*Engine).doReject},
	{stateHasSuggestions, EventTextChanged, (*Engine).doReject},
}

// transitionMap provides O(1) lookup for transitions by (state, event) pair
var transitionMap map[transitionKey]*Transition

type transitionKey struct {
	from  state
	event EventType
}

func init() {
	transitionMap = make(map[transitionKey]*Transition)
	for i := range transitions {
		t := &transitions[i]
		transitionMap[transitionKey{from: t.From, event: t.Event}] = t
	}
}

// findTransition looks up a valid transition for the given state and event.
// Returns nil if no valid transition exists.
func findTransition(from state, event EventType) *Transition {
	return transitionMap[transitionKey{from: from, event: event}]
}

// dispatch finds and executes the appropriate transition for an event.
// Returns true if a transition was found and executed. The action sets the
// next state, which may depend on the outcome.
func (e *Engine) dispatch(event Event) bool {
	t := findTransition(e.state, event.Type)
	if t == nil {
		logger.Debug("no handler: state=%s event=%s", e.state, event.Type)
		return false
	}
	if t.Action != nil {
		t.Action(e, event)
	}
	return true
}

func (e *Engine) doRequest(event Event) {
	userInput, _ := event.Data.(string)
	e.requestSuggestion(userInput)
}

func (e *Engine) doChunk(event Event) {
	data, ok := event.Data.(chunkData)
	if !ok || !e.isCurrent(data.session) {
		return
	}
	if _, err := data.session.Feed(data.text); err != nil {
		logger.Error("feed chunk: %v", err)
		e.reject()
	}
}

func (e *Engine) doStreamDone(event Event) {
	session, ok := event.Data.(*Session)
	if !ok || !e.isCurrent(session) {
		return
	}
	e.finishSuggestion(session)
}

func (e *Engine) doStreamError(event Event) {
	data, ok := event.Data.(streamErrorData)
	if !ok || !e.isCurrent(data.session) {
		return
	}
	e.handleStreamError(data.err)
}

func (e *Engine) doReject(event Event) {
	e.reject()
}

func (e *Engine) doSelectNext(event Event) {
	e.navigate(+1)
}

func (e *Engine) doSelectPrev(event Event) {
	e.navigate(-1)
}

func (e *Engine) doApplySelected(event Event) {
	e.applySelected()
}

func (e *Engine) doApplyAll(event Event) {
	e.applyAll()
}

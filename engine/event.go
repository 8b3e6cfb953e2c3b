package engine

type EventType string

// Event type constants
const (
	EventRequest       EventType = "request"
	EventChunk         EventType = "chunk"
	EventStreamDone    EventType = "stream_done"
	EventStreamError   EventType = "stream_error"
	EventSelectNext    EventType = "select_next"
	EventSelectPrev    EventType = "select_prev"
	EventApplySelected EventType = "apply_selected"
	EventApplyAll      EventType = "apply_all"
	EventCancel        EventType = "cancel"
	EventTextChanged   EventType = "text_changed"
	EventEsc           EventType = "esc"
)

var eventTypeMap map[string]EventType

func init() {
	eventTypeMap = buildEventTypeMap()
}

// buildEventTypeMap lists the events the editor may send. Stream events are
// internal and cannot be sent from outside.
func buildEventTypeMap() map[string]EventType {
	eventMap := make(map[string]EventType)
	for _, eventType := range []EventType{
		EventRequest,
		EventSelectNext,
		EventSelectPrev,
		EventApplySelected,
		EventApplyAll,
		EventCancel,
		EventTextChanged,
		EventEsc,
	} {
		eventMap[string(eventType)] = eventType
	}
	return eventMap
}

// EventTypeFromString returns the editor event named s, or "" if there is none.
func EventTypeFromString(s string) EventType {
	if eventType, exists := eventTypeMap[s]; exists {
		return eventType
	}
	return ""
}

type Event struct {
	Type EventType
	Data any
}

// chunkData carries one streamed chunk. Events from a session other than the
// current one are stale and dropped.
type chunkData struct {
	session *Session
	text    string
}

type streamErrorData struct {
	session *Session
	err     error
}

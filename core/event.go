package core

import "time"

// EventKind tags the variant of a StreamEvent.
type EventKind string

const (
	// EventTextDelta carries an incremental piece of assistant text.
	EventTextDelta EventKind = "text_delta"
	// EventToolCallStart announces a tool call observed in the stream.
	EventToolCallStart EventKind = "tool_call_start"
	// EventToolCallComplete carries the InvocationOutcome for a started call.
	// Emitted exactly once per call id, always after its start event.
	EventToolCallComplete EventKind = "tool_call_complete"
	// EventMessageComplete carries the fully accumulated assistant text.
	EventMessageComplete EventKind = "message_complete"
	// EventStreamComplete terminates a successful turn with its metrics.
	EventStreamComplete EventKind = "stream_complete"
	// EventStreamError terminates a failed or cancelled turn.
	EventStreamError EventKind = "stream_error"
)

// ToolCallRef identifies a tool call announced mid-stream. Arguments holds the
// raw JSON argument string as reconstructed from the fragment deltas.
type ToolCallRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// StreamMetrics summarizes one turn. Carried by the StreamComplete event and
// by the finished Conversation.
type StreamMetrics struct {
	Events     int           `json:"events"`
	TextDeltas int           `json:"text_deltas"`
	ToolCalls  int           `json:"tool_calls"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// StreamEvent is an ordered application-level event reconstructed from raw
// model-stream fragments. Events are produced in strict arrival order per
// conversation turn and consumed by stream processors and the session sink.
// After emission an event is treated as immutable.
type StreamEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Text is set for TextDelta (the delta) and MessageComplete (full text).
	Text string `json:"text,omitempty"`
	// ToolCall is set for ToolCallStart and ToolCallComplete.
	ToolCall *ToolCallRef `json:"tool_call,omitempty"`
	// Outcome is set for ToolCallComplete.
	Outcome *InvocationOutcome `json:"outcome,omitempty"`
	// Metrics is set for StreamComplete.
	Metrics *StreamMetrics `json:"metrics,omitempty"`
	// ErrorKind and ErrorMessage are set for StreamError.
	ErrorKind    FailureKind `json:"error_kind,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// IsTerminal reports whether the event closes its turn.
func (e StreamEvent) IsTerminal() bool {
	return e.Kind == EventStreamComplete || e.Kind == EventStreamError
}

func newStreamEvent(kind EventKind) StreamEvent {
	return StreamEvent{ID: NewID(), Kind: kind, Timestamp: time.Now().UTC()}
}

// NewTextDeltaEvent builds a TextDelta event for one text fragment.
func NewTextDeltaEvent(text string) StreamEvent {
	e := newStreamEvent(EventTextDelta)
	e.Text = text
	return e
}

// NewToolCallStartEvent announces a tool call with its reconstructed arguments.
func NewToolCallStartEvent(call ToolCallRef) StreamEvent {
	e := newStreamEvent(EventToolCallStart)
	e.ToolCall = &call
	return e
}

// NewToolCallCompleteEvent records the terminal outcome of a started call.
func NewToolCallCompleteEvent(call ToolCallRef, outcome InvocationOutcome) StreamEvent {
	e := newStreamEvent(EventToolCallComplete)
	e.ToolCall = &call
	e.Outcome = &outcome
	return e
}

// NewMessageCompleteEvent carries the full accumulated assistant text.
func NewMessageCompleteEvent(fullText string) StreamEvent {
	e := newStreamEvent(EventMessageComplete)
	e.Text = fullText
	return e
}

// NewStreamCompleteEvent terminates a successful turn.
func NewStreamCompleteEvent(metrics StreamMetrics) StreamEvent {
	e := newStreamEvent(EventStreamComplete)
	e.Metrics = &metrics
	return e
}

// NewStreamErrorEvent terminates a failed or cancelled turn.
func NewStreamErrorEvent(kind FailureKind, message string) StreamEvent {
	e := newStreamEvent(EventStreamError)
	e.ErrorKind = kind
	e.ErrorMessage = message
	return e
}

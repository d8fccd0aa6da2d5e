package core

// FragmentKind tags the variant of a raw model-stream fragment.
type FragmentKind string

const (
	// FragmentTextDelta is an incremental piece of assistant text.
	FragmentTextDelta FragmentKind = "text_delta"
	// FragmentToolCallBegin opens a tool call (id and name known, arguments
	// may still be streaming).
	FragmentToolCallBegin FragmentKind = "tool_call_begin"
	// FragmentToolCallDelta appends a chunk of the call's JSON arguments.
	FragmentToolCallDelta FragmentKind = "tool_call_delta"
	// FragmentToolCallEnd closes a tool call; its arguments are complete and
	// the call may be dispatched.
	FragmentToolCallEnd FragmentKind = "tool_call_end"
	// FragmentMessageStop ends the upstream message normally.
	FragmentMessageStop FragmentKind = "message_stop"
	// FragmentError reports an upstream failure; the turn terminates.
	FragmentError FragmentKind = "error"
)

// Fragment is one raw chunk from an upstream model stream, already normalized
// across providers by the model adapters. The stream coordinator consumes
// fragments strictly in arrival order.
type Fragment struct {
	Kind FragmentKind `json:"kind"`

	// Text is set for TextDelta fragments.
	Text string `json:"text,omitempty"`
	// ToolCallID correlates Begin/Delta/End fragments of one call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolName is set on Begin fragments.
	ToolName string `json:"tool_name,omitempty"`
	// ArgsDelta is a chunk of the call's JSON argument string.
	ArgsDelta string `json:"args_delta,omitempty"`
	// Err is set for Error fragments.
	Err string `json:"err,omitempty"`
}

// TextFragment builds a text delta fragment.
func TextFragment(text string) Fragment {
	return Fragment{Kind: FragmentTextDelta, Text: text}
}

// ToolCallBeginFragment opens a tool call.
func ToolCallBeginFragment(id, name string) Fragment {
	return Fragment{Kind: FragmentToolCallBegin, ToolCallID: id, ToolName: name}
}

// ToolCallDeltaFragment appends an argument chunk to an open call.
func ToolCallDeltaFragment(id, argsDelta string) Fragment {
	return Fragment{Kind: FragmentToolCallDelta, ToolCallID: id, ArgsDelta: argsDelta}
}

// ToolCallEndFragment closes an open call.
func ToolCallEndFragment(id string) Fragment {
	return Fragment{Kind: FragmentToolCallEnd, ToolCallID: id}
}

// MessageStopFragment ends the message normally.
func MessageStopFragment() Fragment { return Fragment{Kind: FragmentMessageStop} }

// ErrorFragment reports an upstream failure.
func ErrorFragment(message string) Fragment {
	return Fragment{Kind: FragmentError, Err: message}
}

package testutil

import (
	"github.com/zeddq/agentcore/core"
)

// FragmentScript provides a fluent helper for constructing fragment
// sequences in tests. Example:
//
//	frags := NewFragmentScript().Text("Let me check").
//		ToolCall("call-1", "echo", `{"msg":"hi"}`).
//		Text(" done").Stop().Build()
//
// Chain only the parts you need.
type FragmentScript struct {
	fragments []core.Fragment
}

// NewFragmentScript creates an empty script builder.
func NewFragmentScript() *FragmentScript { return &FragmentScript{} }

// Text appends a text delta fragment (chainable).
func (s *FragmentScript) Text(t string) *FragmentScript {
	s.fragments = append(s.fragments, core.TextFragment(t))
	return s
}

// ToolCall appends a begin/delta/end triple for a complete tool call with
// its arguments delivered in one delta (chainable).
func (s *FragmentScript) ToolCall(id, name, args string) *FragmentScript {
	s.fragments = append(s.fragments, core.ToolCallBeginFragment(id, name))
	if args != "" {
		s.fragments = append(s.fragments, core.ToolCallDeltaFragment(id, args))
	}
	s.fragments = append(s.fragments, core.ToolCallEndFragment(id))
	return s
}

// ToolCallChunked appends a tool call whose argument JSON arrives split
// across several delta fragments (chainable).
func (s *FragmentScript) ToolCallChunked(id, name string, argChunks ...string) *FragmentScript {
	s.fragments = append(s.fragments, core.ToolCallBeginFragment(id, name))
	for _, chunk := range argChunks {
		s.fragments = append(s.fragments, core.ToolCallDeltaFragment(id, chunk))
	}
	s.fragments = append(s.fragments, core.ToolCallEndFragment(id))
	return s
}

// Begin appends only the opening fragment of a tool call (chainable).
// Useful for malformed or truncated stream scenarios.
func (s *FragmentScript) Begin(id, name string) *FragmentScript {
	s.fragments = append(s.fragments, core.ToolCallBeginFragment(id, name))
	return s
}

// Delta appends a raw argument delta fragment (chainable).
func (s *FragmentScript) Delta(id, chunk string) *FragmentScript {
	s.fragments = append(s.fragments, core.ToolCallDeltaFragment(id, chunk))
	return s
}

// End appends a tool call end fragment (chainable).
func (s *FragmentScript) End(id string) *FragmentScript {
	s.fragments = append(s.fragments, core.ToolCallEndFragment(id))
	return s
}

// Stop appends a message stop fragment (chainable).
func (s *FragmentScript) Stop() *FragmentScript {
	s.fragments = append(s.fragments, core.MessageStopFragment())
	return s
}

// Error appends a provider error fragment (chainable).
func (s *FragmentScript) Error(msg string) *FragmentScript {
	s.fragments = append(s.fragments, core.ErrorFragment(msg))
	return s
}

// Build returns the accumulated fragment slice.
func (s *FragmentScript) Build() []core.Fragment { return s.fragments }

// Channel returns a buffered channel pre-loaded with the script, already
// closed, ready to feed a coordinator.
func (s *FragmentScript) Channel() <-chan core.Fragment {
	ch := make(chan core.Fragment, len(s.fragments))
	for _, f := range s.fragments {
		ch <- f
	}
	close(ch)
	return ch
}

// Package model defines the FragmentSource abstraction that feeds the
// stream coordinator, along with the normalized request types shared by
// all provider adapters. Adapters translate provider wire formats into
// core.Fragment values so downstream code never branches per vendor.
package model

import (
	"context"
	"fmt"

	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/tool"
)

// Message roles understood by provider adapters.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolResult carries the outcome of an earlier tool call back to the model.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Message is one turn of conversation history in provider-neutral form.
// Assistant messages may carry completed tool calls; tool messages carry
// the matching results.
type Message struct {
	Role      string             `json:"role"`
	Text      string             `json:"text,omitempty"`
	ToolCalls []core.ToolCallRef `json:"tool_calls,omitempty"`
	Results   []ToolResult       `json:"results,omitempty"`
}

// Request captures the normalized model input for a single turn.
type Request struct {
	Instructions string            `json:"instructions,omitempty"`
	Messages     []Message         `json:"messages"`
	Tools        []tool.Definition `json:"tools,omitempty"`
}

// Info contains metadata about a fragment source implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// FragmentSource produces the raw fragment stream for one model turn.
// The fragment channel is closed when the turn ends; a failure that
// aborts the turn is reported on the error channel (also closed).
type FragmentSource interface {
	Stream(ctx context.Context, req Request) (<-chan core.Fragment, <-chan error)

	// Info returns information about the source implementation.
	Info() Info
}

// LastUserText returns the text of the most recent user message, or "".
func LastUserText(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return req.Messages[i].Text
		}
	}
	return ""
}

// MockSource is a lightweight in-memory FragmentSource useful for tests
// and examples. Scripts are keyed by the latest user message text.
type MockSource struct {
	info    Info
	scripts map[string][]core.Fragment
}

// NewMockSource constructs a MockSource with tool support enabled.
func NewMockSource(name string) *MockSource {
	return &MockSource{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: true,
		},
		scripts: make(map[string][]core.Fragment),
	}
}

// AddScript registers an exact fragment sequence for an input prompt.
// A trailing message_stop fragment is appended if the script lacks one.
func (m *MockSource) AddScript(prompt string, fragments ...core.Fragment) {
	if n := len(fragments); n == 0 || fragments[n-1].Kind != core.FragmentMessageStop {
		fragments = append(fragments, core.MessageStopFragment())
	}
	m.scripts[prompt] = fragments
}

// AddResponse registers a plain text completion, streamed rune by rune.
func (m *MockSource) AddResponse(prompt, response string) {
	fragments := make([]core.Fragment, 0, len(response)+1)
	for _, r := range response {
		fragments = append(fragments, core.TextFragment(string(r)))
	}
	m.scripts[prompt] = append(fragments, core.MessageStopFragment())
}

// Stream implements FragmentSource; replays the script for the latest
// user message, or a generic echo when no script matches.
func (m *MockSource) Stream(ctx context.Context, req Request) (<-chan core.Fragment, <-chan error) {
	out := make(chan core.Fragment, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		prompt := LastUserText(req)
		script, ok := m.scripts[prompt]
		if !ok {
			script = []core.Fragment{
				core.TextFragment(fmt.Sprintf("Mock response to: %s", prompt)),
				core.MessageStopFragment(),
			}
		}
		for _, f := range script {
			if ctx.Err() != nil {
				errCh <- ctx.Err()
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- f:
			}
		}
	}()

	return out, errCh
}

// Info implements FragmentSource.
func (m *MockSource) Info() Info { return m.info }

package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/tool"
)

// EchoDescriptor returns a descriptor for an "echo" tool with a single
// required string parameter "msg" whose handler returns the message.
func EchoDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "echo",
		Description: "Returns the provided message unchanged.",
		Category:    tool.CategoryGeneral,
		Parameters: []tool.ParameterSpec{
			{Name: "msg", Type: tool.TypeString, Description: "Message to echo back.", Required: true},
		},
		Handler: tool.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
			return args["msg"], nil
		}),
	}
}

// CountingHandler wraps a handler and counts invocations.
type CountingHandler struct {
	calls   atomic.Int64
	handler tool.Handler
}

// NewCountingHandler wraps h; a nil h counts calls and returns nil.
func NewCountingHandler(h tool.Handler) *CountingHandler {
	return &CountingHandler{handler: h}
}

// Invoke implements tool.Handler.
func (c *CountingHandler) Invoke(ctx context.Context, args map[string]any) (any, error) {
	c.calls.Add(1)
	if c.handler == nil {
		return nil, nil
	}
	return c.handler.Invoke(ctx, args)
}

// Calls reports how many times Invoke ran.
func (c *CountingHandler) Calls() int { return int(c.calls.Load()) }

// FlakyHandler fails with a transient error for the first failures calls,
// then succeeds with result.
type FlakyHandler struct {
	calls    atomic.Int64
	failures int64
	result   any
	err      error
}

// NewFlakyHandler builds a handler that returns err for the first failures
// invocations and result afterwards. Wrap err with core.Transient to make
// the failures retryable.
func NewFlakyHandler(failures int, result any, err error) *FlakyHandler {
	return &FlakyHandler{failures: int64(failures), result: result, err: err}
}

// Invoke implements tool.Handler.
func (f *FlakyHandler) Invoke(ctx context.Context, args map[string]any) (any, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, f.err
	}
	return f.result, nil
}

// Calls reports how many times Invoke ran.
func (f *FlakyHandler) Calls() int { return int(f.calls.Load()) }

// BlockingHandler blocks until its context is cancelled or Release is
// called, then returns result.
type BlockingHandler struct {
	release chan struct{}
	result  any
}

// NewBlockingHandler constructs a handler parked until released.
func NewBlockingHandler(result any) *BlockingHandler {
	return &BlockingHandler{release: make(chan struct{}), result: result}
}

// Invoke implements tool.Handler.
func (b *BlockingHandler) Invoke(ctx context.Context, args map[string]any) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return b.result, nil
	}
}

// Release unparks all pending invocations.
func (b *BlockingHandler) Release() { close(b.release) }

// ScriptedInvoker implements the coordinator's invoker interface with a
// fixed outcome per tool name, recording every request it receives.
type ScriptedInvoker struct {
	mu       sync.Mutex
	requests []core.InvocationRequest
	outcomes map[string]core.InvocationOutcome
}

// NewScriptedInvoker builds an invoker returning Success("ok") for any tool
// without an explicit outcome.
func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{outcomes: make(map[string]core.InvocationOutcome)}
}

// SetOutcome fixes the outcome returned for a tool name.
func (s *ScriptedInvoker) SetOutcome(toolName string, out core.InvocationOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[toolName] = out
}

// Invoke records the request and replays the scripted outcome.
func (s *ScriptedInvoker) Invoke(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	out, ok := s.outcomes[req.ToolName]
	s.mu.Unlock()
	if !ok {
		return core.Success("ok")
	}
	return out
}

// Requests returns a copy of all recorded invocation requests.
func (s *ScriptedInvoker) Requests() []core.InvocationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.InvocationRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// invokerFunc adapts a func to ToolInvoker for test fixtures.
type invokerFunc func(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome

func (f invokerFunc) Invoke(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome {
	return f(ctx, req)
}

func collect(t *testing.T, events <-chan core.StreamEvent) []core.StreamEvent {
	t.Helper()
	var out []core.StreamEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out collecting events, got %d so far", len(out))
		}
	}
}

func kinds(events []core.StreamEvent) []core.EventKind {
	out := make([]core.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestCoordinator_TextOnlyTurn(t *testing.T) {
	c := New(testutil.NewScriptedInvoker())
	frags := testutil.NewFragmentScript().Text("Hello").Text(" world").Stop().Channel()

	events := collect(t, c.Consume(context.Background(), frags))
	require.Equal(t, []core.EventKind{
		core.EventTextDelta,
		core.EventTextDelta,
		core.EventMessageComplete,
		core.EventStreamComplete,
	}, kinds(events))
	assert.Equal(t, "Hello world", events[2].Text)

	metrics := events[3].Metrics
	require.NotNil(t, metrics)
	assert.Equal(t, 2, metrics.TextDeltas)
	assert.Equal(t, 0, metrics.ToolCalls)
	assert.Equal(t, 3, metrics.Events)
}

func TestCoordinator_OrderPreservedAroundToolCall(t *testing.T) {
	// The invoker is slow enough that the trailing text fragment is handled
	// before the tool completion arrives.
	invoker := invokerFunc(func(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome {
		time.Sleep(30 * time.Millisecond)
		return core.Success("hi")
	})
	c := New(invoker)
	frags := testutil.NewFragmentScript().
		Text("Let me check").
		ToolCall("call-1", "echo", `{"msg":"hi"}`).
		Text(" done").
		Stop().
		Channel()

	events := collect(t, c.Consume(context.Background(), frags))
	require.Equal(t, []core.EventKind{
		core.EventTextDelta,
		core.EventToolCallStart,
		core.EventTextDelta,
		core.EventToolCallComplete,
		core.EventMessageComplete,
		core.EventStreamComplete,
	}, kinds(events))

	start, complete := events[1], events[3]
	assert.Equal(t, "call-1", start.ToolCall.ID)
	assert.Equal(t, `{"msg":"hi"}`, start.ToolCall.Arguments)
	require.NotNil(t, complete.Outcome)
	assert.Equal(t, "hi", complete.Outcome.Result)
	assert.Equal(t, "Let me check done", events[4].Text)
}

func TestCoordinator_ChunkedArgumentsReassembled(t *testing.T) {
	invoker := testutil.NewScriptedInvoker()
	c := New(invoker)
	frags := testutil.NewFragmentScript().
		ToolCallChunked("call-7", "echo", `{"msg"`, `:"split"`, `}`).
		Stop().
		Channel()

	collect(t, c.Consume(context.Background(), frags))

	reqs := invoker.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "echo", reqs[0].ToolName)
	assert.Equal(t, "call-7", reqs[0].CorrelationID)
	assert.Equal(t, map[string]any{"msg": "split"}, reqs[0].Arguments)
}

func TestCoordinator_EmptyArgumentsBecomeEmptyObject(t *testing.T) {
	invoker := testutil.NewScriptedInvoker()
	c := New(invoker)
	frags := testutil.NewFragmentScript().
		Begin("call-1", "list_tools").End("call-1").
		Stop().
		Channel()

	collect(t, c.Consume(context.Background(), frags))

	reqs := invoker.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, map[string]any{}, reqs[0].Arguments)
}

func TestCoordinator_MalformedArgumentsNeverReachExecutor(t *testing.T) {
	invoker := testutil.NewScriptedInvoker()
	c := New(invoker)
	frags := testutil.NewFragmentScript().
		ToolCall("call-1", "echo", `{"msg": truncated`).
		Stop().
		Channel()

	events := collect(t, c.Consume(context.Background(), frags))

	assert.Empty(t, invoker.Requests())
	var complete *core.StreamEvent
	for i := range events {
		if events[i].Kind == core.EventToolCallComplete {
			complete = &events[i]
		}
	}
	require.NotNil(t, complete)
	assert.Equal(t, core.FailureValidation, complete.Outcome.FailureKind)
	// The turn still ends normally; one bad call does not kill the stream.
	assert.Equal(t, core.EventStreamComplete, events[len(events)-1].Kind)
}

func TestCoordinator_ErrorFragmentTerminatesTurn(t *testing.T) {
	c := New(testutil.NewScriptedInvoker())
	frags := testutil.NewFragmentScript().
		Text("partial").
		Error("provider disconnect").
		Channel()

	events := collect(t, c.Consume(context.Background(), frags))
	last := events[len(events)-1]
	assert.Equal(t, core.EventStreamError, last.Kind)
	assert.Equal(t, core.FailureInternal, last.ErrorKind)
	assert.Contains(t, last.ErrorMessage, "provider disconnect")
	for _, ev := range events {
		assert.NotEqual(t, core.EventMessageComplete, ev.Kind)
	}
}

func TestCoordinator_CancellationClosesStream(t *testing.T) {
	c := New(testutil.NewScriptedInvoker())
	frags := make(chan core.Fragment) // never fed, never closed

	ctx, cancel := context.WithCancel(context.Background())
	events := c.Consume(ctx, frags)
	cancel()

	got := collect(t, events)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, core.EventStreamError, last.Kind)
	assert.Equal(t, core.FailureCancelled, last.ErrorKind)
}

func TestCoordinator_ConcurrentToolDispatch(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	release := make(chan struct{})
	invoker := invokerFunc(func(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		<-release
		mu.Lock()
		inFlight--
		mu.Unlock()
		return core.Success(req.ToolName)
	})

	c := New(invoker, func(o *Options) { o.MaxConcurrentTools = 2 })
	frags := testutil.NewFragmentScript().
		ToolCall("c1", "alpha", `{}`).
		ToolCall("c2", "beta", `{}`).
		Stop().
		Channel()

	events := c.Consume(context.Background(), frags)
	// Both calls must be in flight before either is released.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return inFlight == 2
	}, 2*time.Second, time.Millisecond)
	close(release)

	got := collect(t, events)
	completes := 0
	for _, ev := range got {
		if ev.Kind == core.EventToolCallComplete {
			completes++
		}
	}
	assert.Equal(t, 2, completes)
	mu.Lock()
	assert.Equal(t, 2, peak)
	mu.Unlock()
}

func TestCoordinator_ProcessorTransformAndSuppress(t *testing.T) {
	c := New(testutil.NewScriptedInvoker())
	frags := testutil.NewFragmentScript().Text("secret").Text(" stays").Stop().Channel()

	events := collect(t, c.Consume(context.Background(), frags, dropDeltas{}))
	// Text deltas were suppressed; aggregation still saw them.
	require.Equal(t, []core.EventKind{
		core.EventMessageComplete,
		core.EventStreamComplete,
	}, kinds(events))
	assert.Equal(t, "secret stays", events[0].Text)
	// Suppressed events do not count toward the emitted total.
	assert.Equal(t, 1, events[1].Metrics.Events)
}

// dropDeltas suppresses every text delta event.
type dropDeltas struct{}

func (dropDeltas) Name() string { return "drop_deltas" }
func (dropDeltas) OnEvent(ev core.StreamEvent) (core.StreamEvent, bool) {
	return ev, ev.Kind != core.EventTextDelta
}

// stallingProcessor blocks its first OnEvent until released.
type stallingProcessor struct {
	once    sync.Once
	release chan struct{}
	seen    chan core.EventKind
}

func (p *stallingProcessor) Name() string { return "staller" }
func (p *stallingProcessor) OnEvent(ev core.StreamEvent) (core.StreamEvent, bool) {
	p.once.Do(func() { <-p.release })
	p.seen <- ev.Kind
	return ev, true
}

func TestCoordinator_StalledProcessorDropped(t *testing.T) {
	staller := &stallingProcessor{release: make(chan struct{}), seen: make(chan core.EventKind, 16)}
	defer func() {
		close(staller.release)
		// Let the abandoned OnEvent goroutine finish before goleak checks.
		time.Sleep(20 * time.Millisecond)
	}()

	c := New(testutil.NewScriptedInvoker(), func(o *Options) { o.ProcessorTimeout = 10 * time.Millisecond })
	frags := testutil.NewFragmentScript().Text("a").Text("b").Stop().Channel()

	events := collect(t, c.Consume(context.Background(), frags))
	// The stream finished despite the stalled processor.
	assert.Equal(t, core.EventStreamComplete, events[len(events)-1].Kind)
	// The dropped processor saw at most its first (stalled) event.
	assert.LessOrEqual(t, len(staller.seen), 1)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "open", PhaseOpen.String())
	assert.Equal(t, "awaiting_tool", PhaseAwaitingTool.String())
	assert.Equal(t, "closed", PhaseClosed.String())
}

package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/logging"
)

// ToolInvoker dispatches one tool call to a terminal outcome. Implemented by
// executor.Executor.
type ToolInvoker interface {
	Invoke(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome
}

// Phase is the coordinator's per-turn state.
type Phase int

const (
	// PhaseOpen: fragments are being received.
	PhaseOpen Phase = iota
	// PhaseAwaitingTool: at least one announced tool call is unresolved;
	// text deltas may still arrive and keep their relative order.
	PhaseAwaitingTool
	// PhaseClosed: a terminal event has been emitted.
	PhaseClosed
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseAwaitingTool:
		return "awaiting_tool"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a Coordinator.
type Options struct {
	// MaxConcurrentTools bounds tool calls dispatched in parallel within one
	// turn. Default 4.
	MaxConcurrentTools int
	// ToolTimeout is applied per dispatched invocation. Zero leaves the
	// turn context as the only bound.
	ToolTimeout time.Duration
	// ProcessorTimeout is the stall guard for a single OnEvent call; a
	// processor exceeding it is dropped for the rest of the stream.
	// Default 5s.
	ProcessorTimeout time.Duration
	// EventBuffer sizes the emitted event channel. Default 100.
	EventBuffer int
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Coordinator turns raw fragment sequences into ordered stream events,
// dispatching mid-stream tool calls through the executor. It is stateless
// across turns and safe for concurrent Consume calls.
type Coordinator struct {
	invoker ToolInvoker
	opts    Options
}

// New constructs a Coordinator on top of a ToolInvoker.
func New(invoker ToolInvoker, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		MaxConcurrentTools: 4,
		ProcessorTimeout:   5 * time.Second,
		EventBuffer:        100,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentTools < 1 {
		opts.MaxConcurrentTools = 1
	}
	if opts.EventBuffer < 1 {
		opts.EventBuffer = 1
	}
	return &Coordinator{invoker: invoker, opts: opts}
}

// Consume starts one turn over the fragment sequence and returns the ordered
// event channel, closed after the terminal event. Processors observe every
// event in registration order before it is delivered. Cancelling ctx closes
// the turn with StreamError(cancelled); in-flight tool invocations that honor
// cancellation stop early, while uncancellable handlers finish detached in
// the background and their results are discarded for this turn.
func (c *Coordinator) Consume(ctx context.Context, fragments <-chan core.Fragment, processors ...Processor) <-chan core.StreamEvent {
	out := make(chan core.StreamEvent, c.opts.EventBuffer)
	r := &turn{
		coord:   c,
		ctx:     ctx,
		out:     out,
		procs:   processors,
		dropped: make([]bool, len(processors)),
		done:    make(chan struct{}),
		open:    make(map[string]*pendingCall),
		phase:   PhaseOpen,
		started: time.Now().UTC(),
	}
	go r.run(fragments)
	return out
}

// pendingCall accumulates argument deltas for an announced tool call.
type pendingCall struct {
	ref  core.ToolCallRef
	args strings.Builder
}

// completion carries a resolved tool call back into the turn loop.
type completion struct {
	ref     core.ToolCallRef
	outcome core.InvocationOutcome
}

// turn is the single-goroutine state for one Consume call. Only run() touches
// its fields; dispatch goroutines communicate exclusively through channels.
type turn struct {
	coord   *Coordinator
	ctx     context.Context
	out     chan core.StreamEvent
	procs   []Processor
	dropped []bool
	// done is closed when the turn loop exits so detached dispatch
	// goroutines never block on the completions channel.
	done chan struct{}

	open     map[string]*pendingCall
	phase    Phase
	started  time.Time
	text     strings.Builder
	events   int
	deltas   int
	calls    int
	inFlight int
}

func (t *turn) run(fragments <-chan core.Fragment) {
	defer close(t.out)
	defer close(t.done)

	logger := t.coord.opts.Logger
	completions := make(chan completion)
	sem := make(chan struct{}, t.coord.opts.MaxConcurrentTools)

	for fragments != nil || t.inFlight > 0 {
		select {
		case frag, ok := <-fragments:
			if !ok {
				fragments = nil
				if t.inFlight > 0 {
					t.setPhase(PhaseAwaitingTool)
				}
				continue
			}
			if terminal := t.handleFragment(frag, completions, sem); terminal {
				return
			}

		case comp := <-completions:
			t.inFlight--
			t.calls++
			t.emit(core.NewToolCallCompleteEvent(comp.ref, comp.outcome))
			if t.inFlight == 0 && fragments != nil {
				t.setPhase(PhaseOpen)
			}

		case <-t.ctx.Done():
			logger.Warn("stream.turn.cancelled", "in_flight", t.inFlight, "error", t.ctx.Err().Error())
			t.emit(core.NewStreamErrorEvent(core.FailureCancelled, t.ctx.Err().Error()))
			t.setPhase(PhaseClosed)
			return
		}
	}

	t.emit(core.NewMessageCompleteEvent(t.text.String()))
	t.emit(core.NewStreamCompleteEvent(core.StreamMetrics{
		Events:     t.events,
		TextDeltas: t.deltas,
		ToolCalls:  t.calls,
		StartedAt:  t.started,
		Duration:   time.Since(t.started),
	}))
	t.setPhase(PhaseClosed)
}

// handleFragment applies one fragment to the turn state. Returns true when
// the fragment terminated the turn.
func (t *turn) handleFragment(frag core.Fragment, completions chan<- completion, sem chan struct{}) bool {
	logger := t.coord.opts.Logger
	switch frag.Kind {
	case core.FragmentTextDelta:
		t.deltas++
		t.text.WriteString(frag.Text)
		t.emit(core.NewTextDeltaEvent(frag.Text))

	case core.FragmentToolCallBegin:
		t.open[frag.ToolCallID] = &pendingCall{
			ref: core.ToolCallRef{ID: frag.ToolCallID, Name: frag.ToolName},
		}

	case core.FragmentToolCallDelta:
		if pc, ok := t.open[frag.ToolCallID]; ok {
			pc.args.WriteString(frag.ArgsDelta)
		} else {
			logger.Warn("stream.fragment.orphan_delta", "tool_call_id", frag.ToolCallID)
		}

	case core.FragmentToolCallEnd:
		pc, ok := t.open[frag.ToolCallID]
		if !ok {
			logger.Warn("stream.fragment.orphan_end", "tool_call_id", frag.ToolCallID)
			return false
		}
		delete(t.open, frag.ToolCallID)
		pc.ref.Arguments = pc.args.String()
		t.emit(core.NewToolCallStartEvent(pc.ref))
		t.dispatch(pc.ref, completions, sem)
		t.setPhase(PhaseAwaitingTool)

	case core.FragmentMessageStop:
		// The fragment channel closing is the authoritative end of input;
		// nothing to do beyond noting the stop.
		logger.Debug("stream.fragment.message_stop")

	case core.FragmentError:
		logger.Error("stream.fragment.error", "error", frag.Err)
		t.emit(core.NewStreamErrorEvent(core.FailureInternal, frag.Err))
		t.setPhase(PhaseClosed)
		return true
	}
	return false
}

// dispatch resolves one announced call concurrently. Argument JSON that does
// not parse never reaches the executor and completes as a validation failure.
func (t *turn) dispatch(ref core.ToolCallRef, completions chan<- completion, sem chan struct{}) {
	t.inFlight++

	args, err := parseArguments(ref.Arguments)
	if err != nil {
		go t.deliver(completions, completion{
			ref:     ref,
			outcome: core.Failuref(core.FailureValidation, "tool call %s: arguments are not valid JSON: %v", ref.ID, err),
		})
		return
	}

	go func() {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-t.done:
			return
		}
		outcome := t.coord.invoker.Invoke(t.ctx, core.InvocationRequest{
			ToolName:      ref.Name,
			Arguments:     args,
			CorrelationID: ref.ID,
			Timeout:       t.coord.opts.ToolTimeout,
		})
		t.deliver(completions, completion{ref: ref, outcome: outcome})
	}()
}

// deliver hands a completion to the turn loop, or discards it when the turn
// already closed (detached uncancellable handlers land here).
func (t *turn) deliver(completions chan<- completion, comp completion) {
	select {
	case completions <- comp:
	case <-t.done:
		t.coord.opts.Logger.Debug("stream.completion.discarded", "tool_call_id", comp.ref.ID, "outcome", string(comp.outcome.Kind))
	}
}

// emit feeds the event through the processors then onto the output channel.
func (t *turn) emit(ev core.StreamEvent) {
	ev, keep := t.applyProcessors(ev)
	if !keep {
		return
	}
	t.events++
	select {
	case t.out <- ev:
	case <-t.ctx.Done():
		// Consumer is gone with the turn; terminal delivery is best effort.
		select {
		case t.out <- ev:
		default:
		}
	}
}

func (t *turn) applyProcessors(ev core.StreamEvent) (core.StreamEvent, bool) {
	for i, p := range t.procs {
		if t.dropped[i] {
			continue
		}
		res, keep, stalled := t.invokeProcessor(p, ev)
		if stalled {
			t.dropped[i] = true
			t.coord.opts.Logger.Error("stream.processor.stalled", "processor", p.Name(), "timeout", t.coord.opts.ProcessorTimeout.String())
			continue
		}
		if !keep {
			return ev, false
		}
		ev = res
	}
	return ev, true
}

// invokeProcessor guards one OnEvent call with the stall timeout. A stalled
// processor's goroutine is abandoned; the stream keeps moving without it.
func (t *turn) invokeProcessor(p Processor, ev core.StreamEvent) (core.StreamEvent, bool, bool) {
	if t.coord.opts.ProcessorTimeout <= 0 {
		res, keep := p.OnEvent(ev)
		return res, keep, false
	}
	type procResult struct {
		ev   core.StreamEvent
		keep bool
	}
	resCh := make(chan procResult, 1)
	go func() {
		res, keep := p.OnEvent(ev)
		resCh <- procResult{ev: res, keep: keep}
	}()
	timer := time.NewTimer(t.coord.opts.ProcessorTimeout)
	defer timer.Stop()
	select {
	case r := <-resCh:
		return r.ev, r.keep, false
	case <-timer.C:
		return ev, true, true
	}
}

func (t *turn) setPhase(p Phase) {
	if t.phase == p {
		return
	}
	t.coord.opts.Logger.Debug("stream.phase", "from", t.phase.String(), "to", p.String())
	t.phase = p
}

func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

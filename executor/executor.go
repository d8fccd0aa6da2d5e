package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/zeddq/agentcore/breaker"
	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/logging"
	"github.com/zeddq/agentcore/metrics"
	"github.com/zeddq/agentcore/tool"
)

// GateConfig sizes the bounded concurrency gate so a slow external dependency
// cannot exhaust the process's concurrency budget.
type GateConfig struct {
	// MaxConcurrent bounds concurrently executing handlers across all tools.
	// Zero or negative disables the global gate. Default 32.
	MaxConcurrent int
	// PerTool overrides the bound for named tools with a dedicated gate.
	PerTool map[string]int
	// WaitTimeout bounds how long an invocation waits for a gate slot before
	// failing with Overloaded. Default 5s.
	WaitTimeout time.Duration
}

// Options configures an Executor.
type Options struct {
	// Breakers supplies the per-tool circuit breakers. When nil the executor
	// builds its own set with default thresholds, reporting transitions to
	// Logger and Metrics.
	Breakers *breaker.Set
	// BreakerConfig tunes the default thresholds of the internally built set.
	// Ignored when Breakers is provided.
	BreakerConfig breaker.Config
	// PerToolBreakers overrides breaker thresholds per tool (e.g. a longer
	// recovery timeout for an external calendar API). Ignored when Breakers
	// is provided.
	PerToolBreakers map[string]breaker.Config
	// Retry bounds transient-failure retries.
	Retry RetryPolicy
	// Gate bounds handler concurrency.
	Gate GateConfig
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// Metrics defaults to metrics.NoOp.
	Metrics metrics.Collector
}

// Executor orchestrates registry lookup, validation, circuit breaking, the
// middleware chain, concurrency limiting and retry for single tool calls.
// It is safe for concurrent use.
type Executor struct {
	registry *tool.Registry
	breakers *breaker.Set
	retry    RetryPolicy
	gateCfg  GateConfig
	logger   logging.Logger
	metrics  metrics.Collector

	globalGate chan struct{}
	gateMu     sync.Mutex
	toolGates  map[string]chan struct{}

	mwMu        sync.RWMutex
	middlewares []Middleware
}

// New constructs an Executor bound to a registry.
func New(registry *tool.Registry, optFns ...func(o *Options)) *Executor {
	opts := Options{
		BreakerConfig: breaker.DefaultConfig(),
		Retry:         DefaultRetryPolicy(),
		Gate:          GateConfig{MaxConcurrent: 32, WaitTimeout: 5 * time.Second},
		Logger:        logging.NoOpLogger{},
		Metrics:       metrics.NoOp{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Executor{
		registry:  registry,
		retry:     opts.Retry,
		gateCfg:   opts.Gate,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		toolGates: make(map[string]chan struct{}),
	}
	if e.gateCfg.WaitTimeout <= 0 {
		e.gateCfg.WaitTimeout = 5 * time.Second
	}
	if e.gateCfg.MaxConcurrent > 0 {
		e.globalGate = make(chan struct{}, e.gateCfg.MaxConcurrent)
	}

	e.breakers = opts.Breakers
	if e.breakers == nil {
		e.breakers = breaker.NewSet(func(o *breaker.SetOptions) {
			o.Default = opts.BreakerConfig
			o.PerTool = opts.PerToolBreakers
			o.OnTransition = e.onBreakerTransition
		})
	}
	return e
}

// Use appends middlewares in registration order. The last-registered
// middleware wraps outermost (see Middleware).
func (e *Executor) Use(middlewares ...Middleware) {
	e.mwMu.Lock()
	defer e.mwMu.Unlock()
	e.middlewares = append(e.middlewares, middlewares...)
}

// Registry returns the backing tool registry.
func (e *Executor) Registry() *tool.Registry { return e.registry }

// Health returns the per-tool breaker snapshots for the metrics surface.
func (e *Executor) Health() map[string]breaker.Stats { return e.breakers.Snapshots() }

// ResetBreaker is the explicit admin action that closes a tool's circuit.
func (e *Executor) ResetBreaker(toolName string) { e.breakers.Reset(toolName) }

// Invoke runs one tool call to a terminal outcome. Metrics are recorded on
// every path; the circuit breaker is updated only on outcomes that say
// something about the tool's health (success, exhausted/internal failure,
// timeout), never on caller errors or fast-fail rejections.
func (e *Executor) Invoke(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome {
	if req.CorrelationID == "" {
		req.CorrelationID = core.NewID()
	}
	start := time.Now()
	outcome := e.invoke(ctx, req)
	outcome.Latency = time.Since(start)

	e.metrics.RecordInvocation(req.ToolName, outcome.Kind, outcome.FailureKind, outcome.Latency)
	e.logger.Info("executor.invoke.done",
		"tool", req.ToolName,
		"correlation_id", req.CorrelationID,
		"outcome", string(outcome.Kind),
		"failure_kind", string(outcome.FailureKind),
		"attempts", outcome.Attempts,
		"duration_ms", outcome.Latency.Milliseconds(),
	)
	return outcome
}

func (e *Executor) invoke(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome {
	// 1. Resolve the descriptor; unknown tools fail this call only.
	desc, err := e.registry.Lookup(req.ToolName)
	if err != nil {
		return core.Failuref(core.FailureToolNotFound, "tool %q is not registered", req.ToolName)
	}

	// 2. Validate arguments before any breaker or gate interaction.
	if err := e.registry.ValidateArguments(req.ToolName, req.Arguments); err != nil {
		return core.Failure(core.FailureValidation, err.Error())
	}

	// 3. Breaker admission; the open-circuit path must stay fast.
	br := e.breakers.Get(req.ToolName)
	if !br.Allow() {
		return core.CircuitOpen(req.ToolName)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	// 5. Bounded concurrency gate, released unconditionally.
	release, err := e.acquireGate(ctx, req.ToolName)
	if err != nil {
		br.Cancel()
		if errors.Is(err, errGateSaturated) {
			return core.Failuref(core.FailureOverloaded, "concurrency gate for %q saturated after %s", req.ToolName, e.gateCfg.WaitTimeout)
		}
		return e.cancellationOutcome(ctx, req, 0, err)
	}
	defer release()

	// 4+6. Middleware chain around the handler, retried per policy.
	e.mwMu.RLock()
	invoker := chain(e.handlerInvoker(), e.middlewares)
	e.mwMu.RUnlock()

	inv := &Invocation{Descriptor: desc, Arguments: req.Arguments, CorrelationID: req.CorrelationID}
	handlerStart := time.Now()
	var lastErr error
	for attempt := 0; attempt < e.retry.attempts(); attempt++ {
		if attempt > 0 {
			delay := e.retry.Backoff(attempt - 1)
			e.logger.Debug("executor.retry.backoff", "tool", req.ToolName, "attempt", attempt, "delay_ms", delay.Milliseconds())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				br.Cancel()
				return e.cancellationOutcome(ctx, req, attempt, ctx.Err())
			}
		}

		inv.Attempt = attempt
		result, err := invoker(ctx, inv)
		if err == nil {
			br.RecordSuccess(time.Since(handlerStart))
			out := core.Success(result)
			out.Attempts = attempt + 1
			return out
		}
		lastErr = err

		if ctx.Err() != nil {
			// The handler lost a race with the deadline or cancellation.
			elapsed := time.Since(handlerStart)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				br.RecordFailure(elapsed)
				out := core.Timeout(fmt.Sprintf("tool %q timed out after %d attempt(s): %v", req.ToolName, attempt+1, err))
				out.Attempts = attempt + 1
				return out
			}
			br.Cancel()
			out := core.Failuref(core.FailureCancelled, "invocation of %q cancelled: %v", req.ToolName, err)
			out.Attempts = attempt + 1
			return out
		}

		if !core.IsTransient(err) {
			br.RecordFailure(time.Since(handlerStart))
			out := core.Failuref(core.FailureInternal, "tool %q failed: %v", req.ToolName, err)
			out.Attempts = attempt + 1
			return out
		}
	}

	// Transient failures persisted through the whole budget.
	br.RecordFailure(time.Since(handlerStart))
	out := core.Failuref(core.FailureExhausted, "tool %q exhausted %d attempt(s): %v", req.ToolName, e.retry.attempts(), lastErr)
	out.Attempts = e.retry.attempts()
	return out
}

// handlerInvoker is the innermost link of the middleware chain: the actual
// handler call with panic containment. A recovered panic is a terminal
// internal failure, never retried.
func (e *Executor) handlerInvoker() Invoker {
	return func(ctx context.Context, inv *Invocation) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("executor.handler.panic", "tool", inv.Descriptor.Name, "recover", fmt.Sprint(r))
				result = nil
				err = &panicErr{val: r, stack: debug.Stack()}
			}
		}()
		return inv.Descriptor.Handler.Invoke(ctx, inv.Arguments)
	}
}

func (e *Executor) cancellationOutcome(ctx context.Context, req core.InvocationRequest, attempts int, cause error) core.InvocationOutcome {
	var out core.InvocationOutcome
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out = core.Timeout(fmt.Sprintf("tool %q timed out: %v", req.ToolName, cause))
	} else {
		out = core.Failuref(core.FailureCancelled, "invocation of %q cancelled: %v", req.ToolName, cause)
	}
	out.Attempts = attempts
	return out
}

var errGateSaturated = errors.New("concurrency gate saturated")

// acquireGate takes a slot from the tool's gate (or the global one) and
// returns its release func. Waiting is bounded by GateConfig.WaitTimeout.
func (e *Executor) acquireGate(ctx context.Context, toolName string) (func(), error) {
	gate := e.gateFor(toolName)
	if gate == nil {
		return func() {}, nil
	}
	timer := time.NewTimer(e.gateCfg.WaitTimeout)
	defer timer.Stop()
	select {
	case gate <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-gate }) }, nil
	case <-timer.C:
		return nil, errGateSaturated
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Executor) gateFor(toolName string) chan struct{} {
	size, ok := e.gateCfg.PerTool[toolName]
	if !ok {
		return e.globalGate
	}
	if size <= 0 {
		return nil
	}
	e.gateMu.Lock()
	defer e.gateMu.Unlock()
	gate, ok := e.toolGates[toolName]
	if !ok {
		gate = make(chan struct{}, size)
		e.toolGates[toolName] = gate
	}
	return gate
}

func (e *Executor) onBreakerTransition(toolName string, from, to breaker.State) {
	e.logger.Warn("breaker.transition", "tool", toolName, "from", from.String(), "to", to.String())
	e.metrics.RecordTransition(toolName, from.String(), to.String())
}

// panicErr carries the recovered value and stack for logs without leaking
// them into user-visible messages.
type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

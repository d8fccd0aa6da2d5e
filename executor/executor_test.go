package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeddq/agentcore/breaker"
	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/internal/testutil"
	"github.com/zeddq/agentcore/metrics"
	"github.com/zeddq/agentcore/tool"
)

func newEchoRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, r.Register(testutil.EchoDescriptor()))
	return r
}

func registerFailing(t *testing.T, r *tool.Registry, name string, h tool.Handler) {
	t.Helper()
	require.NoError(t, r.Register(tool.Descriptor{
		Name:        name,
		Description: "test fixture",
		Handler:     h,
	}))
}

func fastRetry(maxAttempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, DisableJitter: true}
}

func TestExecutor_EchoSuccess(t *testing.T) {
	e := New(newEchoRegistry(t))

	out := e.Invoke(context.Background(), core.InvocationRequest{
		ToolName:  "echo",
		Arguments: map[string]any{"msg": "hi"},
	})
	require.True(t, out.OK())
	assert.Equal(t, "hi", out.Result)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, breaker.StateClosed, e.Health()["echo"].State)
}

func TestExecutor_UnknownTool(t *testing.T) {
	e := New(newEchoRegistry(t))

	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "ghost"})
	assert.Equal(t, core.OutcomeFailure, out.Kind)
	assert.Equal(t, core.FailureToolNotFound, out.FailureKind)
}

func TestExecutor_ValidationFailureSkipsBreakerAndHandler(t *testing.T) {
	r := tool.NewRegistry()
	counting := testutil.NewCountingHandler(nil)
	require.NoError(t, r.Register(tool.Descriptor{
		Name: "echo",
		Parameters: []tool.ParameterSpec{
			{Name: "msg", Type: tool.TypeString, Required: true},
		},
		Handler: counting,
	}))
	e := New(r)

	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "echo", Arguments: map[string]any{}})
	assert.Equal(t, core.FailureValidation, out.FailureKind)
	assert.Contains(t, out.Message, "validation error for field 'msg'")
	assert.Equal(t, 0, counting.Calls())
	// No breaker was touched for a caller error.
	assert.Empty(t, e.Health())
}

func TestExecutor_RetriesTransientThenSucceeds(t *testing.T) {
	r := newEchoRegistry(t)
	flaky := testutil.NewFlakyHandler(2, "recovered", core.Transient(errors.New("connection reset")))
	registerFailing(t, r, "flaky", flaky)

	e := New(r, func(o *Options) { o.Retry = fastRetry(3) })
	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "flaky"})

	require.True(t, out.OK())
	assert.Equal(t, "recovered", out.Result)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, flaky.Calls())
	// Success after retries is a single terminal success for the breaker.
	stats := e.Health()["flaky"]
	assert.Equal(t, int64(1), stats.TotalCalls)
	assert.Equal(t, 0, stats.ConsecutiveFailures)
}

func TestExecutor_NonTransientNotRetried(t *testing.T) {
	r := newEchoRegistry(t)
	counting := testutil.NewCountingHandler(tool.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("schema drift")
	}))
	registerFailing(t, r, "broken", counting)

	e := New(r, func(o *Options) { o.Retry = fastRetry(3) })
	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "broken"})

	assert.Equal(t, core.FailureInternal, out.FailureKind)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, counting.Calls())
}

func TestExecutor_ExhaustedRetryBudget(t *testing.T) {
	r := newEchoRegistry(t)
	flaky := testutil.NewFlakyHandler(10, nil, core.Transient(errors.New("still down")))
	registerFailing(t, r, "flaky", flaky)

	e := New(r, func(o *Options) { o.Retry = fastRetry(2) })
	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "flaky"})

	assert.Equal(t, core.FailureExhausted, out.FailureKind)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, flaky.Calls())
	assert.Equal(t, int64(1), e.Health()["flaky"].FailureCount)
}

func TestExecutor_CircuitOpensAfterThreshold(t *testing.T) {
	r := newEchoRegistry(t)
	counting := testutil.NewCountingHandler(tool.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return nil, core.Transient(errors.New("unavailable"))
	}))
	registerFailing(t, r, "calendar", counting)

	collector := metrics.NewInMemory()
	e := New(r, func(o *Options) {
		o.Retry = fastRetry(1)
		o.Metrics = collector
	})

	// Default threshold is five consecutive failures.
	for i := 0; i < 5; i++ {
		out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "calendar"})
		assert.Equal(t, core.OutcomeFailure, out.Kind)
	}
	require.Equal(t, breaker.StateOpen, e.Health()["calendar"].State)
	require.Equal(t, 5, counting.Calls())

	// The open circuit rejects without reaching the handler.
	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "calendar"})
	assert.Equal(t, core.OutcomeCircuitOpen, out.Kind)
	assert.Equal(t, 5, counting.Calls())

	stats, ok := collector.Snapshot("calendar")
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.CircuitOpen)
	assert.Equal(t, int64(1), stats.Transitions)
	assert.Equal(t, "open", stats.LastState)
}

func TestExecutor_ResetBreakerClosesCircuit(t *testing.T) {
	r := newEchoRegistry(t)
	flaky := testutil.NewFlakyHandler(5, "back up", core.Transient(errors.New("flapping")))
	registerFailing(t, r, "flap", flaky)

	e := New(r, func(o *Options) {
		o.Retry = fastRetry(1)
		o.PerToolBreakers = map[string]breaker.Config{
			"flap": {FailureThreshold: 2, RecoveryTimeout: time.Hour},
		}
	})

	for i := 0; i < 2; i++ {
		e.Invoke(context.Background(), core.InvocationRequest{ToolName: "flap"})
	}
	require.Equal(t, core.OutcomeCircuitOpen, e.Invoke(context.Background(), core.InvocationRequest{ToolName: "flap"}).Kind)

	e.ResetBreaker("flap")
	// Handler still fails three more times before recovering, so close the
	// budget gap with a bigger retry allowance.
	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "flap"})
	assert.Equal(t, core.OutcomeFailure, out.Kind)
}

func TestExecutor_TimeoutOutcome(t *testing.T) {
	r := newEchoRegistry(t)
	registerFailing(t, r, "slow", tool.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			return "too late", nil
		}
	}))

	e := New(r, func(o *Options) { o.Retry = fastRetry(1) })
	out := e.Invoke(context.Background(), core.InvocationRequest{
		ToolName: "slow",
		Timeout:  20 * time.Millisecond,
	})

	assert.Equal(t, core.OutcomeTimeout, out.Kind)
	assert.Equal(t, int64(1), e.Health()["slow"].FailureCount)
}

func TestExecutor_CancellationOutcome(t *testing.T) {
	r := newEchoRegistry(t)
	registerFailing(t, r, "slow", tool.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	e := New(r)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	out := e.Invoke(ctx, core.InvocationRequest{ToolName: "slow"})

	assert.Equal(t, core.FailureCancelled, out.FailureKind)
	// Cancellation says nothing about the tool's health.
	assert.Equal(t, int64(0), e.Health()["slow"].FailureCount)
}

func TestExecutor_GateSaturationFailsOverloaded(t *testing.T) {
	r := newEchoRegistry(t)
	started := make(chan struct{})
	blocking := testutil.NewBlockingHandler("done")
	registerFailing(t, r, "densify", tool.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		close(started)
		return blocking.Invoke(ctx, args)
	}))

	e := New(r, func(o *Options) {
		o.Gate = GateConfig{MaxConcurrent: 1, WaitTimeout: 20 * time.Millisecond}
	})

	firstDone := make(chan core.InvocationOutcome, 1)
	go func() {
		firstDone <- e.Invoke(context.Background(), core.InvocationRequest{ToolName: "densify"})
	}()
	<-started

	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "densify"})
	assert.Equal(t, core.FailureOverloaded, out.FailureKind)

	blocking.Release()
	first := <-firstDone
	assert.True(t, first.OK())
}

func TestExecutor_PanicBecomesInternalFailure(t *testing.T) {
	r := newEchoRegistry(t)
	counting := testutil.NewCountingHandler(tool.HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		panic("nil map write")
	}))
	registerFailing(t, r, "crashy", counting)

	e := New(r, func(o *Options) { o.Retry = fastRetry(3) })
	out := e.Invoke(context.Background(), core.InvocationRequest{ToolName: "crashy"})

	assert.Equal(t, core.FailureInternal, out.FailureKind)
	assert.Contains(t, out.Message, "panic recovered")
	// A panic is terminal, never retried.
	assert.Equal(t, 1, counting.Calls())
}

func TestExecutor_CorrelationIDGenerated(t *testing.T) {
	e := New(newEchoRegistry(t))
	var seen string
	e.Use(func(next Invoker) Invoker {
		return func(ctx context.Context, inv *Invocation) (any, error) {
			seen = inv.CorrelationID
			return next(ctx, inv)
		}
	})

	out := e.Invoke(context.Background(), core.InvocationRequest{
		ToolName:  "echo",
		Arguments: map[string]any{"msg": "x"},
	})
	require.True(t, out.OK())
	assert.NotEmpty(t, seen)
}

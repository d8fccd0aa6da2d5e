package executor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zeddq/agentcore/logging"
	"github.com/zeddq/agentcore/tool"
)

// Invocation is the per-attempt view passed through the middleware chain to
// the handler. Arguments are already validated when middleware sees them.
type Invocation struct {
	Descriptor    tool.Descriptor
	Arguments     map[string]any
	CorrelationID string
	// Attempt is 0 for the first call and increments per retry.
	Attempt int
}

// Invoker executes one attempt of an invocation.
type Invoker func(ctx context.Context, inv *Invocation) (any, error)

// Middleware wraps an Invoker with cross-cutting behavior. Middlewares
// registered with Use are folded around the handler in registration order, so
// the last-registered middleware is outermost: its pre-hook runs first and
// its post-hook runs last. Register instrumentation that should see the
// narrowest handler timing first.
type Middleware func(next Invoker) Invoker

// chain folds the registered middlewares around base.
func chain(base Invoker, middlewares []Middleware) Invoker {
	inv := base
	for _, m := range middlewares {
		inv = m(inv)
	}
	return inv
}

// LoggingMiddleware logs each attempt's start, duration and error state.
func LoggingMiddleware(logger logging.Logger) Middleware {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return func(next Invoker) Invoker {
		return func(ctx context.Context, inv *Invocation) (any, error) {
			logger.Debug("executor.attempt.start",
				"tool", inv.Descriptor.Name,
				"correlation_id", inv.CorrelationID,
				"attempt", inv.Attempt,
			)
			start := time.Now()
			result, err := next(ctx, inv)
			dur := time.Since(start)
			if err != nil {
				logger.Warn("executor.attempt.error",
					"tool", inv.Descriptor.Name,
					"correlation_id", inv.CorrelationID,
					"attempt", inv.Attempt,
					"duration_ms", dur.Milliseconds(),
					"error", err.Error(),
				)
				return nil, err
			}
			logger.Debug("executor.attempt.done",
				"tool", inv.Descriptor.Name,
				"correlation_id", inv.CorrelationID,
				"attempt", inv.Attempt,
				"duration_ms", dur.Milliseconds(),
			)
			return result, nil
		}
	}
}

// RateLimitMiddleware throttles attempts per tool with a token bucket. Tools
// without a configured limit pass through; waiting respects ctx so a
// cancelled turn never blocks on the limiter.
func RateLimitMiddleware(perSecond map[string]rate.Limit, burst int) Middleware {
	if burst < 1 {
		burst = 1
	}
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter, len(perSecond))
	limiterFor := func(toolName string) *rate.Limiter {
		limit, ok := perSecond[toolName]
		if !ok {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[toolName]
		if !ok {
			l = rate.NewLimiter(limit, burst)
			limiters[toolName] = l
		}
		return l
	}
	return func(next Invoker) Invoker {
		return func(ctx context.Context, inv *Invocation) (any, error) {
			if l := limiterFor(inv.Descriptor.Name); l != nil {
				if err := l.Wait(ctx); err != nil {
					return nil, err
				}
			}
			return next(ctx, inv)
		}
	}
}

// Package agentcore provides a high-level façade over the tool registry,
// resilient executor and stream coordinator, enabling rapid construction of
// tool-calling assistants. Most applications interact with this package by:
//  1. Creating a Core via New() (optionally overriding defaults)
//  2. Registering one or more tools (RegisterTool / MustRegisterTool)
//  3. Invoking tools directly (Invoke) or running full model turns
//     (RunTurn for streaming consumption, RunTurnSync for a drained
//     conversation record)
//
// The façade delegates invocation mechanics to executor.Executor and turn
// handling to stream.Coordinator while keeping setup ergonomics concise.
// All defaults are safe for local development and testing; production
// deployments typically supply a durable session store and a structured
// logger.
package agentcore

import (
	"context"
	"errors"

	"github.com/zeddq/agentcore/breaker"
	"github.com/zeddq/agentcore/core"
	"github.com/zeddq/agentcore/executor"
	"github.com/zeddq/agentcore/logging"
	"github.com/zeddq/agentcore/metrics"
	"github.com/zeddq/agentcore/model"
	"github.com/zeddq/agentcore/session"
	"github.com/zeddq/agentcore/stream"
	"github.com/zeddq/agentcore/tool"
)

// ErrNoSource is returned by turn methods when no FragmentSource was
// configured.
var ErrNoSource = errors.New("agentcore: no fragment source configured")

// Options configures the Core instance.
type Options struct {
	// Source produces model output fragments for RunTurn. Optional; a
	// Core without a source still executes tools via Invoke.
	Source model.FragmentSource

	// BreakerConfig tunes default circuit breaker thresholds.
	BreakerConfig breaker.Config
	// PerToolBreakers overrides breaker thresholds for individual tools.
	PerToolBreakers map[string]breaker.Config
	// Retry bounds transient-failure retries.
	Retry executor.RetryPolicy
	// Gate bounds tool handler concurrency.
	Gate executor.GateConfig

	// MaxConcurrentTools bounds parallel tool dispatch within one turn.
	MaxConcurrentTools int
	// EventBufferSize sets the channel buffer size for stream events.
	// Larger buffers reduce blocking but increase memory usage.
	EventBufferSize int

	// Store persists finished conversations (defaults to in-memory).
	Store session.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	// Metrics (defaults to a no-op collector if nil)
	Metrics metrics.Collector
}

// Core is the high-level façade aggregating the registry, executor and
// stream coordinator.
type Core struct {
	opts        Options
	registry    *tool.Registry
	executor    *executor.Executor
	coordinator *stream.Coordinator
	store       session.Store
	logger      logging.Logger
}

// New creates a new Core with optional overrides. Any unset service is
// initialized with an in-memory or no-op implementation.
func New(optFns ...func(o *Options)) *Core {
	opts := Options{
		BreakerConfig: breaker.DefaultConfig(),
		Retry:         executor.DefaultRetryPolicy(),
		Store:         session.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
		Metrics:       metrics.NoOp{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Logger = opts.Logger
	})

	exec := executor.New(registry, func(o *executor.Options) {
		o.BreakerConfig = opts.BreakerConfig
		o.PerToolBreakers = opts.PerToolBreakers
		o.Retry = opts.Retry
		o.Gate = opts.Gate
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	coordinator := stream.New(exec, func(o *stream.Options) {
		o.MaxConcurrentTools = opts.MaxConcurrentTools
		o.EventBuffer = opts.EventBufferSize
		o.Logger = opts.Logger
	})

	return &Core{
		opts:        opts,
		registry:    registry,
		executor:    exec,
		coordinator: coordinator,
		store:       opts.Store,
		logger:      opts.Logger,
	}
}

// RegisterTool adds a tool to the underlying registry.
func (c *Core) RegisterTool(desc tool.Descriptor) error { return c.registry.Register(desc) }

// MustRegisterTool registers a tool and panics on error. Intended for
// static setup at program start.
func (c *Core) MustRegisterTool(desc tool.Descriptor) { c.registry.MustRegister(desc) }

// Use appends executor middleware; see executor.Middleware for ordering.
func (c *Core) Use(middlewares ...executor.Middleware) { c.executor.Use(middlewares...) }

// Invoke executes a single tool through the full resilience pipeline.
func (c *Core) Invoke(ctx context.Context, req core.InvocationRequest) core.InvocationOutcome {
	return c.executor.Invoke(ctx, req)
}

// DescribeTools returns the definitions of all registered tools, suitable
// for advertising to a model provider.
func (c *Core) DescribeTools() []tool.Definition { return c.registry.DescribeAll() }

// Health reports a stats snapshot for every circuit breaker touched so far.
func (c *Core) Health() map[string]breaker.Stats { return c.executor.Health() }

// ResetBreaker force-closes the breaker for one tool.
func (c *Core) ResetBreaker(name string) { c.executor.ResetBreaker(name) }

// Store returns the configured conversation store.
func (c *Core) Store() session.Store { return c.store }

// RunTurn starts one model turn: the configured source is asked to stream
// a response (advertising all registered tools), and the coordinator
// translates fragments into ordered stream events, executing tool calls
// mid-stream. Returns the turn ID along with the event channel.
func (c *Core) RunTurn(
	ctx context.Context,
	req model.Request,
	processors ...stream.Processor,
) (string, <-chan core.StreamEvent, error) {
	if c.opts.Source == nil {
		return "", nil, ErrNoSource
	}

	if len(req.Tools) == 0 {
		req.Tools = c.registry.DescribeAll()
	}

	turnID := core.NewID()
	fragments, errCh := c.opts.Source.Stream(ctx, req)
	go func() {
		for err := range errCh {
			if err != nil {
				c.logger.Error("turn.source.error", "turn_id", turnID, "error", err)
			}
		}
	}()

	events := c.coordinator.Consume(ctx, fragments, processors...)
	return turnID, events, nil
}

// RunTurnSync is a synchronous helper that runs a turn, drains all events
// into a Conversation and saves it to the store.
func (c *Core) RunTurnSync(
	ctx context.Context,
	conversationID string,
	req model.Request,
	processors ...stream.Processor,
) (*session.Conversation, error) {
	turnID, events, err := c.RunTurn(ctx, req, processors...)
	if err != nil {
		return nil, err
	}

	conv := session.NewConversation(conversationID, turnID)
	conv.Drain(events)

	if err := c.store.Save(ctx, conv); err != nil {
		c.logger.Error("turn.save.failed", "conversation_id", conv.ID(), "error", err)
		return conv, err
	}
	return conv, nil
}

package core

import (
	"fmt"
	"time"
)

// InvocationRequest describes a single tool call. It is created per call,
// consumed once by the executor and never retained.
type InvocationRequest struct {
	// ToolName selects the registered tool.
	ToolName string `json:"tool_name"`
	// Arguments are the raw, not-yet-validated call arguments.
	Arguments map[string]any `json:"arguments,omitempty"`
	// CorrelationID ties the invocation to a stream tool-call id or an
	// external trace. Generated when empty.
	CorrelationID string `json:"correlation_id,omitempty"`
	// Timeout bounds the whole invocation including retries. Zero means the
	// caller's context is the only bound.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// OutcomeKind tags the variant of an InvocationOutcome.
type OutcomeKind string

const (
	// OutcomeSuccess carries the handler result.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeFailure carries a FailureKind and message.
	OutcomeFailure OutcomeKind = "failure"
	// OutcomeCircuitOpen means the call was rejected without invoking the
	// handler because the tool's circuit breaker is open.
	OutcomeCircuitOpen OutcomeKind = "circuit_open"
	// OutcomeTimeout means the invocation deadline expired before a terminal
	// handler result was obtained.
	OutcomeTimeout OutcomeKind = "timeout"
)

// FailureKind classifies a failed invocation. The executor's retry and
// circuit-breaker policies key off this taxonomy.
type FailureKind string

const (
	// FailureNone is the zero value used on non-failure outcomes.
	FailureNone FailureKind = ""
	// FailureToolNotFound: the requested tool is not registered. Never
	// retried, never counted against the breaker.
	FailureToolNotFound FailureKind = "tool_not_found"
	// FailureValidation: arguments do not satisfy the declared schema.
	// Never retried, never counted against the breaker.
	FailureValidation FailureKind = "validation"
	// FailureTransient: a retryable fault (network, timeout) that exhausted
	// no retry budget yet. Surfaced only when retries are disabled.
	FailureTransient FailureKind = "transient"
	// FailureOverloaded: the concurrency gate could not be acquired within
	// its wait timeout. Surfaced immediately, never retried internally.
	FailureOverloaded FailureKind = "overloaded"
	// FailureExhausted: transient failures persisted through the full retry
	// budget. Counts as one failure against the breaker.
	FailureExhausted FailureKind = "exhausted"
	// FailureCancelled: the caller's context was cancelled mid-invocation.
	FailureCancelled FailureKind = "cancelled"
	// FailureInternal: a non-transient handler error or recovered panic.
	FailureInternal FailureKind = "internal"
)

// InvocationOutcome is the synchronous result of ToolExecutor.Invoke. Exactly
// one variant applies, selected by Kind. It is returned to the caller and
// never persisted by the core.
type InvocationOutcome struct {
	Kind        OutcomeKind   `json:"kind"`
	Result      any           `json:"result,omitempty"`
	FailureKind FailureKind   `json:"failure_kind,omitempty"`
	Message     string        `json:"message,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	Latency     time.Duration `json:"latency,omitempty"`
}

// OK reports whether the invocation produced a usable result.
func (o InvocationOutcome) OK() bool { return o.Kind == OutcomeSuccess }

// String renders a compact human-readable form, mostly for logs and tests.
func (o InvocationOutcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeCircuitOpen:
		return "circuit_open"
	case OutcomeTimeout:
		return fmt.Sprintf("timeout: %s", o.Message)
	default:
		return fmt.Sprintf("failure[%s]: %s", o.FailureKind, o.Message)
	}
}

// Success builds a success outcome carrying the handler result.
func Success(result any) InvocationOutcome {
	return InvocationOutcome{Kind: OutcomeSuccess, Result: result}
}

// Failure builds a failure outcome with the given kind and message.
func Failure(kind FailureKind, message string) InvocationOutcome {
	return InvocationOutcome{Kind: OutcomeFailure, FailureKind: kind, Message: message}
}

// Failuref builds a failure outcome with a formatted message.
func Failuref(kind FailureKind, format string, args ...any) InvocationOutcome {
	return Failure(kind, fmt.Sprintf(format, args...))
}

// CircuitOpen builds the fast-fail outcome emitted while a breaker is open.
func CircuitOpen(toolName string) InvocationOutcome {
	return InvocationOutcome{
		Kind:    OutcomeCircuitOpen,
		Message: fmt.Sprintf("circuit open for tool %q", toolName),
	}
}

// Timeout builds the outcome for an invocation whose deadline expired.
func Timeout(message string) InvocationOutcome {
	return InvocationOutcome{Kind: OutcomeTimeout, Message: message}
}

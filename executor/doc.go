// Package executor implements the resilient tool executor. A single Invoke
// call runs the full policy pipeline: registry lookup, argument validation,
// circuit-breaker admission, middleware chain, bounded concurrency gate,
// handler execution with transient-only retry and backoff, and terminal
// outcome accounting for the breaker and the metrics collector.
//
// Failure semantics follow a strict taxonomy: not-found and validation errors
// are caller errors returned immediately; transient faults are retried then
// surfaced as exhausted; circuit-open and overloaded conditions fail fast so
// the orchestrator can degrade gracefully. The circuit breaker sees exactly
// one record per terminal outcome, never one per attempt, so a successful
// retry does not count against it.
package executor

// Package breaker implements the per-tool circuit breaker used by the
// resilient executor. Each tool gets its own Closed/Open/HalfOpen state
// machine so one unhealthy dependency cannot block unrelated tools.
//
// The executor records one terminal outcome per invocation (after retries
// resolve), so a successful retry never counts as a failure against the
// breaker. All state transitions are reported through an observer callback
// because they are operationally significant.
package breaker

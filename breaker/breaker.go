package breaker

import (
	"sync"
	"time"
)

// State enumerates the circuit positions.
type State int

const (
	// StateClosed passes calls through; consecutive failures are counted.
	StateClosed State = iota
	// StateOpen rejects calls immediately without invoking the handler.
	StateOpen
	// StateHalfOpen admits a bounded number of trial calls after the
	// recovery timeout elapses.
	StateHalfOpen
)

// String returns the lowercase state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes one breaker. Zero values fall back to the defaults.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// circuit. Default 5.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before admitting a
	// trial call. Default 30s.
	RecoveryTimeout time.Duration
	// HalfOpenSuccesses is the consecutive successes required in HalfOpen to
	// close the circuit; it also bounds concurrent trial calls. Default 3.
	HalfOpenSuccesses int
	// LatencyWindow is the size of the rolling latency ring buffer. Default 100.
	LatencyWindow int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenSuccesses: 3,
		LatencyWindow:     100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = d.RecoveryTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = d.HalfOpenSuccesses
	}
	if c.LatencyWindow <= 0 {
		c.LatencyWindow = d.LatencyWindow
	}
	return c
}

// TransitionFunc observes state changes. Invoked outside the breaker lock.
type TransitionFunc func(tool string, from, to State)

// Stats is the read-only health snapshot exposed to dashboards.
type Stats struct {
	Tool                string        `json:"tool"`
	State               State         `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	TotalCalls          int64         `json:"total_calls"`
	SuccessCount        int64         `json:"success_count"`
	FailureCount        int64         `json:"failure_count"`
	AverageLatency      time.Duration `json:"average_latency"`
	LastFailureTime     time.Time     `json:"last_failure_time,omitempty"`
}

// Breaker is the failure-tracking state machine for a single tool. All
// mutation happens under its own lock; it is shared by every concurrent
// invocation of the tool.
type Breaker struct {
	tool string
	cfg  Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureTime     time.Time
	halfOpenSuccesses   int
	halfOpenInFlight    int
	latencies           []time.Duration
	latencyIdx          int
	latencyCount        int
	totalCalls          int64
	successCount        int64
	failureCount        int64

	onTransition TransitionFunc
	now          func() time.Time
}

// New creates a breaker for one tool in the Closed state.
func New(tool string, cfg Config, onTransition TransitionFunc) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{
		tool:         tool,
		cfg:          cfg,
		latencies:    make([]time.Duration, cfg.LatencyWindow),
		onTransition: onTransition,
		now:          time.Now,
	}
}

// Allow reports whether a call may proceed. While Open it flips to HalfOpen
// once the recovery timeout has elapsed, admitting bounded trial calls. The
// check is deliberately cheap: one short critical section, no allocation, so
// the rejected path stays fast during an outage.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	var fired func()
	allowed := false
	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) >= b.cfg.RecoveryTimeout {
			fired = b.transitionLocked(StateHalfOpen)
			b.halfOpenSuccesses = 0
			b.halfOpenInFlight = 1
			allowed = true
		}
	case StateHalfOpen:
		if b.halfOpenInFlight < b.cfg.HalfOpenSuccesses {
			b.halfOpenInFlight++
			allowed = true
		}
	}
	b.mu.Unlock()
	if fired != nil {
		fired()
	}
	return allowed
}

// RecordSuccess feeds one terminal success into the machine.
func (b *Breaker) RecordSuccess(latency time.Duration) {
	b.mu.Lock()
	b.totalCalls++
	b.successCount++
	b.recordLatencyLocked(latency)

	var fired func()
	switch b.state {
	case StateClosed:
		if b.consecutiveFailures > 0 {
			b.consecutiveFailures--
		}
	case StateHalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenSuccesses {
			fired = b.transitionLocked(StateClosed)
			b.consecutiveFailures = 0
			b.halfOpenSuccesses = 0
			b.halfOpenInFlight = 0
		}
	case StateOpen:
		// Result of a call admitted before the circuit opened; ignore.
	}
	b.mu.Unlock()
	if fired != nil {
		fired()
	}
}

// RecordFailure feeds one terminal failure into the machine.
func (b *Breaker) RecordFailure(latency time.Duration) {
	b.mu.Lock()
	b.totalCalls++
	b.failureCount++
	b.recordLatencyLocked(latency)

	var fired func()
	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			fired = b.transitionLocked(StateOpen)
			b.lastFailureTime = b.now()
		}
	case StateHalfOpen:
		fired = b.transitionLocked(StateOpen)
		b.lastFailureTime = b.now()
		b.halfOpenSuccesses = 0
		b.halfOpenInFlight = 0
	case StateOpen:
		b.lastFailureTime = b.now()
	}
	b.mu.Unlock()
	if fired != nil {
		fired()
	}
}

// Cancel returns an admission obtained via Allow without counting it, for
// calls that never reached the handler (gate saturation, caller cancellation).
// Only meaningful in HalfOpen, where admissions are bounded.
func (b *Breaker) Cancel() {
	b.mu.Lock()
	if b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}
	b.mu.Unlock()
}

// Reset forces the breaker back to Closed and clears its counters. Explicit
// admin action; counters survive otherwise for the process lifetime.
func (b *Breaker) Reset() {
	b.mu.Lock()
	var fired func()
	if b.state != StateClosed {
		fired = b.transitionLocked(StateClosed)
	}
	b.consecutiveFailures = 0
	b.halfOpenSuccesses = 0
	b.halfOpenInFlight = 0
	b.lastFailureTime = time.Time{}
	b.mu.Unlock()
	if fired != nil {
		fired()
	}
}

// State returns the current circuit position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the health stats for metrics reporting.
func (b *Breaker) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Tool:                b.tool,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		TotalCalls:          b.totalCalls,
		SuccessCount:        b.successCount,
		FailureCount:        b.failureCount,
		AverageLatency:      b.averageLatencyLocked(),
		LastFailureTime:     b.lastFailureTime,
	}
}

// transitionLocked switches state and returns the observer call to fire after
// the lock is released. Caller must hold b.mu.
func (b *Breaker) transitionLocked(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	if b.onTransition == nil {
		return nil
	}
	cb, tool := b.onTransition, b.tool
	return func() { cb(tool, from, to) }
}

func (b *Breaker) recordLatencyLocked(latency time.Duration) {
	b.latencies[b.latencyIdx] = latency
	b.latencyIdx = (b.latencyIdx + 1) % len(b.latencies)
	if b.latencyCount < len(b.latencies) {
		b.latencyCount++
	}
}

func (b *Breaker) averageLatencyLocked() time.Duration {
	if b.latencyCount == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < b.latencyCount; i++ {
		sum += b.latencies[i]
	}
	return sum / time.Duration(b.latencyCount)
}

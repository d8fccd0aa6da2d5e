package executor

import (
	"math/rand"
	"time"
)

// RetryPolicy bounds how transient handler failures are retried. Only
// failures classified transient by core.IsTransient are retried; validation
// and not-found errors never reach this machinery.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget including the first call.
	// Values below 1 are treated as 1 (no retries).
	MaxAttempts int
	// BaseDelay seeds the exponential schedule and bounds the jitter span.
	BaseDelay time.Duration
	// MaxDelay caps the deterministic part of the schedule.
	MaxDelay time.Duration
	// DisableJitter turns off the uniform random component; useful in tests.
	DisableJitter bool
}

// DefaultRetryPolicy returns the standard budget: three attempts, 100ms base,
// 2s cap, jitter on.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the delay before retry number retry (0-based: the delay
// between the first failure and the second attempt is Backoff(0)). The
// deterministic part doubles per retry and is capped at MaxDelay; a uniform
// jitter of up to BaseDelay is added so concurrent retries do not
// synchronize. The total is therefore bounded by MaxDelay + BaseDelay.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	return p.backoff(retry, rand.Float64)
}

func (p RetryPolicy) backoff(retry int, rng func() float64) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	cap := p.MaxDelay
	if cap <= 0 {
		cap = 2 * time.Second
	}
	if retry < 0 {
		retry = 0
	}
	delay := base
	// Shift with overflow guard; past the cap the exact exponent is moot.
	for i := 0; i < retry && delay < cap; i++ {
		delay *= 2
	}
	if delay > cap {
		delay = cap
	}
	if !p.DisableJitter && rng != nil {
		delay += time.Duration(rng() * float64(base))
	}
	return delay
}

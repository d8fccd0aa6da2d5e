package core

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTransient is the sentinel wrapped by retryable failures. Handlers signal
// "try again" either by wrapping it (fmt.Errorf("...: %w", core.ErrTransient))
// or by returning a *TransientError.
var ErrTransient = errors.New("transient failure")

// TransientError marks an underlying fault as retryable. The executor retries
// these with backoff; every other handler error is terminal.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *TransientError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransient) succeed for wrapped faults.
func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient classifies an error as retryable. Explicitly marked transient
// errors, context deadline expiry and timing-out network errors qualify;
// everything else (validation, programmer errors, business failures) does not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

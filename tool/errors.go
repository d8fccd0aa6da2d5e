package tool

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the registry. Use errors.Is to check.
var (
	// ErrDuplicateTool is returned when a name is registered twice. The
	// original registration is left unchanged.
	ErrDuplicateTool = errors.New("duplicate tool")
	// ErrToolNotFound is returned by Lookup for unknown names.
	ErrToolNotFound = errors.New("tool not found")
	// ErrSchemaMismatch is returned when a handler's declared argument names
	// differ from the descriptor's parameter schema.
	ErrSchemaMismatch = errors.New("handler/schema parameter mismatch")
	// ErrValidation is wrapped by *ValidationError for errors.Is checks.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports an argument that does not satisfy the declared
// parameter schema. It is a caller error: the executor surfaces it without
// retrying and without touching the circuit breaker.
type ValidationError struct {
	Field   string `json:"field"`           // parameter that failed validation
	Value   any    `json:"value,omitempty"` // offending value, if known
	Message string `json:"message"`         // human-readable explanation
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

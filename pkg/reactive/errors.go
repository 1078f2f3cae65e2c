package reactive

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a name does not resolve from a scope.
	ErrNotFound = errors.New("reactive: value not found")

	// ErrNotScope is returned when a path segment does not hold a scope Env.
	ErrNotScope = errors.New("reactive: value is not a scope")

	// ErrNoLookup is returned when a scope has no usable $value accessor.
	ErrNoLookup = errors.New("reactive: lookup accessor unavailable")

	// ErrPanic wraps a panic recovered from user code.
	ErrPanic = errors.New("reactive: panic")
)

// EvalError reports a failed expression evaluation.
type EvalError struct {
	ScopeID string
	Key     string
	Err     error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("reactive: scope %s: value %q: %v", e.ScopeID, e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// recovered turns a recovered panic payload into an error.
func recovered(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}

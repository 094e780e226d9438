// Package assess sends review prompts to the reasoning service.
package assess

import (
	"context"
	"errors"
)

// Assessor returns the free-text assessment of one prompt.
type Assessor interface {
	Assess(ctx context.Context, prompt string) (string, error)
}

// TransientError represents a temporary failure that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

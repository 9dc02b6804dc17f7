package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout   = errors.New("timed out waiting for worker")
	ErrCanceled  = errors.New("wait canceled")
	ErrJobExists = errors.New("job already exists")
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid job id")
)

// ValidationError reports a missing or malformed request field. No job is
// created when one is returned. Message is a printf-style catalog key so
// handlers can localize it; Args fill its verbs.
type ValidationError struct {
	Field   string
	Message string
	Args    []any
	// Cause is the underlying parse failure, if any. It is logged, not
	// shown to clients.
	Cause error
}

func (e *ValidationError) Error() string {
	if len(e.Args) == 0 {
		return e.Message
	}
	return fmt.Sprintf(e.Message, e.Args...)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// NewValidationError is a shorthand constructor.
func NewValidationError(field, msg string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: msg, Args: args}
}

// DecodeError reports a result artifact the worker wrote in a shape we cannot read.
type DecodeError struct {
	JobID string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode result %s: %v", e.JobID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StoreError wraps filesystem failures of the job store.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

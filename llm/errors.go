package llm

import "errors"

// TransientError represents a temporary failure that may succeed on retry:
// network errors, timeouts, and 5xx/429 responses from the model endpoint.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent failure that should not be retried:
// bad requests, auth failures, and configuration problems.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// MalformedOutputError indicates the model's response could not be parsed
// into the shape a stage required, after all repair attempts were exhausted.
type MalformedOutputError struct {
	Stage string
	err   error
}

func (e *MalformedOutputError) Error() string {
	return "malformed model output in " + e.Stage + ": " + e.err.Error()
}

func (e *MalformedOutputError) Unwrap() error { return e.err }

// NewMalformedOutputError wraps a parse failure attributed to a pipeline stage.
func NewMalformedOutputError(stage string, err error) error {
	return &MalformedOutputError{Stage: stage, err: err}
}

package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// TransientError represents a temporary failure (rate limit, upstream outage).
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as transient.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent failure (bad credentials, malformed request).
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError wraps an error as fatal.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// classifyStatus maps an HTTP status to a classified error.
func classifyStatus(code int, body string) error {
	err := fmt.Errorf("HTTP %d: %s", code, truncate(body, 200))
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return NewTransientError(err)
	default:
		return NewFatalError(err)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

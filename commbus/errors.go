package commbus

import (
	"errors"
	"fmt"
)

// ErrNoHandler matches any NoHandlerError via errors.Is.
var ErrNoHandler = errors.New("no handler registered")

// NoHandlerError is returned when no handler is registered for a query type.
type NoHandlerError struct {
	MessageType string
}

func (e *NoHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for %s", e.MessageType)
}

// Is reports ErrNoHandler equivalence.
func (e *NoHandlerError) Is(target error) bool { return target == ErrNoHandler }

// NewNoHandlerError creates a new NoHandlerError.
func NewNoHandlerError(messageType string) *NoHandlerError {
	return &NoHandlerError{MessageType: messageType}
}

// HandlerAlreadyRegisteredError is returned when registering a duplicate handler.
type HandlerAlreadyRegisteredError struct {
	MessageType string
}

func (e *HandlerAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("handler already registered for %s", e.MessageType)
}

// QueryTimeoutError is returned when a query handler does not answer in time.
type QueryTimeoutError struct {
	MessageType string
	Timeout     float64
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("query %s timed out after %.2fs", e.MessageType, e.Timeout)
}

// HandlerPanicError wraps a recovered subscriber panic.
type HandlerPanicError struct {
	MessageType string
	Value       any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("handler for %s panicked: %v", e.MessageType, e.Value)
}

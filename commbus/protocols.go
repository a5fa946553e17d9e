// Package commbus provides the in-process event bus for turn lifecycle events.
//
// Core components publish events; adapters (logging, gRPC streaming, the
// terminal UI) subscribe. Components depend on the CommBus interface, not on
// the implementation.
package commbus

import (
	"context"
)

// =============================================================================
// COMMBUS PROTOCOLS
// =============================================================================

// Message is the protocol for all commbus messages.
// All messages (events, queries) must have a category.
type Message interface {
	// Category returns the message category: "event" or "query".
	Category() string
}

// Query is the protocol for query messages that expect a response.
type Query interface {
	Message
	// IsQuery is a marker method to distinguish queries from events.
	IsQuery()
}

// HandlerFunc processes a message and returns a response for queries.
type HandlerFunc func(ctx context.Context, message Message) (any, error)

// Middleware intercepts messages before and after handling.
type Middleware interface {
	// Before is called before message is handled.
	// Returns modified message, or nil to abort processing.
	Before(ctx context.Context, message Message) (Message, error)

	// After is called after message is handled.
	// Returns modified result.
	After(ctx context.Context, message Message, result any, err error) (any, error)
}

// CommBus is the protocol for the communication bus.
//
//   - Publish(event): fan-out to all subscribers, returns when all have run
//   - QuerySync(query): request-response, single handler
type CommBus interface {
	Publish(ctx context.Context, event Message) error
	QuerySync(ctx context.Context, query Query) (any, error)

	// Subscribe subscribes to an event type. Returns an unsubscribe function.
	Subscribe(eventType string, handler HandlerFunc) func()

	// RegisterHandler registers the single handler for a query type.
	RegisterHandler(messageType string, handler HandlerFunc) error

	// AddMiddleware adds middleware, executed in registration order.
	AddMiddleware(middleware Middleware)

	HasHandler(messageType string) bool
	SubscriberCount(eventType string) int
	Clear()
}

package commbus

import (
	"context"
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
)

type subscription struct {
	id      uint64
	handler HandlerFunc
}

// InMemoryCommBus is an in-memory implementation of CommBus.
//
// Features:
//   - Ordered, synchronous event delivery to every subscriber
//   - Query request-response with timeout
//   - Middleware chain for cross-cutting concerns
//
// Usage:
//
//	bus := NewInMemoryCommBus(5*time.Second, logger)
//	bus.Subscribe("TurnCompleted", telemetryHandler)
//	bus.Publish(ctx, &TurnCompleted{...})
type InMemoryCommBus struct {
	handlers     map[string]HandlerFunc
	subscribers  map[string][]subscription
	middleware   []Middleware
	queryTimeout time.Duration
	nextID       uint64
	logger       logging.Logger
	mu           sync.RWMutex
}

// NewInMemoryCommBus creates a new InMemoryCommBus. logger may be nil.
func NewInMemoryCommBus(queryTimeout time.Duration, logger logging.Logger) *InMemoryCommBus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &InMemoryCommBus{
		handlers:     make(map[string]HandlerFunc),
		subscribers:  make(map[string][]subscription),
		middleware:   make([]Middleware, 0),
		queryTimeout: queryTimeout,
		logger:       logger.Bind("component", "commbus"),
	}
}

// =============================================================================
// MESSAGING
// =============================================================================

// Publish delivers an event to its subscribers in subscription order, on the
// caller's goroutine. Subscriber errors and panics are logged and do not stop
// delivery to the rest; Publish itself only fails when middleware rejects.
func (b *InMemoryCommBus) Publish(ctx context.Context, event Message) error {
	eventType := GetMessageType(event)

	processedEvent, err := b.runMiddlewareBefore(ctx, event)
	if err != nil {
		return err
	}
	if processedEvent == nil {
		b.logger.Debug("commbus_event_aborted", "type", eventType)
		return nil
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[eventType]))
	copy(subs, b.subscribers[eventType])
	b.mu.RUnlock()

	var firstError error
	for idx, sub := range subs {
		if e := deliver(ctx, eventType, sub.handler, processedEvent); e != nil {
			b.logger.Warn("commbus_subscriber_failed", "type", eventType, "subscriber", idx, "error", e.Error())
			if firstError == nil {
				firstError = e
			}
		}
	}

	_, _ = b.runMiddlewareAfter(ctx, event, nil, firstError)
	return nil
}

func deliver(ctx context.Context, eventType string, h HandlerFunc, event Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerPanicError{MessageType: eventType, Value: r}
		}
	}()
	_, err = h(ctx, event)
	return err
}

// QuerySync sends a query and waits for response.
// Queries have a timeout and require a registered handler.
func (b *InMemoryCommBus) QuerySync(ctx context.Context, query Query) (any, error) {
	messageType := GetMessageType(query)

	processed, err := b.runMiddlewareBefore(ctx, query)
	if err != nil {
		return nil, err
	}
	if processed == nil {
		return nil, NewNoHandlerError(messageType)
	}

	b.mu.RLock()
	handler, exists := b.handlers[messageType]
	b.mu.RUnlock()
	if !exists {
		return nil, NewNoHandlerError(messageType)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		v, e := handler(timeoutCtx, processed)
		resultCh <- result{value: v, err: e}
	}()

	select {
	case <-timeoutCtx.Done():
		err := &QueryTimeoutError{MessageType: messageType, Timeout: b.queryTimeout.Seconds()}
		_, _ = b.runMiddlewareAfter(ctx, query, nil, err)
		return nil, err
	case res := <-resultCh:
		finalResult, middlewareErr := b.runMiddlewareAfter(ctx, query, res.value, res.err)
		if middlewareErr != nil {
			return finalResult, middlewareErr
		}
		return finalResult, res.err
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

// Subscribe subscribes to an event type.
// Returns an unsubscribe function for cleanup; calling it twice is a no-op.
func (b *InMemoryCommBus) Subscribe(eventType string, handler HandlerFunc) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("commbus_subscribed", "type", eventType)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// RegisterHandler registers a handler for a query type.
// Only one handler per message type is allowed.
func (b *InMemoryCommBus) RegisterHandler(messageType string, handler HandlerFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[messageType]; exists {
		return &HandlerAlreadyRegisteredError{MessageType: messageType}
	}
	b.handlers[messageType] = handler
	return nil
}

// AddMiddleware adds middleware to the bus.
// Middleware is executed in registration order.
func (b *InMemoryCommBus) AddMiddleware(middleware Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware)
}

// =============================================================================
// INTROSPECTION
// =============================================================================

// HasHandler checks if a handler is registered for a message type.
func (b *InMemoryCommBus) HasHandler(messageType string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.handlers[messageType]
	return exists
}

// SubscriberCount returns the number of subscribers for an event type.
func (b *InMemoryCommBus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}

// Clear clears all handlers, subscribers, and middleware.
func (b *InMemoryCommBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[string]HandlerFunc)
	b.subscribers = make(map[string][]subscription)
	b.middleware = make([]Middleware, 0)
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (b *InMemoryCommBus) middlewareSnapshot() []Middleware {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Middleware, len(b.middleware))
	copy(out, b.middleware)
	return out
}

// runMiddlewareBefore runs middleware before chain.
func (b *InMemoryCommBus) runMiddlewareBefore(ctx context.Context, message Message) (Message, error) {
	current := message
	for _, mw := range b.middlewareSnapshot() {
		result, err := mw.Before(ctx, current)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, nil
		}
		current = result
	}
	return current, nil
}

// runMiddlewareAfter runs middleware after chain (reverse order).
func (b *InMemoryCommBus) runMiddlewareAfter(ctx context.Context, message Message, result any, err error) (any, error) {
	chain := b.middlewareSnapshot()
	currentResult := result
	for i := len(chain) - 1; i >= 0; i-- {
		afterResult, afterErr := chain[i].After(ctx, message, currentResult, err)
		if afterErr != nil {
			err = afterErr
		}
		if afterResult != nil {
			currentResult = afterResult
		}
	}
	return currentResult, err
}

// Ensure InMemoryCommBus implements CommBus interface.
var _ CommBus = (*InMemoryCommBus)(nil)

package commbus

import (
	"context"
	"sync"

	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
)

// =============================================================================
// LOGGING MIDDLEWARE
// =============================================================================

// LoggingMiddleware logs all message traffic at debug level and failures at warn.
type LoggingMiddleware struct {
	logger logging.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger logging.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LoggingMiddleware{logger: logger}
}

// Before logs message receipt.
func (m *LoggingMiddleware) Before(ctx context.Context, message Message) (Message, error) {
	m.logger.Debug("commbus_message", "category", message.Category(), "type", GetMessageType(message))
	return message, nil
}

// After logs message completion.
func (m *LoggingMiddleware) After(ctx context.Context, message Message, result any, err error) (any, error) {
	if err != nil {
		m.logger.Warn("commbus_message_failed", "type", GetMessageType(message), "error", err.Error())
	} else {
		m.logger.Debug("commbus_message_completed", "type", GetMessageType(message))
	}
	return result, nil
}

// =============================================================================
// RECORDING MIDDLEWARE
// =============================================================================

// RecordingMiddleware keeps every message that passed through the bus, in
// order. The chat REPL uses it for its /eventos view.
type RecordingMiddleware struct {
	limit    int
	messages []Message
	mu       sync.Mutex
}

// NewRecordingMiddleware keeps at most limit messages (0 = unbounded).
func NewRecordingMiddleware(limit int) *RecordingMiddleware {
	return &RecordingMiddleware{limit: limit}
}

// Before records the message.
func (m *RecordingMiddleware) Before(ctx context.Context, message Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	if m.limit > 0 && len(m.messages) > m.limit {
		m.messages = m.messages[len(m.messages)-m.limit:]
	}
	return message, nil
}

// After is a no-op.
func (m *RecordingMiddleware) After(ctx context.Context, message Message, result any, err error) (any, error) {
	return result, nil
}

// Messages returns a copy of recorded messages.
func (m *RecordingMiddleware) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Types returns the type names of recorded messages.
func (m *RecordingMiddleware) Types() []string {
	msgs := m.Messages()
	out := make([]string, len(msgs))
	for i, msg := range msgs {
		out[i] = GetMessageType(msg)
	}
	return out
}

// Ensure all middleware types implement Middleware interface.
var (
	_ Middleware = (*LoggingMiddleware)(nil)
	_ Middleware = (*RecordingMiddleware)(nil)
)

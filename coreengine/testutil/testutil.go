// Package testutil provides shared test utilities and mocks.
//
// All mocks in this package are designed for testing the coreengine components
// in isolation without requiring a model endpoint.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/llm"
	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
)

// =============================================================================
// MOCK LLM PROVIDER
// =============================================================================

type responseRule struct {
	prefix   string
	response string
	err      error
}

// MockLLMProvider implements llm.Provider for testing.
// Responses are selected by system-prompt prefix, first registered rule wins;
// unmatched requests get DefaultResponse.
type MockLLMProvider struct {
	// DefaultResponse is returned when no prefix matches.
	DefaultResponse string

	// Delay simulates model latency.
	Delay time.Duration

	// Error causes every Generate call to fail.
	Error error

	// GenerateFunc replaces the rule lookup when set.
	GenerateFunc func(context.Context, llm.Request) (string, error)

	rules []responseRule
	calls []llm.Request
	mu    sync.Mutex
}

// NewMockLLMProvider creates a MockLLMProvider with an empty JSON reply.
func NewMockLLMProvider() *MockLLMProvider {
	return &MockLLMProvider{DefaultResponse: `{"resumo": "mock"}`}
}

// Name implements llm.Provider.
func (m *MockLLMProvider) Name() string { return "mock" }

// Generate implements llm.Provider.
func (m *MockLLMProvider) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	customFunc := m.GenerateFunc
	rules := append([]responseRule(nil), m.rules...)
	m.mu.Unlock()

	if customFunc != nil {
		return customFunc(ctx, req)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.Error != nil {
		return "", m.Error
	}

	system := SystemPrompt(req)
	for _, r := range rules {
		if strings.HasPrefix(system, r.prefix) {
			return r.response, r.err
		}
	}
	return m.DefaultResponse, nil
}

// WithResponse routes requests whose system prompt starts with prefix.
func (m *MockLLMProvider) WithResponse(prefix, response string) *MockLLMProvider {
	m.mu.Lock()
	m.rules = append(m.rules, responseRule{prefix: prefix, response: response})
	m.mu.Unlock()
	return m
}

// WithFailure makes requests whose system prompt starts with prefix fail.
func (m *MockLLMProvider) WithFailure(prefix string, err error) *MockLLMProvider {
	m.mu.Lock()
	m.rules = append(m.rules, responseRule{prefix: prefix, err: err})
	m.mu.Unlock()
	return m
}

// WithError configures every call to fail.
func (m *MockLLMProvider) WithError(err error) *MockLLMProvider {
	m.Error = err
	return m
}

// WithDelay adds latency simulation.
func (m *MockLLMProvider) WithDelay(d time.Duration) *MockLLMProvider {
	m.Delay = d
	return m
}

// GetCallCount returns the number of calls (thread-safe).
func (m *MockLLMProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of all recorded requests.
func (m *MockLLMProvider) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall returns the most recent request.
func (m *MockLLMProvider) LastCall() (llm.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return llm.Request{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears recorded calls and rules.
func (m *MockLLMProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.rules = nil
	m.Error = nil
}

// SystemPrompt returns the content of the first system message of req.
func SystemPrompt(req llm.Request) string {
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem {
			return msg.Content
		}
	}
	return ""
}

// UserPrompt returns the content of the last user message of req.
func UserPrompt(req llm.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

// =============================================================================
// MOCK LOGGER
// =============================================================================

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

// MockLogger implements logging.Logger and captures entries.
type MockLogger struct {
	parent *MockLogger
	bound  []any
	logs   []LogEntry
	mu     sync.Mutex
}

// NewMockLogger creates a capturing logger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) { m.log("debug", msg, keysAndValues...) }
func (m *MockLogger) Info(msg string, keysAndValues ...any)  { m.log("info", msg, keysAndValues...) }
func (m *MockLogger) Warn(msg string, keysAndValues ...any)  { m.log("warn", msg, keysAndValues...) }
func (m *MockLogger) Error(msg string, keysAndValues ...any) { m.log("error", msg, keysAndValues...) }

// Bind returns a child that records into the same buffer.
func (m *MockLogger) Bind(keysAndValues ...any) logging.Logger {
	root := m.root()
	bound := append(append([]any(nil), m.bound...), keysAndValues...)
	return &MockLogger{parent: root, bound: bound}
}

func (m *MockLogger) root() *MockLogger {
	if m.parent != nil {
		return m.parent
	}
	return m
}

func (m *MockLogger) log(level, msg string, keysAndValues ...any) {
	all := append(append([]any(nil), m.bound...), keysAndValues...)
	fields := make(map[string]any, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		if key, ok := all[i].(string); ok {
			fields[key] = all[i+1]
		}
	}
	root := m.root()
	root.mu.Lock()
	root.logs = append(root.logs, LogEntry{Level: level, Message: msg, Fields: fields})
	root.mu.Unlock()
}

// GetLogs returns a copy of captured entries.
func (m *MockLogger) GetLogs() []LogEntry {
	root := m.root()
	root.mu.Lock()
	defer root.mu.Unlock()
	out := make([]LogEntry, len(root.logs))
	copy(out, root.logs)
	return out
}

// HasLog reports whether a message was logged at level.
func (m *MockLogger) HasLog(level, message string) bool {
	for _, e := range m.GetLogs() {
		if e.Level == level && e.Message == message {
			return true
		}
	}
	return false
}

// Clear drops captured entries.
func (m *MockLogger) Clear() {
	root := m.root()
	root.mu.Lock()
	root.logs = nil
	root.mu.Unlock()
}

// =============================================================================
// CONFIG HELPERS
// =============================================================================

// NewTestConfig returns defaults with a dummy credential and acknowledgement off.
func NewTestConfig() *config.CoreConfig {
	cfg := config.DefaultCoreConfig()
	cfg.APIKey = "test-key"
	cfg.Acknowledge = false
	return cfg
}

// ReplyJSON builds a minimal stage reply.
func ReplyJSON(resumo string, nextSteps ...string) string {
	steps := make([]string, len(nextSteps))
	for i, s := range nextSteps {
		steps[i] = `"` + s + `"`
	}
	return `{"insumos": {"objeto": "✅"}, "resumo": "` + resumo + `", "proximos_passos": [` + strings.Join(steps, ", ") + `]}`
}

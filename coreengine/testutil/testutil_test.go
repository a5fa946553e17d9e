package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jeeves-cluster-organization/synapse/coreengine/decoder"
	"github.com/jeeves-cluster-organization/synapse/coreengine/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MOCK PROVIDER TESTS
// =============================================================================

func request(system, user string) llm.Request {
	return llm.Request{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}}
}

func TestMockLLMProviderRules(t *testing.T) {
	m := NewMockLLMProvider().
		WithResponse("Você é o Agente TR", "tr").
		WithFailure("Você é o Agente ETP", errors.New("rate limited")).
		WithResponse("Você é o Agente", "generic")

	out, err := m.Generate(context.Background(), request("Você é o Agente TR (Termo)", "x"))
	require.NoError(t, err)
	assert.Equal(t, "tr", out)

	_, err = m.Generate(context.Background(), request("Você é o Agente ETP", "x"))
	assert.EqualError(t, err, "rate limited")

	out, _ = m.Generate(context.Background(), request("Você é o Agente DFD", "x"))
	assert.Equal(t, "generic", out)

	out, _ = m.Generate(context.Background(), request("Classifique", "x"))
	assert.Equal(t, `{"resumo": "mock"}`, out)

	assert.Equal(t, 4, m.GetCallCount())
	last, ok := m.LastCall()
	require.True(t, ok)
	assert.Equal(t, "Classifique", SystemPrompt(last))
	assert.Equal(t, "x", UserPrompt(last))
}

func TestMockLLMProviderDelayHonoursContext(t *testing.T) {
	m := NewMockLLMProvider().WithDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := m.Generate(ctx, request("s", "u"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockLLMProviderReset(t *testing.T) {
	m := NewMockLLMProvider().WithError(errors.New("down"))
	_, _ = m.Generate(context.Background(), request("s", "u"))
	m.Reset()

	assert.Equal(t, 0, m.GetCallCount())
	_, err := m.Generate(context.Background(), request("s", "u"))
	assert.NoError(t, err)
}

// =============================================================================
// MOCK LOGGER TESTS
// =============================================================================

func TestMockLoggerBindSharesBuffer(t *testing.T) {
	root := NewMockLogger()
	child := root.Bind("component", "router")
	child.Warn("router_classify_failed", "error", "boom")
	root.Info("started")

	logs := root.GetLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, "router", logs[0].Fields["component"])
	assert.Equal(t, "boom", logs[0].Fields["error"])
	assert.True(t, root.HasLog("warn", "router_classify_failed"))

	root.Clear()
	assert.Empty(t, root.GetLogs())
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestReplyJSONDecodes(t *testing.T) {
	rec := decoder.Decode(ReplyJSON("ok", "ETP", "TR"))

	assert.Equal(t, decoder.StrategyStrict, rec.Strategy)
	assert.Equal(t, []string{"ETP", "TR"}, rec.ProximosPassos)
	assert.Equal(t, decoder.Text("ok"), rec.Resumo)
}

func TestNewTestConfig(t *testing.T) {
	cfg := NewTestConfig()
	assert.True(t, cfg.CredentialPresent())
	assert.False(t, cfg.Acknowledge)
	assert.NoError(t, cfg.Validate())
}

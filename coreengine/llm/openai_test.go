package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChatURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"empty uses default", "", "https://api.openai.com/v1/chat/completions"},
		{"trailing slash", "http://localhost:11434/v1/", "http://localhost:11434/v1/chat/completions"},
		{"already complete", "https://openrouter.ai/api/v1/chat/completions", "https://openrouter.ai/api/v1/chat/completions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildChatURL(tt.baseURL))
		})
	}
}

func newTestServer(t *testing.T, status int, body string, capture *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProviderGenerate(t *testing.T) {
	var captured chatRequest
	srv := newTestServer(t, http.StatusOK,
		`{"model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"  TR \n"}}]}`, &captured)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), Request{
		Messages:    []Message{{Role: RoleSystem, Content: "classifique"}, {Role: RoleUser, Content: "texto"}},
		Temperature: Temperature(0),
		MaxTokens:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, "TR", out)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 2)
	require.NotNil(t, captured.Temperature)
	assert.Equal(t, 0.0, *captured.Temperature)
	require.NotNil(t, captured.MaxTokens)
	assert.Equal(t, 5, *captured.MaxTokens)
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"server error", http.StatusBadGateway, `bad gateway`, true},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, false},
		{"no choices", http.StatusOK, `{"choices":[]}`, false},
		{"broken json", http.StatusOK, `{"choices":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "m"})
			require.NoError(t, err)

			_, err = p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, !tt.transient, IsFatal(err))
		})
	}
}

func TestOpenAIProviderTransportFailure(t *testing.T) {
	p, err := NewOpenAIProvider(OpenAIConfig{BaseURL: "http://127.0.0.1:1/v1", Model: "m"})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestNewOpenAIProviderRequiresModel(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	require.Error(t, err)
}

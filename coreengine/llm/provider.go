// Package llm provides the model-call capability: a role-tagged message list
// in, completion text out. Providers are interchangeable behind Provider.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/observability"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines a completion request.
type Request struct {
	// Model overrides the provider's configured model when set.
	Model string

	// Messages is the conversation to send.
	Messages []Message

	// Temperature controls randomness. nil uses the endpoint default, 0 is deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the endpoint default.
	MaxTokens int
}

// Provider is the interface for model providers.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(t float64) *float64 { return &t }

// NewProvider builds the configured provider. A missing credential is
// reported as config.ErrMissingCredential before anything is dialed.
func NewProvider(ctx context.Context, cfg *config.CoreConfig) (Provider, error) {
	if err := cfg.CheckCredential(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.LLMTimeout) * time.Second

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		p, err = NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: timeout,
		})
	case config.ProviderGemini:
		p, err = NewGeminiProvider(ctx, GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("unknown provider '%s'", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(p, cfg.Model), nil
}

// instrumented records call metrics around another provider.
type instrumented struct {
	next  Provider
	model string
}

// Instrument wraps a provider with LLM call metrics.
func Instrument(p Provider, model string) Provider {
	return &instrumented{next: p, model: model}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	out, err := i.next.Generate(ctx, req)

	model := req.Model
	if model == "" {
		model = i.model
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordLLMCall(i.next.Name(), model, status, int(time.Since(start).Milliseconds()))
	return out, err
}

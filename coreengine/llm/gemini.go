package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures the Google GenAI provider.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiProvider implements Provider with google.golang.org/genai.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiProvider{client: client, model: model, timeout: cfg.Timeout}, nil
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string { return "gemini" }

// Generate implements Provider.
func (g *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	model := req.Model
	if model == "" {
		model = g.model
	}
	system, contents := toGeminiContents(req.Messages)

	genCfg := &genai.GenerateContentConfig{SystemInstruction: system}
	if req.Temperature != nil {
		genCfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		return "", NewTransientError(fmt.Errorf("gemini generate: %w", err))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", NewFatalError(fmt.Errorf("gemini returned no text"))
	}
	return text, nil
}

// toGeminiContents folds system messages into one system instruction and
// maps assistant turns to the "model" role.
func toGeminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			systemParts = append(systemParts, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(systemParts) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser), contents
}

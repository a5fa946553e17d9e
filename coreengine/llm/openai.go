package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// OpenAIConfig configures an OpenAI-compatible chat-completions endpoint
// (OpenAI, OpenRouter, Ollama, vLLM).
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIProvider implements Provider over the chat-completions HTTP API.
type OpenAIProvider struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai provider: model is required")
	}
	return &OpenAIProvider{
		apiKey:     cfg.APIKey,
		endpoint:   BuildChatURL(cfg.BaseURL),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// BuildChatURL constructs the chat completions endpoint.
func BuildChatURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string { return "openai" }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate implements Provider.
func (o *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	body := chatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature, // nil = use default, 0 = deterministic
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		body.MaxTokens = &maxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", NewFatalError(fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", NewFatalError(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", NewTransientError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", NewTransientError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", NewFatalError(fmt.Errorf("parse openai response: %w", err))
	}
	if parsed.Error != nil {
		return "", NewFatalError(fmt.Errorf("openai error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", NewFatalError(fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Package config provides core orchestration configuration.
//
// CoreConfig holds the tunables of one Synapse deployment:
//   - Pipeline and stage-prompt sources
//   - Router fallback behaviour and defaults
//   - Model-call budgets (temperature, output length, timeout)
//   - Credential lookup for the model provider
//
// Loading precedence: defaults, then the YAML file, then environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when no model-provider credential is configured.
var ErrMissingCredential = errors.New("model provider credential not configured")

// FallbackMode selects what the router does when no keyword rule matches.
type FallbackMode string

const (
	FallbackClassify FallbackMode = "classify" // Ask the model for a single stage label
	FallbackAdvance  FallbackMode = "advance"  // Move to the pipeline successor of the current stage
)

// SuggestionPolicy selects how the next stage is proposed after a turn.
type SuggestionPolicy string

const (
	SuggestionModel    SuggestionPolicy = "model"    // Prefer the model's proximos_passos when recognised
	SuggestionPipeline SuggestionPolicy = "pipeline" // Always use the fixed successor
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// CoreConfig holds core orchestration configuration.
type CoreConfig struct {
	// Stage registry
	Pipeline     string `yaml:"pipeline" json:"pipeline"`           // Built-in registry name
	RegistryFile string `yaml:"registry_file" json:"registry_file"` // Optional YAML registry overriding Pipeline
	PromptFile   string `yaml:"prompt_file" json:"prompt_file"`     // Optional YAML stage -> prompt file

	// Routing
	DefaultStage     Stage            `yaml:"default_stage" json:"default_stage"`         // Substituted on routing ambiguity
	InitialStage     Stage            `yaml:"initial_stage" json:"initial_stage"`         // Used when there is no current stage to advance from
	FallbackMode     FallbackMode     `yaml:"fallback_mode" json:"fallback_mode"`
	SuggestionPolicy SuggestionPolicy `yaml:"suggestion_policy" json:"suggestion_policy"`

	// Agent invocation
	HistoryWindow        int      `yaml:"history_window" json:"history_window"` // Transcript entries included in the prompt
	Acknowledge          bool     `yaml:"acknowledge" json:"acknowledge"`       // Issue the orchestrator acknowledgement call
	RegulatoryReferences []string `yaml:"regulatory_references" json:"regulatory_references"`
	WelcomeMessage       string   `yaml:"welcome_message" json:"welcome_message"`

	// Model provider
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIKey     string `yaml:"-" json:"-"`
	APIKeyEnv  string `yaml:"api_key_env" json:"api_key_env"` // Extra env var checked first
	LLMTimeout int    `yaml:"llm_timeout" json:"llm_timeout"` // Seconds; enforced by the provider, not the core

	// Budgets
	Temperature           float64 `yaml:"temperature" json:"temperature"`
	MaxTokens             int     `yaml:"max_tokens" json:"max_tokens"`
	ClassifierTemperature float64 `yaml:"classifier_temperature" json:"classifier_temperature"`
	ClassifierMaxTokens   int     `yaml:"classifier_max_tokens" json:"classifier_max_tokens"`
	AckTemperature        float64 `yaml:"ack_temperature" json:"ack_temperature"`
	AckMaxTokens          int     `yaml:"ack_max_tokens" json:"ack_max_tokens"`

	// Logging
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultWelcomeMessage seeds every new session.
const DefaultWelcomeMessage = "Olá! Sou o **Agente Orquestrador** do Synapse.IA. " +
	"Qual artefato você deseja elaborar? Exemplos: *PCA, DFD, ETP, TR, Contrato, Fiscalização, Checklist*.\n\n" +
	"Você pode também já descrever seus **insumos** (objeto, justificativa, requisitos, prazos, critérios etc.)."

// DefaultCoreConfig returns a CoreConfig with default values.
func DefaultCoreConfig() *CoreConfig {
	return &CoreConfig{
		Pipeline: RegistryDefault,

		DefaultStage:     StageTR,
		InitialStage:     "", // First stage of the pipeline
		FallbackMode:     FallbackClassify,
		SuggestionPolicy: SuggestionModel,

		HistoryWindow: 4,
		Acknowledge:   true,
		RegulatoryReferences: []string{
			"Lei nº 14.133/2021",
			"Decreto nº 10.947/2022",
			"IN SEGES/ME nº 58/2022",
			"IN SEGES/ME nº 65/2021",
			"Provimentos e Resoluções do TJSP",
		},
		WelcomeMessage: DefaultWelcomeMessage,

		Provider:   ProviderOpenAI,
		Model:      "gpt-4o-mini",
		LLMTimeout: 120,

		Temperature:           0.3,
		MaxTokens:             900,
		ClassifierTemperature: 0.0,
		ClassifierMaxTokens:   5,
		AckTemperature:        0.6,
		AckMaxTokens:          120,

		LogLevel: "INFO",
	}
}

// Validate checks enum fields and budgets.
func (c *CoreConfig) Validate() error {
	switch c.FallbackMode {
	case FallbackClassify, FallbackAdvance:
	default:
		return fmt.Errorf("invalid fallback_mode '%s'. Must be one of: classify, advance", c.FallbackMode)
	}
	switch c.SuggestionPolicy {
	case SuggestionModel, SuggestionPipeline:
	default:
		return fmt.Errorf("invalid suggestion_policy '%s'. Must be one of: model, pipeline", c.SuggestionPolicy)
	}
	switch c.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("invalid provider '%s'. Must be one of: openai, gemini", c.Provider)
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history_window must be >= 0, got %d", c.HistoryWindow)
	}
	if c.MaxTokens <= 0 || c.ClassifierMaxTokens <= 0 || c.AckMaxTokens <= 0 {
		return fmt.Errorf("token budgets must be positive")
	}
	if c.DefaultStage == "" {
		return fmt.Errorf("default_stage is required")
	}
	return nil
}

// ValidateAgainst checks that configured stages exist in the registry.
func (c *CoreConfig) ValidateAgainst(r *Registry) error {
	if !r.Contains(c.DefaultStage) {
		return fmt.Errorf("default_stage '%s' not in pipeline '%s'", c.DefaultStage, r.Name)
	}
	if c.InitialStage != "" && !r.Contains(c.InitialStage) {
		return fmt.Errorf("initial_stage '%s' not in pipeline '%s'", c.InitialStage, r.Name)
	}
	return nil
}

// LoadCoreConfig loads defaults overlaid with the YAML file at path.
// An empty path or a missing file yields defaults.
func LoadCoreConfig(path string) (*CoreConfig, error) {
	c := DefaultCoreConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// ApplyEnv overlays environment settings. getenv is os.Getenv in production.
func (c *CoreConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv("SYNAPSE_PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}
	if v := getenv("SYNAPSE_MODEL"); v != "" {
		c.Model = v
	}
	if v := getenv("SYNAPSE_BASE_URL"); v != "" {
		c.BaseURL = v
	}

	for _, name := range c.credentialEnvNames() {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			c.APIKey = v
			return
		}
	}
}

func (c *CoreConfig) credentialEnvNames() []string {
	names := make([]string, 0, 3)
	if c.APIKeyEnv != "" {
		names = append(names, c.APIKeyEnv)
	}
	names = append(names, "SYNAPSE_API_KEY")
	if c.Provider == ProviderGemini {
		names = append(names, "GEMINI_API_KEY")
	} else {
		names = append(names, "OPENAI_API_KEY")
	}
	return names
}

// CheckCredential reports ErrMissingCredential when no API key is set.
func (c *CoreConfig) CheckCredential() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: set one of %s", ErrMissingCredential, strings.Join(c.credentialEnvNames(), ", "))
	}
	return nil
}

// CredentialPresent reports whether an API key is configured.
func (c *CoreConfig) CredentialPresent() bool {
	return c.CheckCredential() == nil
}

// LoadRegistry resolves the configured registry: RegistryFile wins over Pipeline.
func (c *CoreConfig) LoadRegistry() (*Registry, error) {
	if c.RegistryFile != "" {
		return LoadRegistryFile(c.RegistryFile)
	}
	return RegistryByName(c.Pipeline)
}

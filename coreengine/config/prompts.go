package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrPromptFileMissing is returned when a configured prompt file does not exist.
var ErrPromptFileMissing = errors.New("prompt file not found")

// PromptSource returns the system prompt for a stage.
// Implementations never fail: unknown stages get a placeholder.
type PromptSource interface {
	Prompt(stage Stage) string
}

// PlaceholderPrompt is used when no definition exists for a stage.
func PlaceholderPrompt(stage Stage) string {
	return fmt.Sprintf("Você é o Agente %s.", stage)
}

// FilePromptSource serves prompts from a YAML file keyed by stage name,
// delegating to Fallback for stages the file does not define.
type FilePromptSource struct {
	Path     string
	prompts  map[Stage]string
	Fallback PromptSource
}

// LoadPromptFile reads a YAML mapping of stage -> prompt text.
// A missing file yields ErrPromptFileMissing along with a source that
// serves only the fallback, so callers can warn and carry on.
func LoadPromptFile(path string, fallback PromptSource) (*FilePromptSource, error) {
	src := &FilePromptSource{Path: path, prompts: map[Stage]string{}, Fallback: fallback}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return src, fmt.Errorf("%w: %s", ErrPromptFileMissing, path)
		}
		return src, fmt.Errorf("read prompt file: %w", err)
	}

	raw := map[string]string{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return src, fmt.Errorf("parse prompt file %s: %w", path, err)
	}
	for k, v := range raw {
		key := Stage(strings.ToUpper(strings.TrimSpace(k)))
		if key != "" && strings.TrimSpace(v) != "" {
			src.prompts[key] = v
		}
	}
	return src, nil
}

// Prompt implements PromptSource.
func (s *FilePromptSource) Prompt(stage Stage) string {
	if p, ok := s.prompts[stage]; ok {
		return p
	}
	if s.Fallback != nil {
		return s.Fallback.Prompt(stage)
	}
	return PlaceholderPrompt(stage)
}

// Len returns the number of prompts loaded from the file.
func (s *FilePromptSource) Len() int { return len(s.prompts) }

// registryFile is the on-disk shape of a custom registry.
type registryFile struct {
	Name   string            `yaml:"name"`
	Stages []StageDefinition `yaml:"stages"`
	Rules  []struct {
		Pattern string `yaml:"pattern"`
		Stage   Stage  `yaml:"stage"`
	} `yaml:"rules"`
	Confirmations []string `yaml:"confirmations"`
}

// LoadRegistryFile builds a registry from a YAML file. Rule order in the
// file is the priority order. Omitted confirmations default to DefaultConfirmations.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a registry from YAML bytes.
func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	rules := make([]KeywordRule, 0, len(f.Rules))
	for _, r := range f.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule for %s: %w", r.Stage, err)
		}
		rules = append(rules, KeywordRule{Pattern: re, Stage: Stage(strings.ToUpper(string(r.Stage)))})
	}

	confirmations := f.Confirmations
	if len(confirmations) == 0 {
		confirmations = DefaultConfirmations
	}
	return NewRegistry(f.Name, f.Stages, rules, confirmations)
}

// Package config provides the stage registry and core configuration for the Synapse orchestrator.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Stage identifies one step of the document-generation pipeline.
type Stage string

// Built-in stage identifiers.
const (
	StagePCA          Stage = "PCA"
	StageDFD          Stage = "DFD"
	StageETP          Stage = "ETP"
	StageITF          Stage = "ITF"
	StageTR           Stage = "TR"
	StagePesquisa     Stage = "PESQUISA"
	StageMatriz       Stage = "MATRIZ"
	StageEdital       Stage = "EDITAL"
	StageContrato     Stage = "CONTRATO"
	StageFiscalizacao Stage = "FISCALIZACAO"
	StageChecklist    Stage = "CHECKLIST"
)

// String returns the stage key.
func (s Stage) String() string { return string(s) }

// StageDefinition is the static configuration of one stage (its agent).
type StageDefinition struct {
	Key    Stage  `yaml:"key" json:"key"`
	Title  string `yaml:"title" json:"title"`
	Prompt string `yaml:"prompt" json:"prompt"`
	Order  int    `yaml:"-" json:"order"` // Position in the pipeline, assigned by the registry
}

// KeywordRule maps a pattern over case-folded user text to a stage.
// Rules are evaluated in declaration order; the first match wins.
type KeywordRule struct {
	Pattern *regexp.Regexp
	Stage   Stage
}

// Matches reports whether the rule matches the already case-folded text.
func (r KeywordRule) Matches(folded string) bool {
	return r.Pattern != nil && r.Pattern.MatchString(folded)
}

// Registry is the immutable stage configuration: ordered stages, keyword
// rules and confirmation tokens.
type Registry struct {
	Name string

	stages        []*StageDefinition
	index         map[Stage]int
	rules         []KeywordRule
	confirmations map[string]struct{}
}

// NewRegistry validates and builds a registry. Stage order is the slice order.
func NewRegistry(name string, stages []StageDefinition, rules []KeywordRule, confirmations []string) (*Registry, error) {
	if name == "" {
		return nil, fmt.Errorf("Registry.Name is required")
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("registry '%s' has no stages", name)
	}

	r := &Registry{
		Name:          name,
		stages:        make([]*StageDefinition, 0, len(stages)),
		index:         make(map[Stage]int, len(stages)),
		rules:         make([]KeywordRule, 0, len(rules)),
		confirmations: make(map[string]struct{}, len(confirmations)),
	}

	for i := range stages {
		def := stages[i]
		def.Key = Stage(strings.ToUpper(strings.TrimSpace(string(def.Key))))
		if def.Key == "" {
			return nil, fmt.Errorf("registry '%s' stage %d has no key", name, i)
		}
		if _, dup := r.index[def.Key]; dup {
			return nil, fmt.Errorf("duplicate stage key: %s", def.Key)
		}
		def.Order = i
		r.index[def.Key] = i
		r.stages = append(r.stages, &def)
	}

	for i, rule := range rules {
		if rule.Pattern == nil {
			return nil, fmt.Errorf("registry '%s' rule %d has no pattern", name, i)
		}
		if _, ok := r.index[rule.Stage]; !ok {
			return nil, fmt.Errorf("rule '%s' routes to unknown stage '%s'", rule.Pattern, rule.Stage)
		}
		r.rules = append(r.rules, rule)
	}

	for _, c := range confirmations {
		if token := foldToken(c); token != "" {
			r.confirmations[token] = struct{}{}
		}
	}

	return r, nil
}

// Stages returns the pipeline order.
func (r *Registry) Stages() []Stage {
	out := make([]Stage, len(r.stages))
	for i, def := range r.stages {
		out[i] = def.Key
	}
	return out
}

// Definitions returns copies of all stage definitions in pipeline order.
func (r *Registry) Definitions() []StageDefinition {
	out := make([]StageDefinition, len(r.stages))
	for i, def := range r.stages {
		out[i] = *def
	}
	return out
}

// Get returns the definition for a stage.
func (r *Registry) Get(stage Stage) (StageDefinition, bool) {
	i, ok := r.index[stage]
	if !ok {
		return StageDefinition{}, false
	}
	return *r.stages[i], true
}

// Contains reports whether the stage belongs to this registry.
func (r *Registry) Contains(stage Stage) bool {
	_, ok := r.index[stage]
	return ok
}

// Position returns the pipeline index of a stage.
func (r *Registry) Position(stage Stage) (int, bool) {
	i, ok := r.index[stage]
	return i, ok
}

// Successor returns the stage immediately after the given one.
// Returns false for the terminal stage and for unknown stages.
func (r *Registry) Successor(stage Stage) (Stage, bool) {
	i, ok := r.index[stage]
	if !ok || i+1 >= len(r.stages) {
		return "", false
	}
	return r.stages[i+1].Key, true
}

// First returns the initial pipeline stage.
func (r *Registry) First() Stage {
	return r.stages[0].Key
}

// Last returns the terminal pipeline stage.
func (r *Registry) Last() Stage {
	return r.stages[len(r.stages)-1].Key
}

// Rules returns the keyword rules in priority order.
func (r *Registry) Rules() []KeywordRule {
	out := make([]KeywordRule, len(r.rules))
	copy(out, r.rules)
	return out
}

// IsConfirmation reports whether text is one of the configured confirmation tokens.
func (r *Registry) IsConfirmation(text string) bool {
	_, ok := r.confirmations[foldToken(text)]
	return ok
}

// ParseStage normalizes a free-form label ("tr", " Fiscalização ", "TR.")
// into a known stage.
func (r *Registry) ParseStage(label string) (Stage, bool) {
	var b strings.Builder
	for _, c := range strings.ToUpper(label) {
		c = unaccent(c)
		if c >= 'A' && c <= 'Z' {
			b.WriteRune(c)
		}
	}
	stage := Stage(b.String())
	if !r.Contains(stage) {
		return "", false
	}
	return stage, true
}

// Prompt implements PromptSource with the registry's static prompts.
func (r *Registry) Prompt(stage Stage) string {
	if def, ok := r.Get(stage); ok && strings.TrimSpace(def.Prompt) != "" {
		return def.Prompt
	}
	return PlaceholderPrompt(stage)
}

// foldToken lowercases, trims and drops trailing punctuation.
func foldToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRightFunc(s, func(c rune) bool {
		return unicode.IsPunct(c) || unicode.IsSpace(c)
	})
}

func unaccent(c rune) rune {
	switch c {
	case 'Á', 'À', 'Â', 'Ã', 'Ä':
		return 'A'
	case 'É', 'Ê', 'È':
		return 'E'
	case 'Í', 'Ì':
		return 'I'
	case 'Ó', 'Ô', 'Õ', 'Ò':
		return 'O'
	case 'Ú', 'Ü', 'Ù':
		return 'U'
	case 'Ç':
		return 'C'
	}
	return c
}

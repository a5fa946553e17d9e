// Package progression tracks pipeline progress and proposes the next stage.
package progression

import (
	"strings"
	"unicode"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
)

// StageStatus is one entry of the progress indicator.
type StageStatus struct {
	Stage     config.Stage `json:"stage"`
	Title     string       `json:"title"`
	Completed bool         `json:"completed"`
}

// Tracker walks the fixed pipeline order of a registry.
type Tracker struct {
	registry *config.Registry
	policy   config.SuggestionPolicy
}

// NewTracker creates a tracker. An empty policy means SuggestionModel.
func NewTracker(registry *config.Registry, policy config.SuggestionPolicy) *Tracker {
	if policy == "" {
		policy = config.SuggestionModel
	}
	return &Tracker{registry: registry, policy: policy}
}

// Next returns the immediate successor of current, or false when current is
// terminal or not in the pipeline.
func (t *Tracker) Next(current config.Stage) (config.Stage, bool) {
	return t.registry.Successor(current)
}

// Propose picks the stage to offer after a turn on current.
// Under SuggestionModel the first suggestion naming a known stage other than
// current wins; otherwise, and under SuggestionPipeline, the fixed successor.
func (t *Tracker) Propose(current config.Stage, suggestions []string) (config.Stage, bool) {
	if t.policy == config.SuggestionModel {
		for _, s := range suggestions {
			if stage, ok := t.suggestedStage(s); ok && stage != current {
				return stage, true
			}
		}
	}
	return t.Next(current)
}

// suggestedStage reads a stage from "ETP", "Gerar o ETP" or "Contrato.".
func (t *Tracker) suggestedStage(s string) (config.Stage, bool) {
	if stage, ok := t.registry.ParseStage(s); ok {
		return stage, true
	}
	words := strings.FieldsFunc(s, func(c rune) bool { return !unicode.IsLetter(c) })
	for _, w := range words {
		if stage, ok := t.registry.ParseStage(w); ok {
			return stage, true
		}
	}
	return "", false
}

// Progress classifies every stage in pipeline order. A stage is completed
// exactly when completed reports an artefact for it.
func (t *Tracker) Progress(completed func(config.Stage) bool) []StageStatus {
	defs := t.registry.Definitions()
	out := make([]StageStatus, len(defs))
	for i, def := range defs {
		out[i] = StageStatus{
			Stage:     def.Key,
			Title:     def.Title,
			Completed: completed != nil && completed(def.Key),
		}
	}
	return out
}

// Done reports whether every stage is completed.
func Done(statuses []StageStatus) bool {
	for _, s := range statuses {
		if !s.Completed {
			return false
		}
	}
	return len(statuses) > 0
}

// RenderProgress renders "✅ PCA → ⏳ DFD → ...".
func RenderProgress(statuses []StageStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		marker := "⏳"
		if s.Completed {
			marker = "✅"
		}
		parts[i] = marker + " " + string(s.Stage)
	}
	return strings.Join(parts, " → ")
}

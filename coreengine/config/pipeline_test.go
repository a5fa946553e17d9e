package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Registry Tests
// =============================================================================

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []Stage{StagePCA, StageDFD, StageETP, StageTR, StageContrato, StageFiscalizacao, StageChecklist}, r.Stages())
	assert.Equal(t, StagePCA, r.First())
	assert.Equal(t, StageChecklist, r.Last())

	pos, ok := r.Position(StageTR)
	require.True(t, ok)
	assert.Equal(t, 3, pos)

	def, ok := r.Get(StageTR)
	require.True(t, ok)
	assert.Equal(t, 3, def.Order)
	assert.Contains(t, def.Prompt, "Termo de Referência")
}

func TestLegacyRegistryContainsExtendedStages(t *testing.T) {
	r := LegacyRegistry()

	for _, s := range []Stage{StageITF, StagePesquisa, StageMatriz, StageEdital} {
		assert.True(t, r.Contains(s), "legacy pipeline should contain %s", s)
	}
	assert.False(t, r.Contains(StagePCA))
	assert.Equal(t, StageDFD, r.First())
}

func TestRegistrySuccessor(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		from Stage
		want Stage
		ok   bool
	}{
		{StagePCA, StageDFD, true},
		{StageDFD, StageETP, true},
		{StageTR, StageContrato, true},
		{StageFiscalizacao, StageChecklist, true},
		{StageChecklist, "", false},
		{Stage("UNKNOWN"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			got, ok := r.Successor(tt.from)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRegistryValidation(t *testing.T) {
	stages := []StageDefinition{{Key: "A"}, {Key: "B"}}

	t.Run("missing name", func(t *testing.T) {
		_, err := NewRegistry("", stages, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Name is required")
	})

	t.Run("no stages", func(t *testing.T) {
		_, err := NewRegistry("empty", nil, nil, nil)
		require.Error(t, err)
	})

	t.Run("duplicate key", func(t *testing.T) {
		_, err := NewRegistry("dup", []StageDefinition{{Key: "A"}, {Key: "a"}}, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate stage key")
	})

	t.Run("rule to unknown stage", func(t *testing.T) {
		rules := []KeywordRule{{Pattern: regexp.MustCompile("x"), Stage: "Z"}}
		_, err := NewRegistry("bad", stages, rules, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown stage 'Z'")
	})
}

func TestRulePriorityIsDeclarationOrder(t *testing.T) {
	r := DefaultRegistry()
	rules := r.Rules()
	require.NotEmpty(t, rules)

	first := func(text string) Stage {
		folded := strings.ToLower(text)
		for _, rule := range rules {
			if rule.Matches(folded) {
				return rule.Stage
			}
		}
		return ""
	}

	assert.Equal(t, StageTR, first("Quero um TR para vigilância"))
	assert.Equal(t, StageFiscalizacao, first("Plano de fiscalização do contrato"))
	assert.Equal(t, StageContrato, first("minuta do contrato de limpeza"))
	assert.Equal(t, StageETP, first("preciso do estudo técnico preliminar"))
	assert.Equal(t, Stage(""), first("serviço de trânsito"), "tr must not match inside a word with accents")
}

func TestIsConfirmation(t *testing.T) {
	r := DefaultRegistry()

	assert.True(t, r.IsConfirmation("sim"))
	assert.True(t, r.IsConfirmation("  Sim! "))
	assert.True(t, r.IsConfirmation("pode gerar."))
	assert.False(t, r.IsConfirmation("sim, mas para outro objeto"))
	assert.False(t, r.IsConfirmation(""))
}

func TestParseStage(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		label string
		want  Stage
		ok    bool
	}{
		{"TR", StageTR, true},
		{" tr\n", StageTR, true},
		{"ETP.", StageETP, true},
		{"Fiscalização", StageFiscalizacao, true},
		{"EDITAL", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := r.ParseStage(tt.label)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryByName(t *testing.T) {
	r, err := RegistryByName("")
	require.NoError(t, err)
	assert.Equal(t, RegistryDefault, r.Name)

	r, err = RegistryByName(RegistryLegacy)
	require.NoError(t, err)
	assert.Equal(t, RegistryLegacy, r.Name)

	_, err = RegistryByName("nope")
	require.Error(t, err)
}

// =============================================================================
// Prompt Source Tests
// =============================================================================

func TestRegistryPromptPlaceholder(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "Você é o Agente XYZ.", r.Prompt("XYZ"))
	assert.NotEqual(t, PlaceholderPrompt(StageDFD), r.Prompt(StageDFD))
}

func TestLoadPromptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tr: Prompt customizado do TR\nETP: \"\"\n"), 0o600))

	src, err := LoadPromptFile(path, DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, 1, src.Len())
	assert.Equal(t, "Prompt customizado do TR", src.Prompt(StageTR))
	assert.Contains(t, src.Prompt(StageETP), "Estudo Técnico Preliminar")
	assert.Equal(t, PlaceholderPrompt("NOVO"), src.Prompt("NOVO"))
}

func TestLoadPromptFileMissing(t *testing.T) {
	src, err := LoadPromptFile(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.ErrorIs(t, err, ErrPromptFileMissing)
	require.NotNil(t, src)
	assert.Equal(t, PlaceholderPrompt(StageTR), src.Prompt(StageTR))
}

func TestParseRegistry(t *testing.T) {
	data := []byte(`
name: mini
stages:
  - key: dfd
    title: Demanda
    prompt: Agente DFD
  - key: TR
rules:
  - pattern: 'termo'
    stage: tr
  - pattern: 'demanda'
    stage: DFD
`)
	r, err := ParseRegistry(data)
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageDFD, StageTR}, r.Stages())
	require.Len(t, r.Rules(), 2)
	assert.Equal(t, StageTR, r.Rules()[0].Stage)
	assert.True(t, r.IsConfirmation("sim"))
	assert.Equal(t, PlaceholderPrompt(StageTR), r.Prompt(StageTR))
}

func TestParseRegistryBadPattern(t *testing.T) {
	_, err := ParseRegistry([]byte("name: x\nstages: [{key: A}]\nrules: [{pattern: '(', stage: A}]\n"))
	require.Error(t, err)
}

package progression

import (
	"testing"

	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Next Tests
// =============================================================================

func TestNextTerminalIsNone(t *testing.T) {
	tr := NewTracker(config.DefaultRegistry(), config.SuggestionPipeline)

	_, ok := tr.Next(config.StageChecklist)
	assert.False(t, ok)

	_, ok = tr.Next(config.Stage("DESCONHECIDO"))
	assert.False(t, ok, "unknown stage has no successor")
}

func TestNextIsStrictlyOrderPreserving(t *testing.T) {
	for _, reg := range []*config.Registry{config.DefaultRegistry(), config.LegacyRegistry()} {
		tr := NewTracker(reg, config.SuggestionPipeline)
		stages := reg.Stages()
		for i, s := range stages[:len(stages)-1] {
			next, ok := tr.Next(s)
			require.True(t, ok)
			assert.Equal(t, stages[i+1], next)

			if after, ok := tr.Next(next); ok {
				assert.NotEqual(t, s, after)
			}
		}
	}
}

func TestNextFromDFDIsETP(t *testing.T) {
	next, ok := NewTracker(config.DefaultRegistry(), "").Next(config.StageDFD)
	require.True(t, ok)
	assert.Equal(t, config.StageETP, next)
}

// =============================================================================
// Propose Tests
// =============================================================================

func TestProposeModelPolicy(t *testing.T) {
	tr := NewTracker(config.DefaultRegistry(), config.SuggestionModel)

	tests := []struct {
		name        string
		current     config.Stage
		suggestions []string
		want        config.Stage
		ok          bool
	}{
		{"model suggestion wins", config.StageDFD, []string{"TR"}, config.StageTR, true},
		{"sentence suggestion", config.StageETP, []string{"Gerar o Contrato"}, config.StageContrato, true},
		{"first recognised wins", config.StageDFD, []string{"revisar prazos", "ETP", "TR"}, config.StageETP, true},
		{"same stage ignored", config.StageTR, []string{"TR"}, config.StageContrato, true},
		{"unknown falls back", config.StageDFD, []string{"EDITAL"}, config.StageETP, true},
		{"empty falls back", config.StagePCA, nil, config.StageDFD, true},
		{"terminal with suggestion", config.StageChecklist, []string{"PCA"}, config.StagePCA, true},
		{"terminal without suggestion", config.StageChecklist, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tr.Propose(tt.current, tt.suggestions)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProposePipelinePolicyIgnoresSuggestions(t *testing.T) {
	tr := NewTracker(config.DefaultRegistry(), config.SuggestionPipeline)

	got, ok := tr.Propose(config.StageDFD, []string{"TR"})
	require.True(t, ok)
	assert.Equal(t, config.StageETP, got)
}

// =============================================================================
// Progress Tests
// =============================================================================

func TestProgressUsesArtefactPresence(t *testing.T) {
	tr := NewTracker(config.DefaultRegistry(), "")
	done := map[config.Stage]bool{config.StagePCA: true, config.StageTR: true}

	statuses := tr.Progress(func(s config.Stage) bool { return done[s] })
	require.Len(t, statuses, 7)
	assert.True(t, statuses[0].Completed)
	assert.False(t, statuses[1].Completed)
	assert.True(t, statuses[3].Completed)
	assert.Equal(t, "Termo de Referência", statuses[3].Title)
	assert.False(t, Done(statuses))

	assert.Equal(t, "✅ PCA → ⏳ DFD → ⏳ ETP → ✅ TR → ⏳ CONTRATO → ⏳ FISCALIZACAO → ⏳ CHECKLIST",
		RenderProgress(statuses))
}

func TestProgressNilSetIsAllPending(t *testing.T) {
	statuses := NewTracker(config.DefaultRegistry(), "").Progress(nil)
	for _, s := range statuses {
		assert.False(t, s.Completed)
	}
	assert.False(t, Done(nil))
}

package decoder

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Readiness Tests
// =============================================================================

func TestParseReadiness(t *testing.T) {
	tests := []struct {
		marker string
		want   Readiness
	}{
		{"✅", ReadinessReady},
		{" ✔ ok", ReadinessReady},
		{"pronto", ReadinessReady},
		{"⚠️", ReadinessPartial},
		{"Parcial", ReadinessPartial},
		{"❌", ReadinessMissing},
		{"faltante", ReadinessMissing},
		{"não informado", ReadinessMissing},
		{"pendente", ReadinessMissing},
		{"Pendente de envio", ReadinessMissing},
		{"⚠️ pendente", ReadinessPartial},
		{"", ReadinessUnknown},
		{"talvez", ReadinessUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.marker, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseReadiness(tt.marker))
		})
	}
}

func TestInputItemsFromSequence(t *testing.T) {
	rec := Decode(`{"insumos": [{"nome": "objeto", "status": "✅"}, {"item": "prazo", "marcador": "⚠️"}, "garantia"]}`)

	require.Len(t, rec.Insumos, 3)
	assert.Equal(t, InputItem{Name: "objeto", Marker: "✅", Readiness: ReadinessReady}, rec.Insumos[0])
	assert.Equal(t, ReadinessPartial, rec.Insumos[1].Readiness)
	assert.Equal(t, InputItem{Name: "garantia", Readiness: ReadinessUnknown}, rec.Insumos[2])
}

func TestProximosPassosAcceptsString(t *testing.T) {
	rec := Decode(`{"proximos_passos": "ETP"}`)
	assert.Equal(t, []string{"ETP"}, rec.ProximosPassos)
}

func TestWarningRecord(t *testing.T) {
	rec := WarningRecord("Falha ao acionar o agente TR: timeout")

	assert.True(t, rec.Warning)
	assert.True(t, strings.HasPrefix(Render(rec), "⚠️ "))
	assert.Contains(t, Render(rec), "TR")
}

func TestRecordMappingPreservesCanonicalOrder(t *testing.T) {
	rec := Decode(`{"resumo": "ok", "extra": "x", "insumos": {"objeto": "✅"}}`)

	assert.Equal(t, []string{FieldInsumos, FieldResumo, "extra"}, rec.Mapping().Keys())
}

func TestToNative(t *testing.T) {
	rec := Decode(`{"artefato": {"secoes": ["a", "b"], "n": 1}}`)

	got := ToNative(rec.Artefato)
	assert.Equal(t, map[string]any{"secoes": []any{"a", "b"}, "n": float64(1)}, got)
	assert.Nil(t, ToNative(nil))
}

func TestToNativeMatchesEncodingJSON(t *testing.T) {
	payload := `{"valor": 12.5, "itens": [1, true, null, "x"], "ativo": false}`
	rec := Decode(payload)
	require.Equal(t, StrategyStrict, rec.Strategy)

	var direct map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &direct))
	assert.Equal(t, direct, ToNative(rec.Mapping()))
}

func TestScalarsRenderAsLiterals(t *testing.T) {
	rec := Decode(`{"artefato": {"valor": 12.50, "continuo": true}, "proximos_passos": [3]}`)

	assert.Contains(t, Render(rec), "- **Valor**: 12.50\n- **Continuo**: true")
	assert.Equal(t, []string{"3"}, rec.ProximosPassos)
	assert.Equal(t, "12.50", AsText(Number("12.50")))
	assert.Equal(t, "false", AsText(Bool(false)))
	assert.False(t, IsEmpty(Bool(false)))
}

// =============================================================================
// Render Tests
// =============================================================================

func TestRenderSections(t *testing.T) {
	rec := Decode(`{
		"insumos": {"objeto": "✅", "prazo": "⚠️"},
		"resumo": "Contratação de vigilância",
		"artefato": {"criterios_de_medicao": ["postos", "horas"], "sla": "99%"},
		"perguntas_faltantes": ["Qual a vigência?"],
		"proximos_passos": ["CONTRATO"]
	}`)

	out := Render(rec)
	assert.Contains(t, out, "**Insumos**\n- ✅ objeto\n- ⚠️ prazo")
	assert.Contains(t, out, "**Resumo**\nContratação de vigilância")
	assert.Contains(t, out, "- **Criterios de medicao**:\n  - postos\n  - horas")
	assert.Contains(t, out, "- **Sla**: 99%")
	assert.Contains(t, out, "**Perguntas faltantes**\n1. Qual a vigência?")
	assert.Contains(t, out, "**Próximos passos**\n- CONTRATO")

	assert.Less(t, strings.Index(out, "**Insumos**"), strings.Index(out, "**Resumo**"))
}

func TestRenderDegradedIsRawText(t *testing.T) {
	assert.Equal(t, "texto livre", Render(Decode("texto livre")))
}

func TestRenderValueNested(t *testing.T) {
	v := &Mapping{Entries: []Entry{
		{Key: "a", Value: Sequence{Text("x"), &Mapping{Entries: []Entry{{Key: "b", Value: Text("y")}}}}},
		{Key: "vazio", Value: nil},
	}}
	assert.Equal(t, "- **A**:\n  - x\n  - **B**: y\n- **Vazio**", RenderValue(v))
	assert.Equal(t, "livre", RenderValue(Text("livre")))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(Text("")))
	assert.True(t, IsEmpty(&Mapping{}))
	assert.True(t, IsEmpty(Sequence{}))
	assert.False(t, IsEmpty(Text("x")))
}

package decoder

import (
	"strings"
)

// Well-known top-level field names of a stage reply.
const (
	FieldInsumos            = "insumos"
	FieldResumo             = "resumo"
	FieldArtefato           = "artefato"
	FieldProximosPassos     = "proximos_passos"
	FieldPerguntasFaltantes = "perguntas_faltantes"
)

// Readiness is the normalized state of one input item.
type Readiness string

const (
	ReadinessReady   Readiness = "ready"
	ReadinessPartial Readiness = "partial"
	ReadinessMissing Readiness = "missing"
	ReadinessUnknown Readiness = "unknown"
)

// Marker returns the glyph shown for the readiness state.
func (r Readiness) Marker() string {
	switch r {
	case ReadinessReady:
		return "✅"
	case ReadinessPartial:
		return "⚠️"
	case ReadinessMissing:
		return "❌"
	default:
		return "❔"
	}
}

// ParseReadiness reads a model-supplied marker such as "✅", "⚠️ parcial" or "faltante".
func ParseReadiness(marker string) Readiness {
	m := strings.ToLower(strings.TrimSpace(marker))
	switch {
	case m == "":
		return ReadinessUnknown
	case strings.ContainsAny(m, "✅✔"), hasAnyPrefix(m, "ok", "pronto", "completo", "atendido", "sim", "ready"):
		return ReadinessReady
	case strings.Contains(m, "⚠"), hasAnyPrefix(m, "parcial", "incompleto", "partial"):
		return ReadinessPartial
	case strings.ContainsAny(m, "❌✖✗"), hasAnyPrefix(m, "faltante", "ausente", "falta", "pendente", "não", "nao", "missing"):
		return ReadinessMissing
	default:
		return ReadinessUnknown
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// InputItem is one named input with its readiness marker.
type InputItem struct {
	Name      string
	Marker    string
	Readiness Readiness
}

// Record is the decoded reply of a stage agent. Every field is optional.
type Record struct {
	Insumos            []InputItem
	Resumo             Value
	Artefato           Value
	ProximosPassos     []string
	PerguntasFaltantes []string
	Extra              []Entry // Unrecognised top-level keys, in order

	Degraded bool
	Warning  bool
	Strategy Strategy
}

// DegradedRecord keeps the raw text as the summary with empty inputs.
func DegradedRecord(raw string) Record {
	return Record{
		Insumos:  []InputItem{},
		Resumo:   Text(raw),
		Degraded: true,
		Strategy: StrategyDegraded,
	}
}

// WarningRecord builds a visible warning reply (provider unavailable,
// invocation failure). It is never stored as an artefact.
func WarningRecord(message string) Record {
	return Record{
		Resumo:   Text("⚠️ " + message),
		Warning:  true,
		Strategy: StrategyDegraded,
	}
}

// RecordFromValue builds a Record from an already parsed mapping.
func RecordFromValue(m *Mapping) Record {
	return fromMapping(m, StrategyStrict)
}

func fromMapping(m *Mapping, strategy Strategy) Record {
	rec := Record{Strategy: strategy}
	seen := make(map[string]bool, m.Len())
	for i := len(m.Entries) - 1; i >= 0; i-- {
		e := m.Entries[i]
		// Last duplicate wins.
		if seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		switch e.Key {
		case FieldInsumos:
			rec.Insumos = inputItems(e.Value)
		case FieldResumo:
			rec.Resumo = e.Value
		case FieldArtefato:
			rec.Artefato = e.Value
		case FieldProximosPassos:
			rec.ProximosPassos = textList(e.Value)
		case FieldPerguntasFaltantes:
			rec.PerguntasFaltantes = textList(e.Value)
		default:
			rec.Extra = append([]Entry{e}, rec.Extra...)
		}
	}
	return rec
}

// inputItems accepts {name: marker} or [{nome|item|name, status|marker}].
func inputItems(v Value) []InputItem {
	switch t := v.(type) {
	case *Mapping:
		items := make([]InputItem, 0, t.Len())
		for _, e := range t.Entries {
			marker := flatten(e.Value)
			items = append(items, InputItem{Name: e.Key, Marker: marker, Readiness: ParseReadiness(marker)})
		}
		return items
	case Sequence:
		items := make([]InputItem, 0, len(t))
		for _, entry := range t {
			switch it := entry.(type) {
			case *Mapping:
				name := firstText(it, "nome", "item", "name", "insumo")
				marker := firstText(it, "status", "marcador", "marker", "situacao")
				items = append(items, InputItem{Name: name, Marker: marker, Readiness: ParseReadiness(marker)})
			default:
				if name, ok := scalarText(it); ok {
					items = append(items, InputItem{Name: name, Readiness: ReadinessUnknown})
				}
			}
		}
		return items
	case nil:
		return nil
	default:
		name, ok := scalarText(t)
		if !ok {
			return nil
		}
		if strings.TrimSpace(name) == "" {
			return []InputItem{}
		}
		return []InputItem{{Name: name, Readiness: ReadinessUnknown}}
	}
}

func firstText(m *Mapping, keys ...string) string {
	for _, k := range keys {
		if v, ok := m.Get(k); ok {
			if s := flatten(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// textList accepts a list or a single string.
func textList(v Value) []string {
	switch t := v.(type) {
	case Sequence:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(flatten(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case *Mapping:
		out := make([]string, 0, t.Len())
		for _, e := range t.Entries {
			if s := flatten(e.Value); s != "" {
				out = append(out, e.Key+": "+s)
			} else {
				out = append(out, e.Key)
			}
		}
		return out
	case nil:
		return nil
	default:
		s, ok := scalarText(t)
		if !ok {
			return nil
		}
		if s = strings.TrimSpace(s); s != "" {
			return []string{s}
		}
		return []string{}
	}
}

// flatten renders a value on one line.
func flatten(v Value) string {
	if s, ok := scalarText(v); ok {
		return s
	}
	switch t := v.(type) {
	case Sequence:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case *Mapping:
		parts := make([]string, 0, t.Len())
		for _, e := range t.Entries {
			parts = append(parts, e.Key+": "+flatten(e.Value))
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// Summary returns the summary as one line, or "" when absent.
func (r Record) Summary() string {
	return flatten(r.Resumo)
}

// Mapping rebuilds the record as an ordered mapping in canonical field order.
func (r Record) Mapping() *Mapping {
	m := &Mapping{}
	if r.Insumos != nil {
		ins := &Mapping{}
		for _, it := range r.Insumos {
			ins.Entries = append(ins.Entries, Entry{Key: it.Name, Value: Text(it.Marker)})
		}
		m.Entries = append(m.Entries, Entry{Key: FieldInsumos, Value: ins})
	}
	if r.Resumo != nil {
		m.Entries = append(m.Entries, Entry{Key: FieldResumo, Value: r.Resumo})
	}
	if r.Artefato != nil {
		m.Entries = append(m.Entries, Entry{Key: FieldArtefato, Value: r.Artefato})
	}
	if r.ProximosPassos != nil {
		m.Entries = append(m.Entries, Entry{Key: FieldProximosPassos, Value: texts(r.ProximosPassos)})
	}
	if r.PerguntasFaltantes != nil {
		m.Entries = append(m.Entries, Entry{Key: FieldPerguntasFaltantes, Value: texts(r.PerguntasFaltantes)})
	}
	m.Entries = append(m.Entries, r.Extra...)
	return m
}

func texts(items []string) Sequence {
	seq := make(Sequence, len(items))
	for i, s := range items {
		seq[i] = Text(s)
	}
	return seq
}

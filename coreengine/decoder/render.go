package decoder

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Section headings used by Render.
const (
	headingInsumos   = "**Insumos**"
	headingResumo    = "**Resumo**"
	headingArtefato  = "**Artefato**"
	headingPerguntas = "**Perguntas faltantes**"
	headingPassos    = "**Próximos passos**"
)

// Render formats a record as Markdown. Degraded and warning records render
// their summary text unchanged.
func Render(r Record) string {
	if r.Degraded || r.Warning {
		return r.Summary()
	}

	var sections []string
	if len(r.Insumos) > 0 {
		var b strings.Builder
		b.WriteString(headingInsumos)
		for _, it := range r.Insumos {
			marker := it.Readiness.Marker()
			if it.Readiness == ReadinessUnknown && it.Marker != "" {
				marker = it.Marker
			}
			fmt.Fprintf(&b, "\n- %s %s", marker, it.Name)
		}
		sections = append(sections, b.String())
	}
	if !IsEmpty(r.Resumo) {
		sections = append(sections, headingResumo+"\n"+renderBlock(r.Resumo))
	}
	if !IsEmpty(r.Artefato) {
		sections = append(sections, headingArtefato+"\n"+renderBlock(r.Artefato))
	}
	for _, e := range r.Extra {
		if !IsEmpty(e.Value) {
			sections = append(sections, "**"+humanize(e.Key)+"**\n"+renderBlock(e.Value))
		}
	}
	if len(r.PerguntasFaltantes) > 0 {
		var b strings.Builder
		b.WriteString(headingPerguntas)
		for i, q := range r.PerguntasFaltantes {
			fmt.Fprintf(&b, "\n%d. %s", i+1, q)
		}
		sections = append(sections, b.String())
	}
	if len(r.ProximosPassos) > 0 {
		var b strings.Builder
		b.WriteString(headingPassos)
		for _, s := range r.ProximosPassos {
			fmt.Fprintf(&b, "\n- %s", s)
		}
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n\n")
}

// RenderValue formats any value as Markdown.
func RenderValue(v Value) string {
	return renderBlock(v)
}

func renderBlock(v Value) string {
	if s, ok := scalarText(v); ok {
		return s
	}
	var b strings.Builder
	writeValue(&b, v, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeValue(b *strings.Builder, v Value, depth int) {
	indent := strings.Repeat("  ", depth)
	if s, ok := scalarText(v); ok {
		fmt.Fprintf(b, "%s- %s\n", indent, s)
		return
	}
	switch t := v.(type) {
	case *Mapping:
		for _, e := range t.Entries {
			if s, ok := scalarText(e.Value); ok {
				fmt.Fprintf(b, "%s- **%s**: %s\n", indent, humanize(e.Key), s)
				continue
			}
			if e.Value == nil {
				fmt.Fprintf(b, "%s- **%s**\n", indent, humanize(e.Key))
				continue
			}
			fmt.Fprintf(b, "%s- **%s**:\n", indent, humanize(e.Key))
			writeValue(b, e.Value, depth+1)
		}
	case Sequence:
		for _, item := range t {
			if _, nested := item.(Sequence); nested {
				writeValue(b, item, depth+1)
				continue
			}
			writeValue(b, item, depth)
		}
	}
}

// humanize turns "criterios_de_medicao" into "Criterios de medicao".
func humanize(key string) string {
	s := strings.TrimSpace(strings.ReplaceAll(key, "_", " "))
	if s == "" {
		return key
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

package decoder

import (
	"strings"

	"github.com/jeeves-cluster-organization/synapse/coreengine/observability"
)

// Strategy records which decode step produced a Record.
type Strategy string

const (
	StrategyStrict   Strategy = "strict"   // Candidate parsed as-is
	StrategyRepaired Strategy = "repaired" // Parsed after the quote repair pass
	StrategyDegraded Strategy = "degraded" // Whole text kept as the summary
)

// Decode converts raw model output into a Record. It never fails:
//  1. strip one surrounding code fence
//  2. take the span from the first '{' to the last '}'
//  3. strict parse
//  4. on failure, repair quotes and trailing commas, then parse once more
//  5. otherwise degrade to {resumo: raw, insumos: {}}
func Decode(raw string) Record {
	rec := decode(raw)
	observability.RecordDecodeOutcome(string(rec.Strategy))
	return rec
}

func decode(raw string) Record {
	candidate, ok := extractObject(stripFence(raw))
	if !ok {
		return DegradedRecord(raw)
	}
	if m, err := parseObject(candidate); err == nil {
		return fromMapping(m, StrategyStrict)
	}
	if m, err := parseObject(repair(candidate)); err == nil {
		return fromMapping(m, StrategyRepaired)
	}
	return DegradedRecord(raw)
}

// stripFence removes a leading ```lang line and a trailing ``` marker.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimLeft(text[3:], "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractObject returns text[first '{' : last '}'].
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// repair turns single-quoted strings into double-quoted ones and drops commas
// that directly precede a closing bracket. Apostrophes inside "..." strings are
// kept. Inside a '...' string a bare " is escaped and \' unescaped; a ' closes
// the string only when followed by a structural character, so "d'água" inside
// '...' survives.
func repair(text string) string {
	const (
		outside = iota
		inDouble
		inSingle
	)
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text) + 8)

	state := outside
	escaped := false
	for i, c := range runes {
		switch state {
		case outside:
			switch c {
			case '"':
				state = inDouble
			case '\'':
				state = inSingle
				c = '"'
			}
			b.WriteRune(c)
		case inDouble:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				state = outside
			}
			b.WriteRune(c)
		case inSingle:
			switch {
			case escaped:
				escaped = false
				if c != '\'' {
					b.WriteRune('\\')
				}
				b.WriteRune(c)
			case c == '\\':
				escaped = true
			case c == '"':
				b.WriteString(`\"`)
			case c == '\'' && closesString(runes[i+1:]):
				state = outside
				b.WriteRune('"')
			default:
				b.WriteRune(c)
			}
		}
	}
	if escaped {
		b.WriteRune('\\')
	}
	return dropTrailingCommas(b.String())
}

// closesString reports whether a quote followed by rest ends a string value:
// the next non-space rune is structural or the text ends.
func closesString(rest []rune) bool {
	for _, c := range rest {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case ',', ':', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}

func dropTrailingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(text) && strings.IndexByte(" \t\r\n", text[j]) >= 0 {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

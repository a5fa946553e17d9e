// Package decoder turns best-effort JSON model output into a Record that is
// always renderable.
//
// Model payloads are dynamically shaped: a field may be a string, an object
// or a list depending on the reply. Value is a closed tagged union over those
// shapes; Render dispatches on Kind and never assumes a field is present.
package decoder

import "strconv"

// Kind tags the concrete shape of a Value.
type Kind int

const (
	KindText Kind = iota
	KindMapping
	KindSequence
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is one of Text, Number, Bool, *Mapping or Sequence. A nil Value is absent (JSON null
// or a missing key).
type Value interface {
	Kind() Kind
	sealed()
}

// Text is a string scalar.
type Text string

func (Text) Kind() Kind { return KindText }
func (Text) sealed()    {}

// Number is a JSON number kept as its literal, so "12.50" renders unchanged.
type Number string

func (Number) Kind() Kind { return KindText }
func (Number) sealed()    {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) Kind() Kind { return KindText }
func (Bool) sealed()    {}

// scalarText returns the textual form of a Text, Number or Bool.
func scalarText(v Value) (string, bool) {
	switch t := v.(type) {
	case Text:
		return string(t), true
	case Number:
		return string(t), true
	case Bool:
		return strconv.FormatBool(bool(t)), true
	default:
		return "", false
	}
}

// Entry is one key of a Mapping.
type Entry struct {
	Key   string
	Value Value
}

// Mapping is a JSON object with its key order preserved.
type Mapping struct {
	Entries []Entry
}

func (*Mapping) Kind() Kind { return KindMapping }
func (*Mapping) sealed()    {}

// Get returns the value for key. Duplicate keys resolve to the last one, like encoding/json.
func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	for i := len(m.Entries) - 1; i >= 0; i-- {
		if m.Entries[i].Key == key {
			return m.Entries[i].Value, true
		}
	}
	return nil, false
}

// Keys returns keys in document order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

// Sequence is a JSON array.
type Sequence []Value

func (Sequence) Kind() Kind { return KindSequence }
func (Sequence) sealed()    {}

// IsEmpty reports whether v renders to nothing.
func IsEmpty(v Value) bool {
	switch t := v.(type) {
	case nil:
		return true
	case Text:
		return len(t) == 0
	case Number, Bool:
		return false
	case *Mapping:
		return t.Len() == 0
	case Sequence:
		return len(t) == 0
	default:
		return true
	}
}

// AsText returns a one-line textual form of a scalar, or "" for compound values.
func AsText(v Value) string {
	s, _ := scalarText(v)
	return s
}

// ToNative converts a Value into map[string]any / []any / string / float64 /
// bool for serialization at the edges (gRPC structpb, JSON export), matching
// what encoding/json produces for the same payload.
func ToNative(v Value) any {
	switch t := v.(type) {
	case Text:
		return string(t)
	case Number:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return string(t)
		}
		return f
	case Bool:
		return bool(t)
	case *Mapping:
		if t == nil {
			return nil
		}
		out := make(map[string]any, len(t.Entries))
		for _, e := range t.Entries {
			out[e.Key] = ToNative(e.Value)
		}
		return out
	case Sequence:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = ToNative(item)
		}
		return out
	default:
		return nil
	}
}

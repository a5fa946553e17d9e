package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// parseObject strictly parses a single JSON object, preserving key order.
// Trailing non-whitespace after the object is an error.
func parseObject(text string) (*Mapping, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	m, err := parseMapping(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after object")
	}
	return m, nil
}

// parseMapping reads entries after an already-consumed '{'.
func parseMapping(dec *json.Decoder) (*Mapping, error) {
	m := &Mapping{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		v, err := parseValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		m.Entries = append(m.Entries, Entry{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return m, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseMapping(dec)
		case '[':
			seq := Sequence{}
			for dec.More() {
				item, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				seq = append(seq, item)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, err
			}
			return seq, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case string:
		return Text(t), nil
	case json.Number:
		return Number(t.String()), nil
	case bool:
		return Bool(t), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

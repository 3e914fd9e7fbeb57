// Package tscodec converts between native timestamps (time.Time) held in
// document fields and the portable, JSON-safe Marker form used in backup,
// snapshot and diff artifacts.
//
// Markers hold the instant in UTC, so a decoded time.Time is always in UTC:
// Decode(Encode(t)) is t.Equal-equal to t, not == to it when t carries
// another location.
//
// Marker recognition happens once, when JSON is parsed into Fields or Value
// (see UnmarshalJSON); Encode and Decode are plain type switches over the
// resulting tree.
package tscodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Marker is the portable form of a native timestamp.
type Marker struct {
	IsTimestamp bool   `json:"isTimestamp"`
	ISOValue    string `json:"isoValue"`
}

// NewMarker returns the marker for t.
func NewMarker(t time.Time) Marker {
	return Marker{IsTimestamp: true, ISOValue: t.UTC().Format(time.RFC3339Nano)}
}

// Time parses the marker back into a time.Time.
func (m Marker) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, m.ISOValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp marker %q: %w", m.ISOValue, err)
	}
	return t, nil
}

// Encode walks v and replaces every time.Time with a Marker. Maps and slices
// are copied; all other values pass through unchanged.
func Encode(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return NewMarker(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return NewMarker(*x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Encode(val)
		}
		return out
	case Fields:
		return EncodeFields(x)
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Encode(val)
		}
		return out
	default:
		return v
	}
}

// Decode is the inverse of Encode: every Marker becomes a time.Time. A marker
// whose value cannot be parsed is left as is.
func Decode(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Marker:
		t, err := x.Time()
		if err != nil {
			return x
		}
		return t
	case *Marker:
		if x == nil {
			return nil
		}
		return Decode(*x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Decode(val)
		}
		return out
	case Fields:
		return map[string]any(DecodeFields(x))
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Decode(val)
		}
		return out
	default:
		return v
	}
}

// Fields is a document body in portable form.
type Fields map[string]any

// EncodeFields encodes a native document body.
func EncodeFields(fields map[string]any) Fields {
	if fields == nil {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = Encode(v)
	}
	return out
}

// DecodeFields decodes a portable document body.
func DecodeFields(fields Fields) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = Decode(v)
	}
	return out
}

// UnmarshalJSON parses an object, lifting marker-shaped values into Marker
// and keeping numbers as json.Number.
func (f *Fields) UnmarshalJSON(data []byte) error {
	v, err := Unmarshal(data)
	if err != nil {
		return err
	}
	if v == nil {
		*f = nil
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("fields: expected JSON object, got %T", v)
	}
	*f = Fields(m)
	return nil
}

// Unmarshal parses arbitrary JSON into a tree whose timestamp markers are
// Marker values.
func Unmarshal(data []byte) (any, error) {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return lift(raw), nil
}

func lift(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if m, ok := asMarker(x); ok {
			return m
		}
		for k, val := range x {
			x[k] = lift(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = lift(val)
		}
		return x
	default:
		return v
	}
}

func asMarker(m map[string]any) (Marker, bool) {
	flag, ok := m["isTimestamp"].(bool)
	if !ok || !flag {
		return Marker{}, false
	}
	iso, ok := m["isoValue"].(string)
	if !ok || iso == "" {
		return Marker{}, false
	}
	return Marker{IsTimestamp: true, ISOValue: iso}, true
}

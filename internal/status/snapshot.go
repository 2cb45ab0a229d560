package status

import "encoding/json"

// Snapshot is the open-ended status document served by the dashboard API.
// Values are whatever encoding/json produced: maps, slices, strings, float64,
// bools and nil.
type Snapshot map[string]any

// Origin identifies which channel produced an update.
type Origin int

const (
	OriginPollLight Origin = iota
	OriginPollFull
	OriginPush
	OriginAction
)

func (o Origin) String() string {
	switch o {
	case OriginPollLight:
		return "poll-light"
	case OriginPollFull:
		return "poll-full"
	case OriginPush:
		return "push"
	case OriginAction:
		return "action"
	default:
		return "unknown"
	}
}

// Partial reports whether updates from this origin intentionally omit
// expensive fields and must not erase them.
func (o Origin) Partial() bool {
	return o == OriginPollLight || o == OriginPush
}

// Update is a partial or full set of snapshot fields tagged with its origin.
type Update struct {
	Origin Origin
	Fields Snapshot
}

// Decode parses a JSON object into a Snapshot.
func Decode(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Clone returns a deep copy of the snapshot. Nested maps and slices produced
// by JSON decoding are copied; other values are shared.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	dup := make(Snapshot, len(s))
	for k, v := range s {
		dup[k] = cloneValue(v)
	}
	return dup
}

// List returns the field as a slice of objects, skipping non-object entries.
func (s Snapshot) List(field string) []map[string]any {
	raw, ok := s[field].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// Object returns the field as a nested object, or nil.
func (s Snapshot) Object(field string) map[string]any {
	m, _ := s[field].(map[string]any)
	return m
}

// Len returns the length of a sequence field, or zero.
func (s Snapshot) Len(field string) int {
	n, _ := sequenceLen(s[field])
	return n
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		dup := make(map[string]any, len(t))
		for k, inner := range t {
			dup[k] = cloneValue(inner)
		}
		return dup
	case Snapshot:
		return t.Clone()
	case []any:
		dup := make([]any, len(t))
		for i, inner := range t {
			dup[i] = cloneValue(inner)
		}
		return dup
	default:
		return v
	}
}

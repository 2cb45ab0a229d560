package status

import "reflect"

// Rule decides whether an incoming partial value may replace the current one.
type Rule int

const (
	// Overwrite lets the incoming value win unconditionally.
	Overwrite Rule = iota
	// PreserveIfEmpty keeps a non-empty current sequence when the incoming
	// sequence is empty.
	PreserveIfEmpty
	// PreserveIfNull keeps a non-null current value when the incoming value
	// is null or missing.
	PreserveIfNull
)

func (r Rule) String() string {
	switch r {
	case PreserveIfEmpty:
		return "preserve-if-empty"
	case PreserveIfNull:
		return "preserve-if-null"
	default:
		return "overwrite"
	}
}

// Default field names for the dashboard document.
var (
	DefaultHeavyFields    = []string{"todos", "completed_tasks", "logs", "usage_panels"}
	DefaultNullableFields = []string{"minimax"}
)

// Policy is a per-field merge rule table. Fields without a rule use Overwrite.
// The zero value overwrites everything.
type Policy struct {
	rules map[string]Rule
}

// NewPolicy builds a policy from an explicit rule table.
func NewPolicy(rules map[string]Rule) Policy {
	dup := make(map[string]Rule, len(rules))
	for field, rule := range rules {
		dup[field] = rule
	}
	return Policy{rules: dup}
}

// PolicyFor builds a policy protecting the given heavy and nullable fields.
func PolicyFor(heavy, nullable []string) Policy {
	rules := make(map[string]Rule, len(heavy)+len(nullable))
	for _, f := range heavy {
		rules[f] = PreserveIfEmpty
	}
	for _, f := range nullable {
		rules[f] = PreserveIfNull
	}
	return Policy{rules: rules}
}

// DefaultPolicy returns the rule table for the dashboard status document.
func DefaultPolicy() Policy {
	return PolicyFor(DefaultHeavyFields, DefaultNullableFields)
}

// Rule returns the rule configured for field.
func (p Policy) Rule(field string) Rule {
	return p.rules[field]
}

// Merge reconciles an incoming update with the current snapshot. Neither
// input is modified. When preserveHeavy is set, protected fields keep their
// current value instead of being erased by an empty or null incoming value.
func (p Policy) Merge(current, incoming Snapshot, preserveHeavy bool) Snapshot {
	if current == nil {
		return incoming
	}
	if len(incoming) == 0 {
		return current
	}

	merged := make(Snapshot, len(current)+len(incoming))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	if !preserveHeavy {
		return merged
	}

	for field, rule := range p.rules {
		prev, hadPrev := current[field]
		if !hadPrev {
			continue
		}
		next, hasNext := incoming[field]
		switch rule {
		case PreserveIfEmpty:
			if !hasNext {
				continue
			}
			nextLen, nextSeq := sequenceLen(next)
			prevLen, prevSeq := sequenceLen(prev)
			if nextSeq && nextLen == 0 && prevSeq && prevLen > 0 {
				merged[field] = prev
			}
		case PreserveIfNull:
			if (!hasNext || next == nil) && prev != nil {
				merged[field] = prev
			}
		}
	}
	return merged
}

// sequenceLen reports the length of v and whether v is an ordered sequence.
func sequenceLen(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case []any:
		return len(t), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}

package model

import "strings"

// Op is a comparison operator in a structured condition.
type Op string

const (
	OpEq      Op = "eq"
	OpNe      Op = "ne"
	OpGt      Op = "gt"
	OpLt      Op = "lt"
	OpGte     Op = "gte"
	OpLte     Op = "lte"
	OpMatches Op = "matches" // case-insensitive LIKE; the value carries its own wildcards
	OpStarts  Op = "starts"  // case-insensitive prefix match
	OpIn      Op = "in"
)

var knownOps = map[Op]bool{
	OpEq: true, OpNe: true, OpGt: true, OpLt: true, OpGte: true, OpLte: true,
	OpMatches: true, OpStarts: true, OpIn: true,
}

// ParseOp validates an operator name. "like" is accepted for matches.
func ParseOp(s string) (Op, bool) {
	if s == "like" {
		return OpMatches, true
	}
	op := Op(s)
	return op, knownOps[op]
}

// Condition restricts one field. Assoc names the belongs-to association the
// field is reached through, empty for the entity's own attributes.
type Condition struct {
	Assoc string `json:"assoc,omitempty"`
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// Key identifies the condition for merging: two conditions with the same
// key cannot both apply, the later one wins.
func (c Condition) Key() string {
	return c.Assoc + "." + c.Field + "." + string(c.Op)
}

// Ref returns the field reference in external form.
func (c Condition) Ref() string {
	if c.Assoc == "" {
		return c.Field
	}
	return c.Assoc + AssocSeparator + c.Field
}

// Conditions is a set of conditions combined with AND, in insertion order.
type Conditions []Condition

// Merge returns the union of cs and other. Conditions in other replace those
// in cs with the same key; the rest are appended.
func (cs Conditions) Merge(other Conditions) Conditions {
	out := make(Conditions, len(cs), len(cs)+len(other))
	copy(out, cs)
	index := make(map[string]int, len(out))
	for i, c := range out {
		index[c.Key()] = i
	}
	for _, c := range other {
		if i, ok := index[c.Key()]; ok {
			out[i] = c
			continue
		}
		index[c.Key()] = len(out)
		out = append(out, c)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes the LIKE wildcards in s so it matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

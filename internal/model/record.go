package model

import "fmt"

// Record is a single row. Keys are attribute names; values joined through an
// association are carried under their column name ("author__name").
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ToArray renders the externally visible field array in column order.
func (r Record) ToArray(columns Columns) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = r[c.Name]
	}
	return out
}

// IDKey formats an identifier for use as a JSON object key.
func IDKey(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return fmt.Sprintf("%v", id)
}

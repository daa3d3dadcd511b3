// Package filter turns the loosely typed filter descriptions sent by grid
// clients into structured conditions.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// ErrInvalid is wrapped by every error caused by a malformed filter or
// extra-conditions payload.
var ErrInvalid = errors.New("invalid filter")

// Filter types recognized by Translate. Anything else compares by equality.
const (
	TypeString  = "string"
	TypeNumeric = "numeric"
	TypeDate    = "date"
)

// comparators accepted for numeric and date filters.
var comparators = map[string]model.Op{
	"eq":  model.OpEq,
	"ne":  model.OpNe,
	"gt":  model.OpGt,
	"lt":  model.OpLt,
	"gte": model.OpGte,
	"lte": model.OpLte,
}

type rawEntry struct {
	Field string `json:"field"`
	Data  struct {
		Type       string `json:"type"`
		Comparison string `json:"comparison"`
		Value      any    `json:"value"`
	} `json:"data"`
}

// ParseFilter decodes the client filter mapping
//
//	{"0": {"field": "title", "data": {"type": "string", "value": "dune"}}, ...}
//
// given either as a decoded object, a list, or a JSON-encoded string. Entries
// are returned ordered by key (numerically when the keys are numbers).
func ParseFilter(raw any) ([]model.FilterEntry, error) {
	if raw == nil {
		return nil, nil
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		data = []byte(v)
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		data = b
	}

	var list []rawEntry
	if err := json.Unmarshal(data, &list); err == nil {
		return convert(list)
	}
	var byKey map[string]rawEntry
	if err := json.Unmarshal(data, &byKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	list = make([]rawEntry, len(keys))
	for i, k := range keys {
		list[i] = byKey[k]
	}
	return convert(list)
}

func convert(list []rawEntry) ([]model.FilterEntry, error) {
	out := make([]model.FilterEntry, 0, len(list))
	for _, e := range list {
		if e.Field == "" {
			return nil, fmt.Errorf("%w: entry without a field", ErrInvalid)
		}
		out = append(out, model.FilterEntry{
			Field:      e.Field,
			Type:       e.Data.Type,
			Comparison: e.Data.Comparison,
			Value:      e.Data.Value,
		})
	}
	return out, nil
}

// Translate converts filter entries into conditions combined with AND.
//
//   - string filters match the value as a case-insensitive substring;
//   - numeric and date filters compare with the entry's comparison (eq when
//     absent); an unknown comparison is an error;
//   - every other type compares by equality, or membership for list values.
func Translate(entries []model.FilterEntry) (model.Conditions, error) {
	var out model.Conditions
	for _, e := range entries {
		assoc, field := splitRef(e.Field)
		c := model.Condition{Assoc: assoc, Field: field, Value: e.Value}
		switch e.Type {
		case TypeString:
			c.Op = model.OpMatches
			c.Value = "%" + model.EscapeLike(fmt.Sprint(e.Value)) + "%"
		case TypeNumeric, TypeDate:
			cmp := e.Comparison
			if cmp == "" {
				cmp = "eq"
			}
			op, ok := comparators[cmp]
			if !ok {
				return nil, fmt.Errorf("%w: unknown comparison %q for %s", ErrInvalid, e.Comparison, e.Field)
			}
			c.Op = op
		default:
			c.Op = model.OpEq
			if _, ok := e.Value.([]any); ok {
				c.Op = model.OpIn
			}
		}
		out = out.Merge(model.Conditions{c})
	}
	return out, nil
}

// NormalizeExtraConditions converts the nested mapping produced by the
// advanced search form into conditions. A key ending in "__", or any key whose
// value is an object, traverses the named association; only one level of
// traversal is supported. Leaf keys of the form "field__op" carry an operator,
// bare field names compare by equality, and "assoc__field" leaves are the flat
// spelling of a one-level traversal.
//
//	{"author__": {"name__starts": "Le"}, "pages__gte": 100, "genre": "poetry"}
func NormalizeExtraConditions(m map[string]any) (model.Conditions, error) {
	return normalize("", m)
}

func normalize(assoc string, m map[string]any) (model.Conditions, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out model.Conditions
	for _, k := range keys {
		v := m[k]
		nested, isMap := v.(map[string]any)
		if strings.HasSuffix(k, model.AssocSeparator) || isMap {
			name := strings.TrimSuffix(k, model.AssocSeparator)
			if !isMap {
				return nil, fmt.Errorf("%w: %q must hold an object", ErrInvalid, k)
			}
			if assoc != "" {
				return nil, fmt.Errorf("%w: nested association %q under %q", ErrInvalid, name, assoc)
			}
			if name == "" {
				return nil, fmt.Errorf("%w: empty association name", ErrInvalid)
			}
			sub, err := normalize(name, nested)
			if err != nil {
				return nil, err
			}
			out = out.Merge(sub)
			continue
		}

		field, op := k, model.OpEq
		if i := strings.LastIndex(k, model.AssocSeparator); i > 0 {
			if parsed, ok := model.ParseOp(k[i+len(model.AssocSeparator):]); ok {
				field, op = k[:i], parsed
			}
		}
		a := assoc
		if a == "" {
			a, field = splitRef(field)
		}
		if op == model.OpEq {
			if _, ok := v.([]any); ok {
				op = model.OpIn
			}
		}
		out = out.Merge(model.Conditions{{Assoc: a, Field: field, Op: op, Value: v}})
	}
	return out, nil
}

// DecodeExtraConditions accepts extra conditions either as an object or as a
// JSON-encoded string.
func DecodeExtraConditions(raw any) (model.Conditions, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return NormalizeExtraConditions(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("%w: extra_conditions: %v", ErrInvalid, err)
		}
		return NormalizeExtraConditions(m)
	}
	return nil, fmt.Errorf("%w: extra_conditions must be an object, got %T", ErrInvalid, raw)
}

func splitRef(ref string) (assoc, field string) {
	if a, f, ok := strings.Cut(ref, model.AssocSeparator); ok && f != "" {
		return a, f
	}
	return "", ref
}

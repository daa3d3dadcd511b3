package query

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// ErrUnknownScope is returned when a grid names a scope its entity does not
// define.
var ErrUnknownScope = errors.New("unknown scope")

// BaseQuery is the configured starting point of a grid's relation. It is one
// of Scope, RawPredicate, ConditionsQuery or Custom.
type BaseQuery interface {
	isBaseQuery()
}

// Scope applies a named scope of the entity.
type Scope struct {
	Name string
}

// RawPredicate is a store-specific boolean expression with positional
// arguments. The Postgres store expects "?" placeholders.
type RawPredicate struct {
	SQL  string
	Args []any
}

// ConditionsQuery restricts the relation with a fixed condition set.
type ConditionsQuery struct {
	Conditions model.Conditions
}

// Custom builds the base relation in code.
type Custom struct {
	Fn func(*model.Entity) *Relation
}

func (Scope) isBaseQuery()           {}
func (RawPredicate) isBaseQuery()    {}
func (ConditionsQuery) isBaseQuery() {}
func (Custom) isBaseQuery()          {}

// Resolve returns the base relation over e described by q. A nil q yields
// the unrestricted relation.
func Resolve(e *model.Entity, q BaseQuery) (*Relation, error) {
	switch q := q.(type) {
	case nil:
		return From(e), nil
	case Custom:
		if q.Fn == nil {
			return From(e), nil
		}
		rel := q.Fn(e)
		if rel == nil {
			return From(e), nil
		}
		if rel.Entity != e {
			return nil, fmt.Errorf("custom query returned a relation over %s, want %s", rel.Entity.Name, e.Name)
		}
		return rel.Clone(), nil
	case Scope:
		conds, ok := e.Scopes[q.Name]
		if !ok {
			return nil, fmt.Errorf("%w %q on %s", ErrUnknownScope, q.Name, e.Name)
		}
		cast, err := CastConditions(e, conds)
		if err != nil {
			return nil, fmt.Errorf("scope %q: %w", q.Name, err)
		}
		return From(e).Where(cast...), nil
	case RawPredicate:
		return From(e).WhereRaw(q.SQL, q.Args...), nil
	case ConditionsQuery:
		cast, err := CastConditions(e, q.Conditions)
		if err != nil {
			return nil, err
		}
		return From(e).Where(cast...), nil
	}
	return nil, fmt.Errorf("unsupported base query %T", q)
}

// FromSpec turns configured query settings into a BaseQuery, preferring a
// scope, then a raw predicate, then a conditions mapping.
func FromSpec(spec model.QuerySpec, normalize func(map[string]any) (model.Conditions, error)) (BaseQuery, error) {
	switch {
	case spec.Scope != "":
		return Scope{Name: spec.Scope}, nil
	case spec.Where != "":
		return RawPredicate{SQL: spec.Where, Args: spec.Args}, nil
	case len(spec.Conditions) > 0:
		conds, err := normalize(spec.Conditions)
		if err != nil {
			return nil, err
		}
		return ConditionsQuery{Conditions: conds}, nil
	}
	return nil, nil
}

package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AttrType identifies how a client-supplied value is coerced before it is
// assigned to a record.
type AttrType string

const (
	AttrString   AttrType = "string"
	AttrInteger  AttrType = "integer"
	AttrFloat    AttrType = "float"
	AttrBoolean  AttrType = "boolean"
	AttrDate     AttrType = "date"
	AttrDatetime AttrType = "datetime"
	AttrEnum     AttrType = "enum"
	AttrJSON     AttrType = "json"
)

// AssocSeparator separates an association name from the associated
// attribute in a field reference ("author__name").
const AssocSeparator = "__"

// ErrUnknownField is returned when a field reference names neither an
// attribute nor an association of the entity.
var ErrUnknownField = errors.New("unknown field")

// Attribute describes a single column of an entity's table.
type Attribute struct {
	Name     string   `json:"name" toml:"name"`
	Column   string   `json:"column,omitempty" toml:"column"`
	Type     AttrType `json:"type" toml:"type"`
	Required bool     `json:"required,omitempty" toml:"required"`
	ReadOnly bool     `json:"read_only,omitempty" toml:"read_only"`
	Values   []string `json:"values,omitempty" toml:"values"` // allowed values for enum
}

// ColumnName returns the table column backing the attribute.
func (a Attribute) ColumnName() string {
	if a.Column != "" {
		return a.Column
	}
	return a.Name
}

// Association is a belongs-to link. ForeignKey is an attribute of the owning
// entity holding the primary key of the target.
type Association struct {
	Name       string `json:"name" toml:"name"`
	Entity     string `json:"entity" toml:"entity"`
	ForeignKey string `json:"foreign_key,omitempty" toml:"foreign_key"`

	// Target is resolved by NewRegistry.
	Target *Entity `json:"-" toml:"-"`
}

// Entity describes a table the grids read and mutate.
type Entity struct {
	Name           string
	Table          string
	PrimaryKey     string
	PrimaryKeyType AttrType
	Attributes     []Attribute
	Associations   []Association
	Scopes         map[string]Conditions

	// PositionColumn names the attribute holding a 1-based list position.
	// Entities without one do not support row reordering.
	PositionColumn string
}

// PK returns the primary key attribute name.
func (e *Entity) PK() string {
	if e.PrimaryKey != "" {
		return e.PrimaryKey
	}
	return "id"
}

// PKAttribute returns the primary key as an Attribute, whether or not it is
// listed among the entity's attributes.
func (e *Entity) PKAttribute() Attribute {
	if a, ok := e.Attribute(e.PK()); ok {
		return a
	}
	t := e.PrimaryKeyType
	if t == "" {
		t = AttrInteger
	}
	return Attribute{Name: e.PK(), Type: t, ReadOnly: true}
}

// TableName returns the backing table.
func (e *Entity) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return e.Name
}

// Ordered reports whether the entity supports ordered-list reinsertion.
func (e *Entity) Ordered() bool {
	return e.PositionColumn != ""
}

// Attribute looks up an attribute by name.
func (e *Entity) Attribute(name string) (Attribute, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Association looks up an association by name.
func (e *Entity) Association(name string) (*Association, bool) {
	for i := range e.Associations {
		if e.Associations[i].Name == name {
			return &e.Associations[i], true
		}
	}
	return nil, false
}

// Exposes reports whether name is an attribute or an association of e.
func (e *Entity) Exposes(name string) bool {
	if name == e.PK() {
		return true
	}
	if _, ok := e.Attribute(name); ok {
		return true
	}
	_, ok := e.Association(name)
	return ok
}

// CastID coerces a client-supplied identifier to the primary key type.
func (e *Entity) CastID(v any) (any, error) {
	return Cast(e.PKAttribute(), v)
}

// FieldRef locates an attribute, either on the entity itself or through one
// belongs-to association.
type FieldRef struct {
	Assoc *Association
	Attr  Attribute
}

// Key returns the external name of the reference ("name" or "author__name").
func (f FieldRef) Key() string {
	if f.Assoc == nil {
		return f.Attr.Name
	}
	return f.Assoc.Name + AssocSeparator + f.Attr.Name
}

// Resolve turns a field reference into a FieldRef. A bare association name
// resolves to its foreign key.
func (e *Entity) Resolve(ref string) (FieldRef, error) {
	if assoc, method, ok := strings.Cut(ref, AssocSeparator); ok && method != "" {
		return e.ResolveThrough(assoc, method)
	}
	if ref == e.PK() {
		return FieldRef{Attr: e.PKAttribute()}, nil
	}
	if a, ok := e.Attribute(ref); ok {
		return FieldRef{Attr: a}, nil
	}
	if as, ok := e.Association(ref); ok {
		if a, ok := e.Attribute(as.ForeignKey); ok {
			return FieldRef{Attr: a}, nil
		}
	}
	return FieldRef{}, fmt.Errorf("%w %q on %s", ErrUnknownField, ref, e.Name)
}

// ResolveThrough resolves attribute method of the entity reached through
// association assoc.
func (e *Entity) ResolveThrough(assoc, method string) (FieldRef, error) {
	as, ok := e.Association(assoc)
	if !ok || as.Target == nil {
		return FieldRef{}, fmt.Errorf("%w %q on %s", ErrUnknownField, assoc, e.Name)
	}
	if method == as.Target.PK() {
		return FieldRef{Assoc: as, Attr: as.Target.PKAttribute()}, nil
	}
	a, ok := as.Target.Attribute(method)
	if !ok {
		return FieldRef{}, fmt.Errorf("%w %q on %s", ErrUnknownField, method, as.Target.Name)
	}
	return FieldRef{Assoc: as, Attr: a}, nil
}

// Registry holds every entity known to the service.
type Registry struct {
	entities map[string]*Entity
}

// NewRegistry links associations to their targets and fills in defaults.
// It fails when an association points at an unknown entity or lacks a
// foreign key attribute.
func NewRegistry(entities ...*Entity) (*Registry, error) {
	r := &Registry{entities: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if e.Name == "" {
			return nil, fmt.Errorf("entity without a name")
		}
		if _, dup := r.entities[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.Name)
		}
		r.entities[e.Name] = e
	}
	for _, e := range entities {
		for i := range e.Associations {
			as := &e.Associations[i]
			target, ok := r.entities[as.Entity]
			if !ok {
				return nil, fmt.Errorf("entity %s: association %q targets unknown entity %q", e.Name, as.Name, as.Entity)
			}
			as.Target = target
			if as.ForeignKey == "" {
				as.ForeignKey = as.Name + "_id"
			}
			if _, ok := e.Attribute(as.ForeignKey); !ok {
				return nil, fmt.Errorf("entity %s: association %q: foreign key %q is not an attribute", e.Name, as.Name, as.ForeignKey)
			}
		}
		if e.PositionColumn != "" {
			if _, ok := e.Attribute(e.PositionColumn); !ok {
				return nil, fmt.Errorf("entity %s: position column %q is not an attribute", e.Name, e.PositionColumn)
			}
		}
	}
	return r, nil
}

// Get returns the entity with the given name.
func (r *Registry) Get(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Names returns all entity names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Package query composes the relation a grid reads from: the configured base
// query, client filters, extra conditions, sort and pagination.
package query

import (
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// Order is one ORDER BY term. Assoc is empty for the entity's own attributes.
type Order struct {
	Assoc string `json:"assoc,omitempty"`
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Ref returns the field reference in external form.
func (o Order) Ref() string {
	if o.Assoc == "" {
		return o.Field
	}
	return o.Assoc + model.AssocSeparator + o.Field
}

// Page selects one page of a relation. Number is 1-based.
type Page struct {
	Number int `json:"number"`
	Size   int `json:"size"`
}

// Offset returns the number of rows skipped before the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Relation is a storage-independent description of a read. Stores compile it
// to their own query language; every condition value has already been cast to
// the attribute's type.
type Relation struct {
	Entity     *model.Entity
	Select     []string // association columns ("author__name") to load with each row
	Conditions model.Conditions
	Raw        []RawPredicate
	Order      []Order
	Page       *Page
}

// From starts an unrestricted relation over e.
func From(e *model.Entity) *Relation {
	return &Relation{Entity: e}
}

// Where adds conditions, replacing existing ones with the same key.
func (r *Relation) Where(cs ...model.Condition) *Relation {
	r.Conditions = r.Conditions.Merge(cs)
	return r
}

// WhereRaw adds a store-specific predicate.
func (r *Relation) WhereRaw(sql string, args ...any) *Relation {
	r.Raw = append(r.Raw, RawPredicate{SQL: sql, Args: args})
	return r
}

// OrderBy appends an order term.
func (r *Relation) OrderBy(o Order) *Relation {
	r.Order = append(r.Order, o)
	return r
}

// Paginate restricts the relation to one page.
func (r *Relation) Paginate(number, size int) *Relation {
	r.Page = &Page{Number: number, Size: size}
	return r
}

// Including asks the store to load the given association columns.
func (r *Relation) Including(refs ...string) *Relation {
	for _, ref := range refs {
		if !containsString(r.Select, ref) {
			r.Select = append(r.Select, ref)
		}
	}
	return r
}

// Clone returns a copy that can be modified without affecting r.
func (r *Relation) Clone() *Relation {
	out := &Relation{Entity: r.Entity}
	out.Select = append([]string(nil), r.Select...)
	out.Conditions = append(model.Conditions(nil), r.Conditions...)
	out.Raw = append([]RawPredicate(nil), r.Raw...)
	out.Order = append([]Order(nil), r.Order...)
	if r.Page != nil {
		p := *r.Page
		out.Page = &p
	}
	return out
}

// Unpaged returns a copy without pagination, suitable for counting.
func (r *Relation) Unpaged() *Relation {
	out := r.Clone()
	out.Page = nil
	return out
}

// Refs returns every association column the relation needs joined, in the
// order they are first referenced.
func (r *Relation) Refs() []string {
	var out []string
	add := func(ref string) {
		if !containsString(out, ref) {
			out = append(out, ref)
		}
	}
	for _, s := range r.Select {
		add(s)
	}
	for _, c := range r.Conditions {
		if c.Assoc != "" {
			add(c.Ref())
		}
	}
	for _, o := range r.Order {
		if o.Assoc != "" {
			add(o.Ref())
		}
	}
	return out
}

// Associations returns the distinct association names referenced by the
// relation.
func (r *Relation) Associations() []string {
	var out []string
	for _, ref := range r.Refs() {
		ref, err := r.Entity.Resolve(ref)
		if err != nil || ref.Assoc == nil {
			continue
		}
		if !containsString(out, ref.Assoc.Name) {
			out = append(out, ref.Assoc.Name)
		}
	}
	return out
}

func (r *Relation) String() string {
	return fmt.Sprintf("%s where=%v raw=%d order=%v page=%v", r.Entity.Name, r.Conditions, len(r.Raw), r.Order, r.Page)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

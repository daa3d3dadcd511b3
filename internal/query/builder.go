package query

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alfredjeanlab/gridpanel/internal/filter"
	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// ErrInvalidParams is wrapped by errors caused by client-supplied read
// parameters: unknown filter fields, uncastable values, bad sort directions.
var ErrInvalidParams = errors.New("invalid query parameters")

// DefaultPerPage is used when a builder has pagination enabled but no page
// size configured.
const DefaultPerPage = 25

// Builder turns read parameters into a Relation for one grid.
type Builder struct {
	Entity     *model.Entity
	Base       BaseQuery
	Pagination bool
	PerPage    int
	Include    []string // association columns rendered by the grid
	Logger     *slog.Logger
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Build composes base relation, filters, extra conditions, sort and
// pagination. Unknown sort fields are skipped, everything else the client
// got wrong is reported as ErrInvalidParams.
func (b *Builder) Build(p model.QueryParams) (*Relation, error) {
	rel, err := Resolve(b.Entity, b.Base)
	if err != nil {
		return nil, err
	}
	rel.Including(b.Include...)

	conds, err := filter.Translate(p.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if len(p.ExtraConditions) > 0 {
		extra, err := filter.NormalizeExtraConditions(p.ExtraConditions)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		conds = conds.Merge(extra)
	}
	cast, err := CastConditions(b.Entity, conds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	rel.Where(cast...)

	if p.Sort != "" {
		order, ok, err := b.sortOrder(p.Sort, p.Dir)
		if err != nil {
			return nil, err
		}
		if ok {
			rel.Order = append([]Order{order}, rel.Order...)
		}
	}

	if b.Pagination {
		size := b.PerPage
		if size <= 0 {
			size = DefaultPerPage
		}
		rel.Paginate(PageNumber(p.Start, p.Limit), size)
	}
	return rel, nil
}

// PageNumber converts an offset/limit pair into a 1-based page number.
func PageNumber(start, limit int) int {
	if limit <= 0 || start < 0 {
		return 1
	}
	return start/limit + 1
}

func (b *Builder) sortOrder(field, dir string) (Order, bool, error) {
	dir = strings.ToLower(strings.TrimSpace(dir))
	if dir != "" && dir != "asc" && dir != "desc" {
		return Order{}, false, fmt.Errorf("%w: sort direction %q", ErrInvalidParams, dir)
	}
	assoc, _, _ := strings.Cut(field, model.AssocSeparator)
	if !b.Entity.Exposes(assoc) {
		b.logger().Debug("ignoring sort on unexposed field", "entity", b.Entity.Name, "sort", field)
		return Order{}, false, nil
	}
	ref, err := b.Entity.Resolve(field)
	if err != nil {
		b.logger().Debug("ignoring sort on unknown field", "entity", b.Entity.Name, "sort", field)
		return Order{}, false, nil
	}
	o := Order{Field: ref.Attr.Name, Desc: dir == "desc"}
	if ref.Assoc != nil {
		o.Assoc = ref.Assoc.Name
	}
	return o, true, nil
}

// CastConditions resolves every condition against e and casts its value to
// the attribute's type. Pattern operators keep their string value; in takes
// a list and casts each element.
func CastConditions(e *model.Entity, conds model.Conditions) (model.Conditions, error) {
	out := make(model.Conditions, 0, len(conds))
	for _, c := range conds {
		ref, err := e.Resolve(c.Ref())
		if err != nil {
			return nil, err
		}
		c.Field = ref.Attr.Name
		c.Assoc = ""
		if ref.Assoc != nil {
			c.Assoc = ref.Assoc.Name
		}
		switch c.Op {
		case model.OpMatches, model.OpStarts:
			s, ok := c.Value.(string)
			if !ok {
				return nil, fmt.Errorf("%s: pattern must be a string", c.Ref())
			}
			c.Value = s
		case model.OpIn:
			list, ok := c.Value.([]any)
			if !ok {
				list = []any{c.Value}
			}
			vals := make([]any, 0, len(list))
			for _, item := range list {
				v, err := model.Cast(ref.Attr, item)
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
			}
			c.Value = vals
		default:
			v, err := model.Cast(ref.Attr, c.Value)
			if err != nil {
				return nil, err
			}
			c.Value = v
		}
		out = append(out, c)
	}
	return out, nil
}

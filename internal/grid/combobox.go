package grid

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
)

// OptionsRequest describes one get_combobox_options call.
type OptionsRequest struct {
	Grid     string
	Column   model.Column
	Query    string // prefix typed so far
	RecordID any    // record being edited, nil for new rows
}

// OptionsFunc supplies combobox choices for columns the host handles itself.
// It returns handled=false to fall back to the built-in lookup.
type OptionsFunc func(ctx context.Context, req OptionsRequest) (options [][]any, handled bool, err error)

// OptionsResponse is the answer to get_combobox_options.
type OptionsResponse struct {
	Data [][]any `json:"data"`
}

func (c *call) comboboxOptions(ctx context.Context, p Params) (any, error) {
	name := p.String("column")
	if name == "" {
		return nil, inputErrorf("column is required")
	}
	cols, err := c.columns(ctx)
	if err != nil {
		return nil, err
	}
	i, ok := cols.Find(name)
	if !ok {
		return nil, inputErrorf("unknown column %q", name)
	}
	req := OptionsRequest{
		Grid:     c.id,
		Column:   cols[i],
		Query:    p.String("query"),
		RecordID: p["id"],
	}

	if c.options != nil {
		opts, handled, err := c.options(ctx, req)
		if err != nil {
			return nil, err
		}
		if handled {
			if opts == nil {
				opts = [][]any{}
			}
			return OptionsResponse{Data: opts}, nil
		}
	}

	var opts [][]any
	switch {
	case len(req.Column.ComboboxOptions) > 0:
		opts = staticOptions(req.Column.ComboboxOptions, req.Query)
	case strings.Contains(name, model.AssocSeparator):
		opts, err = c.associationOptions(ctx, req)
	default:
		opts, err = c.distinctOptions(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return OptionsResponse{Data: opts}, nil
}

// staticOptions filters the configured choices by case-insensitive prefix.
func staticOptions(choices []string, prefix string) [][]any {
	prefix = strings.ToLower(prefix)
	out := [][]any{}
	for _, o := range choices {
		if strings.HasPrefix(strings.ToLower(o), prefix) {
			out = append(out, []any{o})
		}
	}
	return out
}

// associationOptions lists [id, value] pairs of the associated entity whose
// method attribute starts with the query, restricted by the column scope.
func (c *call) associationOptions(ctx context.Context, req OptionsRequest) ([][]any, error) {
	ref, err := c.entity.Resolve(req.Column.Name)
	if err != nil {
		return nil, err
	}
	target := ref.Assoc.Target
	var base query.BaseQuery
	if req.Column.Scope != "" {
		base = query.Scope{Name: req.Column.Scope}
	}
	rel, err := query.Resolve(target, base)
	if err != nil {
		return nil, fmt.Errorf("options %s: %w", req.Column.Name, err)
	}
	if req.Query != "" {
		rel.Where(model.Condition{Field: ref.Attr.Name, Op: model.OpStarts, Value: req.Query})
	}
	rel.OrderBy(query.Order{Field: ref.Attr.Name})

	rows, _, err := c.store.SelectRecords(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("options %s: %w", req.Column.Name, err)
	}
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r[target.PK()], r[ref.Attr.Name]})
	}
	return out, nil
}

// distinctOptions lists the distinct values the grid's own rows hold for
// the column.
func (c *call) distinctOptions(ctx context.Context, req OptionsRequest) ([][]any, error) {
	if _, err := c.entity.Resolve(req.Column.Name); err != nil {
		return nil, err
	}
	base, err := c.baseQuery()
	if err != nil {
		return nil, err
	}
	rel, err := query.Resolve(c.entity, base)
	if err != nil {
		return nil, err
	}
	if req.Column.Scope != "" {
		scoped, err := query.Resolve(c.entity, query.Scope{Name: req.Column.Scope})
		if err != nil {
			return nil, fmt.Errorf("options %s: %w", req.Column.Name, err)
		}
		rel.Where(scoped.Conditions...)
	}
	values, err := c.store.DistinctValues(ctx, rel, req.Column.Name, req.Query)
	if err != nil {
		return nil, fmt.Errorf("options %s: %w", req.Column.Name, err)
	}
	out := make([][]any, len(values))
	for i, v := range values {
		out[i] = []any{v}
	}
	return out, nil
}

// Package layout persists the column layout of a grid component: order,
// widths and hidden flags, keyed by component.
package layout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// ErrNotConfigured is returned when the component does not allow the
// requested kind of layout change.
var ErrNotConfigured = errors.New("not configured")

// ErrInvalidWidth is returned by Resize for widths that are not positive.
var ErrInvalidWidth = errors.New("column width must be positive")

// ConfigName is the config name the layout is stored under
// ("<component>:columns").
const ConfigName = "columns"

// ConfigStore is the subset of store.Store the layout needs.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (*model.Config, error)
	SetConfig(ctx context.Context, c *model.Config) error
	DeleteConfig(ctx context.Context, key string) error
}

// Layout manages the columns of one component.
type Layout struct {
	store      ConfigStore
	component  string
	defined    model.Columns
	caps       model.Capabilities
	persistent bool
}

// New returns the layout of component. defined is the column sequence from
// the grid definition. With persistent false the stored layout is ignored
// and changes are accepted without being saved.
func New(s ConfigStore, component string, defined model.Columns, caps model.Capabilities, persistent bool) *Layout {
	return &Layout{
		store:      s,
		component:  component,
		defined:    defined.Clone(),
		caps:       caps,
		persistent: persistent,
	}
}

func (l *Layout) key() string {
	return model.ConfigKey(l.component, ConfigName)
}

// Columns returns the current sequence: the persisted order, widths and
// flags layered over the defined columns. Persisted columns that are no
// longer defined are dropped; defined columns missing from the persisted
// sequence are appended.
func (l *Layout) Columns(ctx context.Context) (model.Columns, error) {
	if !l.persistent {
		return l.defined.Clone(), nil
	}
	c, err := l.store.GetConfig(ctx, l.key())
	if errors.Is(err, sql.ErrNoRows) {
		return l.defined.Clone(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load layout %s: %w", l.component, err)
	}
	var saved model.Columns
	if err := json.Unmarshal(c.Value, &saved); err != nil {
		return nil, fmt.Errorf("decode layout %s: %w", l.component, err)
	}
	return Merge(l.defined, saved), nil
}

// Merge layers saved over defined.
func Merge(defined, saved model.Columns) model.Columns {
	out := make(model.Columns, 0, len(defined))
	used := make(map[string]bool, len(defined))
	for _, s := range saved {
		i, ok := defined.Find(s.Name)
		if !ok || used[s.Name] {
			continue
		}
		col := defined[i]
		if s.Width != 0 {
			col.Width = s.Width
		}
		col.Hidden = s.Hidden
		if s.Included != nil {
			inc := *s.Included
			col.Included = &inc
		}
		out = append(out, col)
		used[s.Name] = true
	}
	for _, d := range defined {
		if !used[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// Resize sets the width of the column at visible index.
func (l *Layout) Resize(ctx context.Context, visible, width int) error {
	if !l.caps.EnableColumnResize {
		return fmt.Errorf("column resize: %w", ErrNotConfigured)
	}
	if width <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidWidth, width)
	}
	return l.mutate(ctx, func(cols model.Columns) (model.Columns, error) {
		i, err := cols.NormalizeIndex(visible)
		if err != nil {
			return nil, err
		}
		cols[i].Width = width
		return cols, nil
	})
}

// Move removes the column at oldVisible and reinserts it at newVisible.
func (l *Layout) Move(ctx context.Context, oldVisible, newVisible int) error {
	if !l.caps.EnableColumnMove {
		return fmt.Errorf("column move: %w", ErrNotConfigured)
	}
	return l.mutate(ctx, func(cols model.Columns) (model.Columns, error) {
		from, err := cols.NormalizeIndex(oldVisible)
		if err != nil {
			return nil, err
		}
		to, err := cols.NormalizeIndex(newVisible)
		if err != nil {
			return nil, err
		}
		return cols.Move(from, to)
	})
}

// Hide sets the hidden flag of the column at visible index.
func (l *Layout) Hide(ctx context.Context, visible int, hidden bool) error {
	if !l.caps.EnableColumnHide {
		return fmt.Errorf("column hide: %w", ErrNotConfigured)
	}
	return l.mutate(ctx, func(cols model.Columns) (model.Columns, error) {
		i, err := cols.NormalizeIndex(visible)
		if err != nil {
			return nil, err
		}
		cols[i].Hidden = hidden
		return cols, nil
	})
}

// Reset drops the persisted layout so the defined columns apply again.
func (l *Layout) Reset(ctx context.Context) error {
	err := l.store.DeleteConfig(ctx, l.key())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reset layout %s: %w", l.component, err)
	}
	return nil
}

// mutate loads, changes and saves the full sequence. Concurrent changes to
// the same component are last-write-wins.
func (l *Layout) mutate(ctx context.Context, fn func(model.Columns) (model.Columns, error)) error {
	cols, err := l.Columns(ctx)
	if err != nil {
		return err
	}
	cols, err = fn(cols.Clone())
	if err != nil {
		return err
	}
	if !l.persistent {
		return nil
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("encode layout %s: %w", l.component, err)
	}
	if err := l.store.SetConfig(ctx, &model.Config{Key: l.key(), Value: data}); err != nil {
		return fmt.Errorf("save layout %s: %w", l.component, err)
	}
	return nil
}

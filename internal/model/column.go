package model

import (
	"errors"
	"fmt"
)

// ErrColumnIndex is returned when a visible column index does not map to a
// column in the underlying sequence.
var ErrColumnIndex = errors.New("column index out of range")

// Column describes one grid column. Included=false removes the column from
// the visible index space while it keeps its slot in the persisted sequence.
type Column struct {
	Name            string   `json:"name" toml:"name"`
	Header          string   `json:"header,omitempty" toml:"header"`
	Width           int      `json:"width,omitempty" toml:"width"`
	Hidden          bool     `json:"hidden,omitempty" toml:"hidden"`
	Included        *bool    `json:"included,omitempty" toml:"included"`
	Sortable        *bool    `json:"sortable,omitempty" toml:"sortable"`
	ReadOnly        bool     `json:"read_only,omitempty" toml:"read_only"`
	Filter          string   `json:"filter,omitempty" toml:"filter"` // string, numeric, date, boolean, list
	Scope           string   `json:"scope,omitempty" toml:"scope"`   // named scope applied to combobox choices
	ComboboxOptions []string `json:"combobox_options,omitempty" toml:"combobox_options"`
}

// IsIncluded reports whether the column takes part in the visible index space.
func (c Column) IsIncluded() bool {
	return c.Included == nil || *c.Included
}

// IsSortable reports whether the client may sort by the column.
func (c Column) IsSortable() bool {
	return c.Sortable == nil || *c.Sortable
}

// Label returns the header, falling back to the humanized name.
func (c Column) Label() string {
	if c.Header != "" {
		return c.Header
	}
	return Humanize(c.Name)
}

// Columns is an ordered column sequence. Order defines on-screen and lookup
// order.
type Columns []Column

// Clone returns a copy that shares no column state with cs.
func (cs Columns) Clone() Columns {
	if cs == nil {
		return nil
	}
	out := make(Columns, len(cs))
	copy(out, cs)
	return out
}

// Find returns the underlying index of the named column.
func (cs Columns) Find(name string) (int, bool) {
	for i, c := range cs {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Visible returns the included columns in order.
func (cs Columns) Visible() Columns {
	out := make(Columns, 0, len(cs))
	for _, c := range cs {
		if c.IsIncluded() {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the column names in order.
func (cs Columns) Names() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// NormalizeIndex maps a visible index to an underlying index. Starting at
// position 0 it advances once per visible step, skipping any run of
// non-included columns after each advance.
func (cs Columns) NormalizeIndex(visible int) (int, error) {
	if visible < 0 || len(cs) == 0 {
		return 0, fmt.Errorf("%w: %d", ErrColumnIndex, visible)
	}
	norm := 0
	for step := 0; step < visible; step++ {
		for {
			norm++
			if norm >= len(cs) {
				return 0, fmt.Errorf("%w: %d", ErrColumnIndex, visible)
			}
			if cs[norm].IsIncluded() {
				break
			}
		}
	}
	return norm, nil
}

// Move removes the column at underlying index from and reinserts it at
// underlying index to, both taken from the sequence before removal.
func (cs Columns) Move(from, to int) (Columns, error) {
	if from < 0 || from >= len(cs) || to < 0 || to >= len(cs) {
		return cs, fmt.Errorf("%w: move %d -> %d", ErrColumnIndex, from, to)
	}
	moved := cs[from]
	out := make(Columns, 0, len(cs))
	out = append(out, cs[:from]...)
	out = append(out, cs[from+1:]...)
	out = append(out[:to], append(Columns{moved}, out[to:]...)...)
	return out, nil
}

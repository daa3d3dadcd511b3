// Package grid dispatches the remote endpoints of a grid component: data
// reads and writes, column layout changes, combobox choices and row
// reordering.
package grid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alfredjeanlab/gridpanel/internal/config"
	"github.com/alfredjeanlab/gridpanel/internal/filter"
	"github.com/alfredjeanlab/gridpanel/internal/layout"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/mutator"
	"github.com/alfredjeanlab/gridpanel/internal/query"
	"github.com/alfredjeanlab/gridpanel/internal/session"
	"github.com/alfredjeanlab/gridpanel/internal/store"
)

// Endpoint names.
const (
	EndpointGetData            = "get_data"
	EndpointPostData           = "post_data"
	EndpointDeleteData         = "delete_data"
	EndpointResizeColumn       = "resize_column"
	EndpointMoveColumn         = "move_column"
	EndpointHideColumn         = "hide_column"
	EndpointResetColumns       = "reset_columns"
	EndpointGetComboboxOptions = "get_combobox_options"
	EndpointMoveRows           = "move_rows"
	EndpointMultiEdit          = "multi_edit"
	EndpointAddFormSubmit      = "add_form_submit"
	EndpointEditFormSubmit     = "edit_form_submit"
	EndpointGetConfig          = "get_config"
)

// Endpoints lists every endpoint Call dispatches, in documentation order.
var Endpoints = []string{
	EndpointGetData,
	EndpointPostData,
	EndpointDeleteData,
	EndpointResizeColumn,
	EndpointMoveColumn,
	EndpointHideColumn,
	EndpointResetColumns,
	EndpointGetComboboxOptions,
	EndpointMoveRows,
	EndpointMultiEdit,
	EndpointAddFormSubmit,
	EndpointEditFormSubmit,
	EndpointGetConfig,
}

// SettingsName is the config name persisted settings overrides are stored
// under ("<grid>:settings").
const SettingsName = "settings"

// lastParamsKey is the session key of the remembered read parameters.
const lastParamsKey = "last_params"

// DataChangedFunc is called after every endpoint that may have changed rows.
type DataChangedFunc func(ctx context.Context, grid, endpoint string)

// ColumnsChangedFunc is called after a column layout change was accepted.
type ColumnsChangedFunc func(ctx context.Context, grid, endpoint string)

// Grid is one configured grid component.
type Grid struct {
	id       string
	entity   *model.Entity
	instance config.Layer
	store    store.Store
	sessions session.Store

	base             query.BaseQuery
	onDataChanged    DataChangedFunc
	onColumnsChanged ColumnsChangedFunc
	options          OptionsFunc
	logger           *slog.Logger
}

// Option configures a Grid.
type Option func(*Grid)

// WithOnDataChanged sets the hook run after post_data, delete_data,
// move_rows and successful form submits.
func WithOnDataChanged(fn DataChangedFunc) Option {
	return func(g *Grid) { g.onDataChanged = fn }
}

// WithOnColumnsChanged sets the hook run after accepted column changes.
func WithOnColumnsChanged(fn ColumnsChangedFunc) Option {
	return func(g *Grid) { g.onColumnsChanged = fn }
}

// WithOptions overrides get_combobox_options for the columns fn handles.
func WithOptions(fn OptionsFunc) Option {
	return func(g *Grid) { g.options = fn }
}

// WithBaseQuery replaces the configured query settings with q, typically a
// query.Custom built in code.
func WithBaseQuery(q query.BaseQuery) Option {
	return func(g *Grid) { g.base = q }
}

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(g *Grid) { g.logger = l }
}

// New returns the grid id over entity. instance is the settings layer from
// the grid definition.
func New(id string, entity *model.Entity, instance config.Layer, s store.Store, sessions session.Store, opts ...Option) *Grid {
	g := &Grid{
		id:       id,
		entity:   entity,
		instance: instance,
		store:    s,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the component id.
func (g *Grid) ID() string { return g.id }

// Entity returns the entity the grid reads and writes.
func (g *Grid) Entity() *model.Entity { return g.entity }

// Settings resolves the class defaults, the instance layer and the persisted
// overrides, in that order.
func (g *Grid) Settings(ctx context.Context) (model.GridSettings, error) {
	var persisted config.Layer
	c, err := g.store.GetConfig(ctx, model.ConfigKey(g.id, SettingsName))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return model.GridSettings{}, fmt.Errorf("load settings %s: %w", g.id, err)
	default:
		if persisted, err = config.ParseLayer(c.Value); err != nil {
			return model.GridSettings{}, fmt.Errorf("settings %s: %w", g.id, err)
		}
	}
	st, err := config.ResolveSettings(model.DefaultGridSettings(), g.instance, persisted)
	if err != nil {
		return model.GridSettings{}, fmt.Errorf("settings %s: %w", g.id, err)
	}
	st.Entity = g.entity.Name
	if len(st.Columns) == 0 {
		st.Columns = DefaultColumns(g.entity)
	}
	return st, nil
}

// Layout returns the column layout store of the grid under st.
func (g *Grid) Layout(st model.GridSettings) *layout.Layout {
	return layout.New(g.store, g.id, st.Columns, st.Capabilities, st.PersistentConfig)
}

// DefaultColumns derives columns from the entity when a grid defines none:
// the primary key (hidden) followed by every other attribute.
func DefaultColumns(e *model.Entity) model.Columns {
	pk := e.PKAttribute()
	cols := model.Columns{{Name: pk.Name, Hidden: true, ReadOnly: true, Filter: filterType(pk.Type)}}
	for _, a := range e.Attributes {
		if a.Name == pk.Name {
			continue
		}
		cols = append(cols, model.Column{Name: a.Name, ReadOnly: a.ReadOnly, Filter: filterType(a.Type)})
	}
	return cols
}

func filterType(t model.AttrType) string {
	switch t {
	case model.AttrInteger, model.AttrFloat:
		return "numeric"
	case model.AttrDate, model.AttrDatetime:
		return "date"
	case model.AttrBoolean:
		return "boolean"
	case model.AttrEnum:
		return "list"
	}
	return "string"
}

// call carries the state one endpoint invocation works with.
type call struct {
	*Grid
	session  string
	settings model.GridSettings
	layout   *layout.Layout
}

// Call runs endpoint for session with params. Per-record and permission
// failures are reported in the response feedback; configuration and
// capability errors are returned.
func (g *Grid) Call(ctx context.Context, sess, endpoint string, p Params) (any, error) {
	if p == nil {
		p = Params{}
	}
	st, err := g.Settings(ctx)
	if err != nil {
		return nil, err
	}
	c := &call{
		Grid:     g,
		session:  sess,
		settings: st,
		layout:   g.Layout(st),
	}

	var resp any
	switch endpoint {
	case EndpointGetData:
		resp, err = c.getData(ctx, p)
	case EndpointPostData:
		resp, err = c.postData(ctx, p)
	case EndpointDeleteData:
		resp, err = c.deleteData(ctx, p)
	case EndpointResizeColumn:
		resp, err = c.resizeColumn(ctx, p)
	case EndpointMoveColumn:
		resp, err = c.moveColumn(ctx, p)
	case EndpointHideColumn:
		resp, err = c.hideColumn(ctx, p)
	case EndpointResetColumns:
		resp, err = c.resetColumns(ctx)
	case EndpointGetComboboxOptions:
		resp, err = c.comboboxOptions(ctx, p)
	case EndpointMoveRows:
		resp, err = c.moveRows(ctx, p)
	case EndpointMultiEdit:
		resp, err = c.multiEdit(ctx, p)
	case EndpointAddFormSubmit:
		resp, err = c.formSubmit(ctx, mutator.OpCreate, p)
	case EndpointEditFormSubmit:
		resp, err = c.formSubmit(ctx, mutator.OpUpdate, p)
	case EndpointGetConfig:
		resp, err = c.widgetConfig(ctx)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEndpoint, endpoint)
	}
	if err != nil {
		err = asInputError(err)
		var ie InputError
		if !errors.As(err, &ie) {
			g.logger.Error("grid endpoint failed", "grid", g.id, "endpoint", endpoint, "err", err)
		}
		return nil, err
	}
	return resp, nil
}

func (c *call) dataChanged(ctx context.Context, endpoint string) {
	if c.onDataChanged != nil {
		c.onDataChanged(ctx, c.id, endpoint)
	}
}

func (c *call) columnsChanged(ctx context.Context, endpoint string) {
	if c.onColumnsChanged != nil {
		c.onColumnsChanged(ctx, c.id, endpoint)
	}
}

// columns returns the current column layout.
func (c *call) columns(ctx context.Context) (model.Columns, error) {
	return c.layout.Columns(ctx)
}

// includes returns the association columns of cols the entity can join.
func (c *call) includes(cols model.Columns) []string {
	var refs []string
	for _, col := range cols {
		if !strings.Contains(col.Name, model.AssocSeparator) {
			continue
		}
		if _, err := c.entity.Resolve(col.Name); err == nil {
			refs = append(refs, col.Name)
		}
	}
	return refs
}

// baseQuery returns the configured base relation variant.
func (c *call) baseQuery() (query.BaseQuery, error) {
	if c.base != nil {
		return c.base, nil
	}
	q, err := query.FromSpec(c.settings.Query, filter.NormalizeExtraConditions)
	if err != nil {
		return nil, fmt.Errorf("grid %s query: %w", c.id, err)
	}
	return q, nil
}

func (c *call) mutator(cols model.Columns) *mutator.Mutator {
	return &mutator.Mutator{
		Store:    c.store,
		Entity:   c.entity,
		Columns:  cols,
		Caps:     c.settings.Capabilities,
		Defaults: c.settings.StrongDefaultAttrs,
		Logger:   c.logger,
	}
}

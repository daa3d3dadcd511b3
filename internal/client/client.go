// Package client talks to a gridpanel server. Caller is the transport
// interface; the typed helpers in this file build endpoint params and decode
// the endpoint responses on top of it.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/grid"
)

// Caller runs grid endpoints on a server. It is implemented by HTTPClient
// and GRPCClient.
type Caller interface {
	// Call runs endpoint on grid with params and decodes the endpoint
	// response into result, which may be nil.
	Call(ctx context.Context, gridID, endpoint string, params map[string]any, result any) error

	// Session returns the grid session id the client sends, empty until the
	// server assigned one.
	Session() string

	Health(ctx context.Context) (string, error)
	Close() error
}

// DataRequest holds the get_data parameters.
type DataRequest struct {
	Filter          string         // JSON filter, either encoding
	ExtraConditions map[string]any // extended search conditions
	Sort            string
	Dir             string
	Start           int
	Limit           int
	WithLastParams  bool
}

func (r *DataRequest) params() map[string]any {
	p := map[string]any{}
	if r == nil {
		return p
	}
	if r.Filter != "" {
		p["filter"] = r.Filter
	}
	if len(r.ExtraConditions) > 0 {
		p["extra_conditions"] = r.ExtraConditions
	}
	if r.Sort != "" {
		p["sort"] = r.Sort
		if r.Dir != "" {
			p["dir"] = r.Dir
		}
	}
	if r.Start > 0 {
		p["start"] = r.Start
	}
	if r.Limit > 0 {
		p["limit"] = r.Limit
	}
	if r.WithLastParams {
		p["with_last_params"] = true
	}
	return p
}

// GetData reads one page of rows.
func GetData(ctx context.Context, c Caller, gridID string, req *DataRequest) (*grid.DataResponse, error) {
	var resp grid.DataResponse
	if err := c.Call(ctx, gridID, grid.EndpointGetData, req.params(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PostData creates and updates records in one batch.
func PostData(ctx context.Context, c Caller, gridID string, created, updated []map[string]any) (*grid.PostDataResponse, error) {
	p := map[string]any{}
	if len(created) > 0 {
		p["created_records"] = created
	}
	if len(updated) > 0 {
		p["updated_records"] = updated
	}
	var resp grid.PostDataResponse
	if err := c.Call(ctx, gridID, grid.EndpointPostData, p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteData deletes records by primary key.
func DeleteData(ctx context.Context, c Caller, gridID string, ids []any) (*grid.DeleteDataResponse, error) {
	var resp grid.DeleteDataResponse
	if err := c.Call(ctx, gridID, grid.EndpointDeleteData, map[string]any{"records": ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResizeColumn sets the width of the column at a visible index.
func ResizeColumn(ctx context.Context, c Caller, gridID string, index, size int) error {
	return c.Call(ctx, gridID, grid.EndpointResizeColumn, map[string]any{"index": index, "size": size}, nil)
}

// MoveColumn moves a column between visible indexes.
func MoveColumn(ctx context.Context, c Caller, gridID string, oldIndex, newIndex int) error {
	return c.Call(ctx, gridID, grid.EndpointMoveColumn, map[string]any{"old_index": oldIndex, "new_index": newIndex}, nil)
}

// HideColumn hides or shows the column at a visible index.
func HideColumn(ctx context.Context, c Caller, gridID string, index int, hidden bool) error {
	return c.Call(ctx, gridID, grid.EndpointHideColumn, map[string]any{"index": index, "hidden": hidden}, nil)
}

// ResetColumns drops the saved column layout.
func ResetColumns(ctx context.Context, c Caller, gridID string) error {
	return c.Call(ctx, gridID, grid.EndpointResetColumns, nil, nil)
}

// ComboboxOptions returns the choices of a column for a typed prefix.
func ComboboxOptions(ctx context.Context, c Caller, gridID, column, query string) ([][]any, error) {
	var resp grid.OptionsResponse
	p := map[string]any{"column": column, "query": query}
	if err := c.Call(ctx, gridID, grid.EndpointGetComboboxOptions, p, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// MoveRows reinserts the given records at a list index.
func MoveRows(ctx context.Context, c Caller, gridID string, ids []any, newIndex int) error {
	return c.Call(ctx, gridID, grid.EndpointMoveRows, map[string]any{"ids": ids, "new_index": newIndex}, nil)
}

// MultiEdit applies the same values to several records.
func MultiEdit(ctx context.Context, c Caller, gridID string, ids []any, data map[string]any) (*grid.SetResultResponse, error) {
	var resp grid.SetResultResponse
	if err := c.Call(ctx, gridID, grid.EndpointMultiEdit, map[string]any{"ids": ids, "data": data}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FormSubmit creates a record, or updates record id when id is non-nil.
func FormSubmit(ctx context.Context, c Caller, gridID string, id any, data map[string]any) (*grid.SetResultResponse, error) {
	endpoint := grid.EndpointAddFormSubmit
	p := map[string]any{"data": data}
	if id != nil {
		endpoint = grid.EndpointEditFormSubmit
		p["id"] = id
	}
	var resp grid.SetResultResponse
	if err := c.Call(ctx, gridID, endpoint, p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WidgetConfig returns the client-side configuration of a grid.
func WidgetConfig(ctx context.Context, c Caller, gridID string) (*grid.WidgetConfig, error) {
	var resp grid.WidgetConfig
	if err := c.Call(ctx, gridID, grid.EndpointGetConfig, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// remarshal converts v into result through JSON.
func remarshal(v, result any) error {
	if result == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	if err := json.Unmarshal(b, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

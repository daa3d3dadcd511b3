package grid

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/mutator"
	"github.com/alfredjeanlab/gridpanel/internal/query"
	"github.com/alfredjeanlab/gridpanel/internal/session"
)

// DataResponse is the answer to get_data. Total is the row count ignoring
// pagination, or false when pagination is off.
type DataResponse struct {
	Data  [][]any `json:"data"`
	Total any     `json:"total"`
}

// FeedbackResponse carries only feedback.
type FeedbackResponse struct {
	Feedback model.Feedback `json:"feedback"`
}

// PostDataResponse is the answer to post_data. UpdateNewRecords is null
// when nothing was created.
type PostDataResponse struct {
	UpdateNewRecords map[string][]any `json:"update_new_records"`
	UpdateModRecords map[string][]any `json:"update_mod_records"`
	Feedback         model.Feedback   `json:"feedback"`
}

// DeleteDataResponse is the answer to delete_data. LoadStoreData is the
// reloaded data, read with the session's last parameters.
type DeleteDataResponse struct {
	Feedback      model.Feedback `json:"feedback"`
	LoadStoreData any            `json:"load_store_data"`
}

// SetResultResponse is the answer to form submits and multi-edit.
type SetResultResponse struct {
	SetResult any            `json:"set_result,omitempty"`
	Record    []any          `json:"record,omitempty"`
	Feedback  model.Feedback `json:"feedback"`
}

func (c *call) getData(ctx context.Context, p Params) (any, error) {
	if c.settings.ProhibitRead {
		var fb model.Feedback
		fb.Error("You don't have permissions to read data")
		return FeedbackResponse{Feedback: fb}, nil
	}
	qp, err := p.QueryParams()
	if err != nil {
		return nil, err
	}
	return c.readData(ctx, qp)
}

// readData runs the query builder and renders the page. Unless qp asks for
// a replay, qp is remembered as the session's last parameters; on replay
// the remembered parameters are used and left as they are.
func (c *call) readData(ctx context.Context, qp model.QueryParams) (*DataResponse, error) {
	if qp.WithLastParams {
		var last model.QueryParams
		err := session.LoadJSON(ctx, c.sessions, c.id, c.session, lastParamsKey, &last)
		switch {
		case errors.Is(err, session.ErrNotFound):
			c.logger.Debug("no last params to replay", "grid", c.id, "session", c.session)
		case err != nil:
			return nil, err
		}
		qp = last
	} else if err := session.SaveJSON(ctx, c.sessions, c.id, c.session, lastParamsKey, qp); err != nil {
		return nil, err
	}

	cols, err := c.columns(ctx)
	if err != nil {
		return nil, err
	}
	visible := cols.Visible()
	base, err := c.baseQuery()
	if err != nil {
		return nil, err
	}
	b := &query.Builder{
		Entity:     c.entity,
		Base:       base,
		Pagination: c.settings.EnablePagination,
		PerPage:    c.settings.RowsPerPage,
		Include:    c.includes(visible),
		Logger:     c.logger,
	}
	rel, err := b.Build(qp)
	if err != nil {
		return nil, err
	}
	records, total, err := c.store.SelectRecords(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("get_data %s: %w", c.id, err)
	}

	resp := &DataResponse{Data: make([][]any, len(records)), Total: false}
	for i, r := range records {
		resp.Data[i] = r.ToArray(visible)
	}
	if c.settings.EnablePagination {
		resp.Total = total
	}
	return resp, nil
}

// recordsParam decodes the created or updated records of post_data. Both the
// "<op>d_records" key and the "<op>ds_records" spelling are accepted.
func recordsParam(p Params, op mutator.Op) ([]map[string]any, error) {
	for _, key := range []string{string(op) + "d_records", string(op) + "ds_records"} {
		if !p.Has(key) {
			continue
		}
		if s, ok := p[key].(string); ok && s == "" {
			return nil, nil
		}
		return p.Objects(key)
	}
	return nil, nil
}

func (c *call) postData(ctx context.Context, p Params) (any, error) {
	cols, err := c.columns(ctx)
	if err != nil {
		return nil, err
	}
	m := c.mutator(cols)

	var fb model.Feedback
	resp := PostDataResponse{UpdateModRecords: map[string][]any{}}
	for _, op := range []mutator.Op{mutator.OpCreate, mutator.OpUpdate} {
		data, err := recordsParam(p, op)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		res, err := m.Process(ctx, op, data, &fb)
		if err != nil {
			return nil, err
		}
		if len(res.Records) == 0 {
			continue
		}
		if op == mutator.OpCreate {
			resp.UpdateNewRecords = res.Records
		} else {
			resp.UpdateModRecords = res.Records
		}
	}

	c.dataChanged(ctx, EndpointPostData)
	resp.Feedback = fb
	return resp, nil
}

func (c *call) deleteData(ctx context.Context, p Params) (any, error) {
	if c.settings.ProhibitDelete {
		var fb model.Feedback
		fb.Error("You don't have permissions to delete data")
		return FeedbackResponse{Feedback: fb}, nil
	}
	raw, err := p.List("records")
	if err != nil {
		return nil, err
	}
	ids := make([]any, len(raw))
	for i, id := range raw {
		if ids[i], err = c.entity.CastID(id); err != nil {
			return nil, inputErrorf("records: %v", err)
		}
	}
	n, err := c.store.DeleteRecords(ctx, c.entity, ids)
	if err != nil {
		return nil, fmt.Errorf("delete_data %s: %w", c.id, err)
	}
	if n != len(ids) {
		c.logger.Debug("delete_data: some records were already gone", "grid", c.id, "requested", len(ids), "deleted", n)
	}
	c.dataChanged(ctx, EndpointDeleteData)

	var fb model.Feedback
	fb.Notice(fmt.Sprintf("Deleted %d record(s)", len(ids)))
	reload, err := c.getData(ctx, Params{"with_last_params": true})
	if err != nil {
		return nil, err
	}
	return DeleteDataResponse{Feedback: fb, LoadStoreData: reload}, nil
}

// multiEdit applies the same field values to every listed record.
func (c *call) multiEdit(ctx context.Context, p Params) (any, error) {
	if !c.settings.EnableEditInForm {
		return nil, fmt.Errorf("multi-edit: %w", ErrNotConfigured)
	}
	ids, err := p.List("ids")
	if err != nil {
		return nil, err
	}
	values, err := p.Object("data")
	if err != nil {
		return nil, err
	}
	data := make([]map[string]any, len(ids))
	for i, id := range ids {
		rec := make(map[string]any, len(values)+1)
		for k, v := range values {
			rec[k] = v
		}
		rec["id"] = id
		data[i] = rec
	}

	cols, err := c.columns(ctx)
	if err != nil {
		return nil, err
	}
	var fb model.Feedback
	res, err := c.mutator(cols).Process(ctx, mutator.OpUpdate, data, &fb)
	if err != nil {
		return nil, err
	}
	fb.Dedup()
	if res.Count == 0 {
		return SetResultResponse{Feedback: fb}, nil
	}
	c.dataChanged(ctx, EndpointMultiEdit)
	fb.Notice(fmt.Sprintf("Updated %d records.", res.Count))
	return SetResultResponse{SetResult: "ok", Feedback: fb}, nil
}

// formSubmit creates or updates a single record from a form.
func (c *call) formSubmit(ctx context.Context, op mutator.Op, p Params) (any, error) {
	if !c.settings.EnableEditInForm {
		return nil, fmt.Errorf("edit in form: %w", ErrNotConfigured)
	}
	values, err := p.Object("data")
	if err != nil {
		return nil, err
	}
	if op == mutator.OpUpdate && !p.Has("id") && values["id"] == nil {
		return nil, inputErrorf("id is required")
	}
	if p.Has("id") {
		values["id"] = p["id"]
	}

	cols, err := c.columns(ctx)
	if err != nil {
		return nil, err
	}
	var fb model.Feedback
	res, err := c.mutator(cols).Process(ctx, op, []map[string]any{values}, &fb)
	if err != nil {
		return nil, err
	}
	if res.Count == 0 {
		return SetResultResponse{Feedback: fb}, nil
	}
	endpoint := EndpointAddFormSubmit
	if op == mutator.OpUpdate {
		endpoint = EndpointEditFormSubmit
	}
	c.dataChanged(ctx, endpoint)
	var row []any
	for _, r := range res.Records {
		row = r
	}
	return SetResultResponse{SetResult: true, Record: row, Feedback: fb}, nil
}

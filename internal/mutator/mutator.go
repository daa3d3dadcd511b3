// Package mutator applies client-submitted create and update payloads to an
// entity, one record at a time, collecting per-record failures as feedback.
package mutator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
	"github.com/alfredjeanlab/gridpanel/internal/store"
)

// Op is the kind of mutation applied to a batch.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// Mutator writes records of one entity.
type Mutator struct {
	Store    store.Store
	Entity   *model.Entity
	Columns  model.Columns // columns rendered for successful records
	Caps     model.Capabilities
	Defaults map[string]any // strong default attributes, override submitted values
	Logger   *slog.Logger
}

// Result holds the rendered successful records keyed by the identifier the
// client knows them by.
type Result struct {
	Records map[string][]any
	Count   int
}

// recordFailure aborts a single record. Its message becomes one feedback
// entry per line.
type recordFailure struct {
	messages []string
}

func (f *recordFailure) Error() string { return strings.Join(f.messages, "; ") }

func fail(msgs ...string) error { return &recordFailure{messages: msgs} }

func (m *Mutator) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Mutator) prohibited(op Op) bool {
	switch op {
	case OpCreate:
		return m.Caps.ProhibitCreate
	case OpUpdate:
		return m.Caps.ProhibitUpdate
	}
	return true
}

// Process applies op to every payload in order. Records that fail
// assignment or validation are reported in fb and skipped; other storage
// failures abort the batch.
func (m *Mutator) Process(ctx context.Context, op Op, data []map[string]any, fb *model.Feedback) (Result, error) {
	res := Result{Records: map[string][]any{}}
	if m.prohibited(op) {
		fb.Error(fmt.Sprintf("You don't have permissions to %s data", op))
		return res, nil
	}
	for _, payload := range data {
		key, row, err := m.processOne(ctx, op, payload)
		var rf *recordFailure
		switch {
		case errors.As(err, &rf):
			for _, msg := range rf.messages {
				fb.Error(msg)
			}
			continue
		case err != nil:
			return res, err
		}
		res.Records[key] = row
		res.Count++
	}
	return res, nil
}

func (m *Mutator) processOne(ctx context.Context, op Op, payload map[string]any) (string, []any, error) {
	e := m.Entity
	attrs := make(map[string]any, len(payload)+len(m.Defaults))
	for k, v := range payload {
		attrs[k] = v
	}
	id, hasID := attrs[e.PK()]
	delete(attrs, e.PK())
	if e.PK() != "id" {
		if v, ok := attrs["id"]; ok && !hasID {
			id, hasID = v, true
		}
		delete(attrs, "id")
	}
	for k, v := range m.Defaults {
		attrs[k] = v
	}

	var existing model.Record
	if op == OpUpdate {
		if !hasID || id == nil {
			return "", nil, fail(fmt.Sprintf("%s without id can't be updated", model.Humanize(e.Name)))
		}
		cid, err := e.CastID(id)
		if err != nil {
			return "", nil, fail(err.Error())
		}
		existing, err = m.Store.FindRecord(ctx, e, cid)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, fail(fmt.Sprintf("Couldn't find %s with id=%v", model.Humanize(e.Name), id))
		}
		if err != nil {
			return "", nil, err
		}
	}

	changes, err := m.assign(ctx, attrs)
	if err != nil {
		return "", nil, err
	}

	merged := changes
	if existing != nil {
		merged = existing.Clone()
		for k, v := range changes {
			merged[k] = v
		}
	}
	if err := model.Validate(e, merged); err != nil {
		return "", nil, validationFailure(err)
	}

	var saved model.Record
	if op == OpCreate {
		if hasID && id != nil {
			// Client-side placeholder ids name the response entry only.
			m.logger().Debug("mutator: ignoring client id on create", "entity", e.Name, "id", id)
		}
		saved, err = m.Store.InsertRecord(ctx, e, changes)
	} else {
		saved, err = m.Store.UpdateRecord(ctx, e, existing[e.PK()], changes)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, fail(fmt.Sprintf("Couldn't find %s with id=%v", model.Humanize(e.Name), id))
		}
	}
	if err != nil {
		if vf := validationFailure(err); vf != nil {
			return "", nil, vf
		}
		return "", nil, err
	}

	row, err := m.render(ctx, saved)
	if err != nil {
		return "", nil, err
	}
	key := model.IDKey(id)
	if !hasID || id == nil {
		key = model.IDKey(saved[e.PK()])
	}
	return key, row, nil
}

// validationFailure converts validation errors into a record failure, or
// returns nil for any other error.
func validationFailure(err error) error {
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	msgs := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		msgs[i] = fe.FullMessage()
	}
	return fail(msgs...)
}

// assign casts every submitted field in sorted key order. The first field
// that cannot be assigned aborts the record.
func (m *Mutator) assign(ctx context.Context, attrs map[string]any) (model.Record, error) {
	e := m.Entity
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := model.Record{}
	for _, k := range keys {
		v := attrs[k]
		ref, err := e.Resolve(k)
		if err != nil {
			return nil, fail((&model.AssignmentError{Field: k, Message: "is not a known attribute"}).Error())
		}
		if ref.Assoc != nil {
			fk, err := m.lookupForeignKey(ctx, ref, v)
			if err != nil {
				return nil, err
			}
			out[ref.Assoc.ForeignKey] = fk
			continue
		}
		if ref.Attr.ReadOnly {
			continue
		}
		cast, err := model.Cast(ref.Attr, v)
		if err != nil {
			var ae *model.AssignmentError
			if errors.As(err, &ae) {
				return nil, fail(ae.Error())
			}
			return nil, err
		}
		out[ref.Attr.Name] = cast
	}
	return out, nil
}

// lookupForeignKey finds the associated record whose method attribute
// equals v and returns its primary key. Blank values and values without a
// match clear the association.
func (m *Mutator) lookupForeignKey(ctx context.Context, ref model.FieldRef, v any) (any, error) {
	if v == nil || v == "" {
		return nil, nil
	}
	target := ref.Assoc.Target
	cast, err := model.Cast(ref.Attr, v)
	if err != nil {
		var ae *model.AssignmentError
		if errors.As(err, &ae) {
			ae.Field = ref.Key()
			return nil, fail(ae.Error())
		}
		return nil, err
	}
	rel := query.From(target).
		Where(model.Condition{Field: ref.Attr.Name, Op: model.OpEq, Value: cast}).
		Paginate(1, 1)
	found, _, err := m.Store.SelectRecords(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", ref.Key(), err)
	}
	if len(found) == 0 {
		m.logger().Debug("mutator: no associated record", "field", ref.Key(), "value", v)
		return nil, nil
	}
	return found[0][target.PK()], nil
}

// render reloads the saved record with the association columns it is
// displayed with and returns its field array.
func (m *Mutator) render(ctx context.Context, saved model.Record) ([]any, error) {
	e := m.Entity
	cols := m.Columns.Visible()
	var refs []string
	for _, c := range cols {
		if strings.Contains(c.Name, model.AssocSeparator) {
			if _, err := e.Resolve(c.Name); err == nil {
				refs = append(refs, c.Name)
			}
		}
	}
	if len(refs) == 0 {
		return saved.ToArray(cols), nil
	}
	rel := query.From(e).
		Where(model.Condition{Field: e.PK(), Op: model.OpEq, Value: saved[e.PK()]}).
		Including(refs...)
	rows, _, err := m.Store.SelectRecords(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", e.Name, err)
	}
	if len(rows) == 0 {
		return saved.ToArray(cols), nil
	}
	return rows[0].ToArray(cols), nil
}

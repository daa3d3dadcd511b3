package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/gridpanel/internal/idgen"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func querySelectRecords(ctx context.Context, db executor, rel *query.Relation) ([]model.Record, int, error) {
	q, args, fields, err := compileSelect(rel)
	if err != nil {
		return nil, 0, fmt.Errorf("compile %s: %w", rel.Entity.Name, err)
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select %s: %w", rel.Entity.Name, err)
	}
	defer rows.Close()

	records, total, err := scanRecords(rows, fields)
	if err != nil {
		return nil, 0, fmt.Errorf("scan %s: %w", rel.Entity.Name, err)
	}

	// A page past the end carries no window count.
	if len(records) == 0 && rel.Page != nil && rel.Page.Offset() > 0 {
		cq, cargs, err := compileCount(rel)
		if err != nil {
			return nil, 0, err
		}
		if err := db.QueryRowContext(ctx, cq, cargs...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count %s: %w", rel.Entity.Name, err)
		}
	}
	return records, total, nil
}

func queryFindRecord(ctx context.Context, db executor, e *model.Entity, id any) (model.Record, error) {
	pk := e.PKAttribute()
	rel := query.From(e).Where(model.Condition{Field: pk.Name, Op: model.OpEq, Value: id})
	records, _, err := querySelectRecords(ctx, db, rel)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sql.ErrNoRows
	}
	return records[0], nil
}

// writable returns the attributes of e present in r, sorted by name so that
// statements are deterministic.
func writable(e *model.Entity, r model.Record, includePK bool) []model.Attribute {
	pk := e.PK()
	var out []model.Attribute
	for _, a := range e.Attributes {
		if a.Name == pk && !includePK {
			continue
		}
		if _, ok := r[a.Name]; ok {
			out = append(out, a)
		}
	}
	if includePK {
		if _, listed := e.Attribute(pk); !listed {
			if _, ok := r[pk]; ok {
				out = append(out, e.PKAttribute())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func returning(e *model.Entity) string {
	cols := ownColumns(e)
	parts := make([]string, len(cols))
	for i, s := range cols {
		parts[i] = quote(s.attr.ColumnName()) + " AS " + quote(s.key)
	}
	return " RETURNING " + strings.Join(parts, ", ")
}

func queryInsertRecord(ctx context.Context, db executor, e *model.Entity, r model.Record) (model.Record, error) {
	pk := e.PKAttribute()
	if pk.Type == model.AttrString && r[pk.Name] == nil {
		id, err := idgen.Record()
		if err != nil {
			return nil, err
		}
		r = r.Clone()
		r[pk.Name] = id
	}

	attrs := writable(e, r, true)
	var q string
	args := make([]any, 0, len(attrs))
	if len(attrs) == 0 {
		q = "INSERT INTO " + quote(e.TableName()) + " DEFAULT VALUES"
	} else {
		cols := make([]string, len(attrs))
		placeholders := make([]string, len(attrs))
		for i, a := range attrs {
			cols[i] = quote(a.ColumnName())
			args = append(args, dbValue(a, r[a.Name]))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		q = "INSERT INTO " + quote(e.TableName()) + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
	}
	q += returning(e)

	saved, _, err := scanRecord(db.QueryRowContext(ctx, q, args...), ownColumns(e), false)
	if err != nil {
		return nil, constraintError(fmt.Errorf("insert %s: %w", e.Name, err))
	}
	return saved, nil
}

func queryUpdateRecord(ctx context.Context, db executor, e *model.Entity, id any, r model.Record) (model.Record, error) {
	attrs := writable(e, r, false)
	if len(attrs) == 0 {
		return queryFindRecord(ctx, db, e, id)
	}
	sets := make([]string, len(attrs))
	args := make([]any, 0, len(attrs)+1)
	for i, a := range attrs {
		args = append(args, dbValue(a, r[a.Name]))
		sets[i] = fmt.Sprintf("%s = $%d", quote(a.ColumnName()), len(args))
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		quote(e.TableName()), strings.Join(sets, ", "), quote(e.PKAttribute().ColumnName()), len(args))
	q += returning(e)

	saved, _, err := scanRecord(db.QueryRowContext(ctx, q, args...), ownColumns(e), false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, constraintError(fmt.Errorf("update %s: %w", e.Name, err))
	}
	return saved, nil
}

func queryDeleteRecords(ctx context.Context, db executor, e *model.Entity, ids []any) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	for i := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		quote(e.TableName()), quote(e.PKAttribute().ColumnName()), strings.Join(placeholders, ", "))
	res, err := db.ExecContext(ctx, q, ids...)
	if err != nil {
		return 0, constraintError(fmt.Errorf("delete %s: %w", e.Name, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// queryInsertAt moves a record to position, shifting the rows between its
// old and new positions by one. Callers run it inside a transaction.
func queryInsertAt(ctx context.Context, db executor, e *model.Entity, id any, position int) error {
	if !e.Ordered() {
		return fmt.Errorf("%s has no position column", e.Name)
	}
	posAttr, _ := e.Attribute(e.PositionColumn)
	table := quote(e.TableName())
	pos := quote(posAttr.ColumnName())
	pk := quote(e.PKAttribute().ColumnName())

	var old sql.NullInt64
	err := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 FOR UPDATE", pos, table, pk), id).Scan(&old)
	if err != nil {
		return err
	}

	switch {
	case !old.Valid:
		_, err = db.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s = %s + 1 WHERE %s >= $1", table, pos, pos, pos), position)
	case int64(position) < old.Int64:
		_, err = db.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s = %s + 1 WHERE %s >= $1 AND %s < $2", table, pos, pos, pos, pos),
			position, old.Int64)
	case int64(position) > old.Int64:
		_, err = db.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s = %s - 1 WHERE %s > $1 AND %s <= $2", table, pos, pos, pos, pos),
			old.Int64, position)
	}
	if err != nil {
		return fmt.Errorf("shift positions: %w", err)
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2", table, pos, pk), position, id)
	if err != nil {
		return fmt.Errorf("set position: %w", err)
	}
	return nil
}

func queryDistinctValues(ctx context.Context, db executor, rel *query.Relation, field, prefix string) ([]any, error) {
	q, args, attr, err := compileDistinct(rel, field, prefix)
	if err != nil {
		return nil, fmt.Errorf("compile distinct %s: %w", field, err)
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", field, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, normalizeValue(attr, v))
	}
	return out, rows.Err()
}

// constraintError turns integrity constraint violations reported by
// Postgres (class 23) into validation errors.
func constraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code.Class() != "23" {
		return err
	}
	msg := "is invalid"
	switch pqErr.Code.Name() {
	case "not_null_violation":
		msg = "can't be blank"
	case "unique_violation":
		msg = "has already been taken"
	case "foreign_key_violation":
		msg = "does not exist"
	}
	field := pqErr.Column
	if field == "" && pqErr.Code.Name() != "not_null_violation" {
		field = constraintColumn(pqErr.Constraint, pqErr.Table)
	}
	if field == "" {
		return &model.ValidationError{Errors: []model.FieldError{{Message: pqErr.Message}}}
	}
	return &model.ValidationError{Errors: []model.FieldError{{Field: field, Message: msg}}}
}

// constraintColumn guesses the column from a conventional constraint name
// such as "books_isbn_key" or "books_author_id_fkey".
func constraintColumn(constraint, table string) string {
	name := strings.TrimPrefix(constraint, table+"_")
	for _, suffix := range []string{"_key", "_fkey", "_check"} {
		if strings.HasSuffix(name, suffix) && name != constraint {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return ""
}

func querySetConfig(ctx context.Context, db executor, c *model.Config) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO grid_configs (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()
		RETURNING created_at, updated_at`,
		c.Key, []byte(c.Value),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func queryGetConfig(ctx context.Context, db executor, key string) (*model.Config, error) {
	row := db.QueryRowContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM grid_configs WHERE key = $1`, key)
	return scanConfig(row)
}

func queryListConfigs(ctx context.Context, db executor, namespace string) ([]*model.Config, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM grid_configs WHERE key LIKE $1 || ':%'
		ORDER BY key`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConfigs(rows)
}

func queryListAllConfigs(ctx context.Context, db executor) ([]*model.Config, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM grid_configs ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanConfigs(rows)
}

func queryDeleteConfig(ctx context.Context, db executor, key string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM grid_configs WHERE key = $1`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

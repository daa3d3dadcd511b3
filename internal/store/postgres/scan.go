package postgres

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRecord scans one row whose columns follow fields, optionally preceded
// by a total_count column.
func scanRecord(row scannable, fields []selected, withTotal bool) (model.Record, int, error) {
	var total int
	dest := make([]any, 0, len(fields)+1)
	if withTotal {
		dest = append(dest, &total)
	}
	vals := make([]any, len(fields))
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}
	r := make(model.Record, len(fields))
	for i, f := range fields {
		r[f.key] = normalizeValue(f.attr, vals[i])
	}
	return r, total, nil
}

// scanRecords scans a result set produced by compileSelect.
func scanRecords(rows *sql.Rows, fields []selected) ([]model.Record, int, error) {
	var out []model.Record
	var total int
	for rows.Next() {
		r, t, err := scanRecord(rows, fields, true)
		if err != nil {
			return nil, 0, err
		}
		total = t
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// normalizeValue converts a driver value into the representation model.Cast
// produces for the attribute's type.
func normalizeValue(a model.Attribute, v any) any {
	b, ok := v.([]byte)
	if !ok {
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
		return v
	}
	switch a.Type {
	case model.AttrJSON:
		return json.RawMessage(append([]byte(nil), b...))
	case model.AttrFloat:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	case model.AttrInteger:
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
	}
	return string(b)
}

// scanConfig scans a single row into a model.Config.
func scanConfig(row scannable) (*model.Config, error) {
	var c model.Config
	var value []byte
	err := row.Scan(&c.Key, &value, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Value = json.RawMessage(value)
	return &c, nil
}

// scanConfigs scans multiple rows into a slice of model.Config pointers.
func scanConfigs(rows *sql.Rows) ([]*model.Config, error) {
	var configs []*model.Config
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

// dbValue converts a record value for use as a statement argument.
func dbValue(a model.Attribute, v any) any {
	if a.Type == model.AttrJSON && v != nil {
		switch x := v.(type) {
		case json.RawMessage:
			return []byte(x)
		case []byte:
			return x
		}
		if b, err := json.Marshal(v); err == nil {
			return b
		}
	}
	return v
}

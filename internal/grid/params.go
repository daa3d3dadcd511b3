package grid

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/gridpanel/internal/filter"
	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// Params is the loosely typed request mapping of one endpoint call. Values
// arrive either decoded (numbers, lists, objects) or as strings, including
// JSON-encoded lists and objects.
type Params map[string]any

// Has reports whether key is present and non-null.
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String returns the value under key as a string; numbers and booleans are
// formatted, a missing key yields "".
func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the value under key as an int. A missing or non-numeric value
// is an InputError.
func (p Params) Int(key string) (int, error) {
	switch v := p[key].(type) {
	case nil:
		return 0, inputErrorf("%s is required", key)
	case float64:
		if v != float64(int(v)) {
			return 0, inputErrorf("%s must be an integer", key)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, inputErrorf("%s must be an integer", key)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, inputErrorf("%s must be an integer", key)
		}
		return n, nil
	}
	return 0, inputErrorf("%s must be an integer", key)
}

// IntOr returns the value under key, or def when the key is absent.
func (p Params) IntOr(key string, def int) (int, error) {
	if !p.Has(key) {
		return def, nil
	}
	return p.Int(key)
}

// Bool interprets the value under key loosely: true, 1, "true", "1", "on"
// and "yes" are true, anything else is false.
func (p Params) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "on", "yes", "t":
			return true
		}
	}
	return false
}

// decode unmarshals the value under key into out, accepting either the
// decoded value or its JSON encoding.
func (p Params) decode(key string, out any) error {
	var data []byte
	switch v := p[key].(type) {
	case nil:
		return inputErrorf("%s is required", key)
	case string:
		data = []byte(v)
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return inputErrorf("%s: %v", key, err)
		}
		data = b
	}
	if err := json.Unmarshal(data, out); err != nil {
		return inputErrorf("%s: malformed JSON: %v", key, err)
	}
	return nil
}

// List decodes the value under key as a list.
func (p Params) List(key string) ([]any, error) {
	var out []any
	if err := p.decode(key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Object decodes the value under key as an object.
func (p Params) Object(key string) (map[string]any, error) {
	var out map[string]any
	if err := p.decode(key, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Objects decodes the value under key as a list of objects.
func (p Params) Objects(key string) ([]map[string]any, error) {
	var out []map[string]any
	if err := p.decode(key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QueryParams extracts the read parameters of get_data.
func (p Params) QueryParams() (model.QueryParams, error) {
	var qp model.QueryParams
	entries, err := filter.ParseFilter(p["filter"])
	if err != nil {
		return qp, InputError(err.Error())
	}
	qp.Filter = entries

	if p.Has("extra_conditions") {
		switch v := p["extra_conditions"].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				extra, err := p.Object("extra_conditions")
				if err != nil {
					return qp, err
				}
				qp.ExtraConditions = extra
			}
		case map[string]any:
			qp.ExtraConditions = v
		default:
			return qp, inputErrorf("extra_conditions must be an object, got %T", v)
		}
	}

	qp.Sort = p.String("sort")
	qp.Dir = p.String("dir")
	if qp.Start, err = p.IntOr("start", 0); err != nil {
		return qp, err
	}
	if qp.Limit, err = p.IntOr("limit", 0); err != nil {
		return qp, err
	}
	qp.WithLastParams = p.Bool("with_last_params")
	return qp, nil
}

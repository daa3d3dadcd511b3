package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// AssignmentError reports a value that cannot be assigned to an attribute
// because of its type or format.
type AssignmentError struct {
	Field   string
	Message string
}

func (e *AssignmentError) Error() string {
	return Humanize(e.Field) + " " + e.Message
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", time.RFC3339}

var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Cast coerces a loosely typed client value into the Go representation of
// the attribute's type: int64, float64, bool, time.Time, string, or any for
// json. Nil and empty strings for non-string attributes become nil.
func Cast(a Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if n, ok := v.(json.Number); ok {
		v = n.String()
	}
	fail := func(msg string) (any, error) {
		return nil, &AssignmentError{Field: a.Name, Message: msg}
	}

	switch a.Type {
	case AttrString, "":
		switch s := v.(type) {
		case string:
			return s, nil
		case bool:
			return strconv.FormatBool(s), nil
		case time.Time:
			return s.Format(time.RFC3339), nil
		}
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
		return fail("must be a string")

	case AttrInteger:
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				return nil, nil
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fail("must be an integer")
			}
			return n, nil
		}
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			return fail("must be an integer")
		}
		return int64(f), nil

	case AttrFloat:
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fail("must be a number")
			}
			return f, nil
		}
		f, ok := toFloat(v)
		if !ok {
			return fail("must be a number")
		}
		return f, nil

	case AttrBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "":
				return nil, nil
			case "true", "t", "1", "on", "yes":
				return true, nil
			case "false", "f", "0", "off", "no":
				return false, nil
			}
			return fail("must be true or false")
		}
		if f, ok := toFloat(v); ok && (f == 0 || f == 1) {
			return f == 1, nil
		}
		return fail("must be true or false")

	case AttrDate:
		t, ok, empty := parseTime(v, dateLayouts)
		if empty {
			return nil, nil
		}
		if !ok {
			return fail("is not a valid date")
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil

	case AttrDatetime:
		t, ok, empty := parseTime(v, datetimeLayouts)
		if empty {
			return nil, nil
		}
		if !ok {
			return fail("is not a valid datetime")
		}
		return t.UTC(), nil

	case AttrEnum:
		s, ok := v.(string)
		if !ok {
			return fail("must be a string")
		}
		if s == "" {
			return nil, nil
		}
		if !contains(a.Values, s) {
			return fail(fmt.Sprintf("must be one of %v", a.Values))
		}
		return s, nil

	case AttrJSON:
		return v, nil
	}
	return fail(fmt.Sprintf("has unknown type %q", a.Type))
}

func parseTime(v any, layouts []string) (t time.Time, ok, empty bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true, false
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return time.Time{}, false, true
		}
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, x, time.UTC); err == nil {
				return t, true, false
			}
		}
	}
	return time.Time{}, false, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func contains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}

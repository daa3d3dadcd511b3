package memory

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// matchCondition evaluates one condition against a joined row.
func matchCondition(v any, c model.Condition) bool {
	switch c.Op {
	case model.OpEq:
		return equalValues(v, c.Value)
	case model.OpNe:
		return !equalValues(v, c.Value)
	case model.OpGt, model.OpLt, model.OpGte, model.OpLte:
		if v == nil || c.Value == nil {
			return false
		}
		cmp, ok := compareValues(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case model.OpGt:
			return cmp > 0
		case model.OpLt:
			return cmp < 0
		case model.OpGte:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	case model.OpMatches:
		if v == nil {
			return false
		}
		return likeMatch(fmt.Sprint(c.Value), text(v))
	case model.OpStarts:
		if v == nil {
			return false
		}
		return strings.HasPrefix(strings.ToLower(text(v)), strings.ToLower(fmt.Sprint(c.Value)))
	case model.OpIn:
		list, _ := c.Value.([]any)
		for _, item := range list {
			if equalValues(v, item) {
				return true
			}
		}
		return false
	}
	return false
}

func text(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// likeMatch reports whether s matches a case-insensitive SQL LIKE pattern.
func likeMatch(pattern, s string) bool {
	var b strings.Builder
	b.WriteString("(?is)^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String()).MatchString(s)
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

// equalValues compares two values loosely: numbers compare by value, times
// by instant.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareValues orders two non-nil values of compatible types.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// orderValues sorts nils last, as Postgres does for ascending order.
func orderValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

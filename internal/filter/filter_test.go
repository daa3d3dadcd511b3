package filter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

func TestParseFilter_ObjectOrderedByKey(t *testing.T) {
	raw := `{
		"10": {"field": "genre", "data": {"type": "list", "value": ["poetry"]}},
		"2":  {"field": "pages", "data": {"type": "numeric", "comparison": "gt", "value": 100}},
		"0":  {"field": "title", "data": {"type": "string", "value": "dune"}}
	}`
	got, err := ParseFilter(raw)
	if err != nil {
		t.Fatal(err)
	}
	var fields []string
	for _, e := range got {
		fields = append(fields, e.Field)
	}
	if !reflect.DeepEqual(fields, []string{"title", "pages", "genre"}) {
		t.Errorf("order = %v", fields)
	}
	if got[1].Comparison != "gt" || got[1].Value != float64(100) {
		t.Errorf("numeric entry = %+v", got[1])
	}
}

func TestParseFilter_DecodedMap(t *testing.T) {
	raw := map[string]any{
		"0": map[string]any{"field": "title", "data": map[string]any{"type": "string", "value": "x"}},
	}
	got, err := ParseFilter(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Type != "string" {
		t.Fatalf("got %+v", got)
	}
}

func TestParseFilter_Invalid(t *testing.T) {
	for _, raw := range []any{`not json`, `{"0": {"data": {"type": "string"}}}`, 42} {
		if _, err := ParseFilter(raw); !errors.Is(err, ErrInvalid) {
			t.Errorf("ParseFilter(%v) = %v, want ErrInvalid", raw, err)
		}
	}
	if got, err := ParseFilter(""); err != nil || got != nil {
		t.Errorf("empty string = %v, %v", got, err)
	}
}

func TestTranslate(t *testing.T) {
	for _, tc := range []struct {
		name  string
		entry model.FilterEntry
		want  model.Condition
	}{
		{
			name:  "StringSubstring",
			entry: model.FilterEntry{Field: "title", Type: "string", Value: "Dune"},
			want:  model.Condition{Field: "title", Op: model.OpMatches, Value: "%Dune%"},
		},
		{
			name:  "StringWildcardsEscaped",
			entry: model.FilterEntry{Field: "title", Type: "string", Value: `50%_off\`},
			want:  model.Condition{Field: "title", Op: model.OpMatches, Value: `%50\%\_off\\%`},
		},
		{
			name:  "NumericComparison",
			entry: model.FilterEntry{Field: "pages", Type: "numeric", Comparison: "lte", Value: 300.0},
			want:  model.Condition{Field: "pages", Op: model.OpLte, Value: 300.0},
		},
		{
			name:  "DateDefaultsToEq",
			entry: model.FilterEntry{Field: "published_on", Type: "date", Value: "01/31/2010"},
			want:  model.Condition{Field: "published_on", Op: model.OpEq, Value: "01/31/2010"},
		},
		{
			name:  "UnknownTypeEquality",
			entry: model.FilterEntry{Field: "in_print", Type: "boolean", Value: true},
			want:  model.Condition{Field: "in_print", Op: model.OpEq, Value: true},
		},
		{
			name:  "ListMembership",
			entry: model.FilterEntry{Field: "genre", Type: "list", Value: []any{"a", "b"}},
			want:  model.Condition{Field: "genre", Op: model.OpIn, Value: []any{"a", "b"}},
		},
		{
			name:  "AssociationField",
			entry: model.FilterEntry{Field: "author__name", Type: "string", Value: "le"},
			want:  model.Condition{Assoc: "author", Field: "name", Op: model.OpMatches, Value: "%le%"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Translate([]model.FilterEntry{tc.entry})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || !reflect.DeepEqual(got[0], tc.want) {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestTranslate_CombinesWithAnd(t *testing.T) {
	got, err := Translate([]model.FilterEntry{
		{Field: "pages", Type: "numeric", Comparison: "gt", Value: 10.0},
		{Field: "pages", Type: "numeric", Comparison: "lt", Value: 20.0},
		{Field: "title", Type: "string", Value: "a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d conditions, want 3", len(got))
	}
}

func TestTranslate_UnknownComparison(t *testing.T) {
	_, err := Translate([]model.FilterEntry{{Field: "pages", Type: "numeric", Comparison: "between", Value: 1}})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("got %v, want ErrInvalid", err)
	}
}

func TestNormalizeExtraConditions(t *testing.T) {
	got, err := NormalizeExtraConditions(map[string]any{
		"author__":   map[string]any{"name__starts": "Le"},
		"pages__gte": 100.0,
		"genre":      "poetry",
		"tags":       []any{"a"},
		"editor__id": 7.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := model.Conditions{
		{Assoc: "author", Field: "name", Op: model.OpStarts, Value: "Le"},
		{Assoc: "editor", Field: "id", Op: model.OpEq, Value: 7.0},
		{Field: "genre", Op: model.OpEq, Value: "poetry"},
		{Field: "pages", Op: model.OpGte, Value: 100.0},
		{Field: "tags", Op: model.OpIn, Value: []any{"a"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got  %+v\nwant %+v", got, want)
	}
}

func TestNormalizeExtraConditions_Errors(t *testing.T) {
	for _, m := range []map[string]any{
		{"author__": "x"},
		{"author__": map[string]any{"publisher__": map[string]any{"name": "x"}}},
	} {
		if _, err := NormalizeExtraConditions(m); !errors.Is(err, ErrInvalid) {
			t.Errorf("NormalizeExtraConditions(%v) = %v, want ErrInvalid", m, err)
		}
	}
}

func TestExtraConditionsMergeIntoFilter(t *testing.T) {
	fromFilter, _ := Translate([]model.FilterEntry{{Field: "genre", Type: "list", Value: "fiction"}})
	extra, err := DecodeExtraConditions(`{"genre": "poetry", "pages__gt": 5}`)
	if err != nil {
		t.Fatal(err)
	}
	merged := fromFilter.Merge(extra)
	if len(merged) != 2 || merged[0].Value != "poetry" {
		t.Errorf("merged = %+v", merged)
	}
}

package grid

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParams_Int(t *testing.T) {
	for _, tc := range []struct {
		value   any
		want    int
		wantErr bool
	}{
		{3.0, 3, false},
		{"12", 12, false},
		{" 7 ", 7, false},
		{json.Number("42"), 42, false},
		{int64(5), 5, false},
		{2.5, 0, true},
		{"two", 0, true},
		{nil, 0, true},
		{true, 0, true},
	} {
		got, err := Params{"n": tc.value}.Int("n")
		if tc.wantErr {
			var ie InputError
			if !errors.As(err, &ie) {
				t.Errorf("Int(%v): expected InputError, got %v", tc.value, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("Int(%v) = %d, %v; want %d", tc.value, got, err, tc.want)
		}
	}
}

func TestParams_Bool(t *testing.T) {
	for _, tc := range []struct {
		value any
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{"on", true},
		{1.0, true},
		{"false", false},
		{"0", false},
		{nil, false},
		{0.0, false},
	} {
		if got := (Params{"b": tc.value}).Bool("b"); got != tc.want {
			t.Errorf("Bool(%v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestParams_ListAndObjects(t *testing.T) {
	p := Params{
		"encoded": "[1, 2]",
		"decoded": []any{1.0, 2.0},
		"records": `[{"id": 1, "title": "Dune"}]`,
		"bad":     "[1,",
	}
	for _, key := range []string{"encoded", "decoded"} {
		got, err := p.List(key)
		if err != nil || !reflect.DeepEqual(got, []any{1.0, 2.0}) {
			t.Errorf("List(%s) = %v, %v", key, got, err)
		}
	}
	recs, err := p.Objects("records")
	if err != nil || len(recs) != 1 || recs[0]["title"] != "Dune" {
		t.Errorf("Objects = %v, %v", recs, err)
	}
	if _, err := p.List("bad"); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := p.List("missing"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestParams_QueryParams(t *testing.T) {
	p := Params{
		"filter":           `{"1":{"field":"pages","data":{"type":"numeric","comparison":"lt","value":300}},"0":{"field":"title","data":{"type":"string","value":"dune"}}}`,
		"extra_conditions": `{"genre": "sf"}`,
		"sort":             "title",
		"dir":              "ASC",
		"start":            50.0,
		"limit":            "25",
		"with_last_params": "true",
	}
	qp, err := p.QueryParams()
	if err != nil {
		t.Fatal(err)
	}
	if len(qp.Filter) != 2 || qp.Filter[0].Field != "title" || qp.Filter[1].Comparison != "lt" {
		t.Errorf("filter = %+v", qp.Filter)
	}
	if qp.ExtraConditions["genre"] != "sf" {
		t.Errorf("extra conditions = %v", qp.ExtraConditions)
	}
	if qp.Sort != "title" || qp.Dir != "ASC" || qp.Start != 50 || qp.Limit != 25 || !qp.WithLastParams {
		t.Errorf("params = %+v", qp)
	}

	empty, err := Params{"extra_conditions": ""}.QueryParams()
	if err != nil || empty.ExtraConditions != nil || empty.Filter != nil {
		t.Errorf("empty params = %+v, %v", empty, err)
	}

	if _, err := (Params{"extra_conditions": 4.0}).QueryParams(); err == nil {
		t.Error("expected error for non-object extra_conditions")
	}
}

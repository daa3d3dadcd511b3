package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestFeedbackJSON(t *testing.T) {
	var fb Feedback
	fb.Error("Title can't be blank")
	fb.Notice("Updated 2 records.")

	data, err := json.Marshal(fb)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"error":"Title can't be blank"},{"notice":"Updated 2 records."}]`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}

	var back Feedback
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Entries(), fb.Entries()) {
		t.Errorf("round trip = %v", back.Entries())
	}

	var empty Feedback
	if data, _ := json.Marshal(empty); string(data) != "[]" {
		t.Errorf("empty feedback = %s, want []", data)
	}
}

func TestFeedbackUnmarshalString(t *testing.T) {
	var fb Feedback
	if err := json.Unmarshal([]byte(`"Deleted 2 record(s)"`), &fb); err != nil {
		t.Fatal(err)
	}
	if got := fb.Messages(SeverityNotice); !reflect.DeepEqual(got, []string{"Deleted 2 record(s)"}) {
		t.Errorf("got %v", got)
	}
}

func TestFeedbackDedup(t *testing.T) {
	var fb Feedback
	fb.Error("a")
	fb.Error("b")
	fb.Error("a")
	fb.Notice("a")
	fb.Error("b")
	if fb.Len() != 5 {
		t.Fatalf("Len = %d before dedup", fb.Len())
	}
	fb.Dedup()
	want := []FeedbackEntry{
		{SeverityError, "a"},
		{SeverityError, "b"},
		{SeverityNotice, "a"},
	}
	if !reflect.DeepEqual(fb.Entries(), want) {
		t.Errorf("got %v, want %v", fb.Entries(), want)
	}
	if !fb.HasErrors() {
		t.Error("HasErrors = false")
	}
}

func TestConditionsMerge(t *testing.T) {
	base := Conditions{
		{Field: "title", Op: OpMatches, Value: "%a%"},
		{Field: "pages", Op: OpGt, Value: int64(10)},
	}
	extra := Conditions{
		{Field: "pages", Op: OpGt, Value: int64(20)},
		{Assoc: "author", Field: "name", Op: OpEq, Value: "Le Guin"},
	}
	got := base.Merge(extra)
	if len(got) != 3 {
		t.Fatalf("got %d conditions, want 3", len(got))
	}
	if got[1].Value != int64(20) {
		t.Errorf("same-key condition not overridden: %v", got[1])
	}
	if got[2].Ref() != "author__name" {
		t.Errorf("Ref() = %q", got[2].Ref())
	}
	if base[1].Value != int64(10) {
		t.Error("Merge mutated its receiver")
	}
}

func TestParseOp(t *testing.T) {
	if op, ok := ParseOp("like"); !ok || op != OpMatches {
		t.Errorf("like -> %v %v", op, ok)
	}
	if _, ok := ParseOp("between"); ok {
		t.Error("between should be unknown")
	}
}

func TestEscapeLike(t *testing.T) {
	for in, want := range map[string]string{
		"dune": "dune",
		"u_e":  `u\_e`,
		"100%": `100\%`,
		`a\b`:  `a\\b`,
		`%_\`:  `\%\_\\`,
	} {
		if got := EscapeLike(in); got != want {
			t.Errorf("EscapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func testRegistry(t *testing.T) (*Registry, *Entity) {
	t.Helper()
	author := &Entity{Name: "author", Table: "authors", Attributes: []Attribute{
		{Name: "name", Type: AttrString},
	}}
	book := &Entity{
		Name:  "book",
		Table: "books",
		Attributes: []Attribute{
			{Name: "title", Type: AttrString},
			{Name: "author_id", Type: AttrInteger},
			{Name: "position", Type: AttrInteger},
		},
		Associations:   []Association{{Name: "author", Entity: "author"}},
		PositionColumn: "position",
	}
	reg, err := NewRegistry(author, book)
	if err != nil {
		t.Fatal(err)
	}
	return reg, book
}

func TestRegistryLinksAssociations(t *testing.T) {
	reg, book := testRegistry(t)
	if got := reg.Names(); !reflect.DeepEqual(got, []string{"author", "book"}) {
		t.Errorf("Names() = %v", got)
	}
	as, ok := book.Association("author")
	if !ok || as.Target == nil || as.Target.Name != "author" {
		t.Fatalf("association not linked: %+v", as)
	}
	if as.ForeignKey != "author_id" {
		t.Errorf("default foreign key = %q", as.ForeignKey)
	}
	if !book.Ordered() {
		t.Error("book should be ordered")
	}
}

func TestRegistryErrors(t *testing.T) {
	orphan := &Entity{Name: "book", Attributes: []Attribute{{Name: "author_id"}},
		Associations: []Association{{Name: "author", Entity: "nobody"}}}
	if _, err := NewRegistry(orphan); err == nil {
		t.Error("expected error for unknown association target")
	}
	noFK := &Entity{Name: "book", Associations: []Association{{Name: "self", Entity: "book"}}}
	if _, err := NewRegistry(noFK); err == nil {
		t.Error("expected error for missing foreign key attribute")
	}
	if _, err := NewRegistry(&Entity{Name: "a"}, &Entity{Name: "a"}); err == nil {
		t.Error("expected error for duplicate entity")
	}
}

func TestEntityResolve(t *testing.T) {
	_, book := testRegistry(t)
	for _, tc := range []struct {
		ref     string
		wantKey string
		assoc   bool
	}{
		{"title", "title", false},
		{"id", "id", false},
		{"author", "author_id", false},
		{"author__name", "author__name", true},
		{"author__id", "author__id", true},
	} {
		ref, err := book.Resolve(tc.ref)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tc.ref, err)
			continue
		}
		if ref.Key() != tc.wantKey || (ref.Assoc != nil) != tc.assoc {
			t.Errorf("Resolve(%q) = %q (assoc %v)", tc.ref, ref.Key(), ref.Assoc != nil)
		}
	}
	for _, bad := range []string{"isbn", "publisher__name", "author__age"} {
		if _, err := book.Resolve(bad); !errors.Is(err, ErrUnknownField) {
			t.Errorf("Resolve(%q) = %v, want ErrUnknownField", bad, err)
		}
	}
	if !book.Exposes("author") || book.Exposes("isbn") {
		t.Error("Exposes mismatch")
	}
}

func TestRecordToArray(t *testing.T) {
	r := Record{"id": int64(1), "title": "Dune", "author__name": "Herbert"}
	got := r.ToArray(Columns{{Name: "id"}, {Name: "title"}, {Name: "author__name"}, {Name: "missing"}})
	want := []any{int64(1), "Dune", "Herbert", nil}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToArray = %v, want %v", got, want)
	}
	if IDKey(float64(3)) != "3" || IDKey("x") != "x" || IDKey(int64(5)) != "5" {
		t.Error("IDKey mismatch")
	}
}

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/query"
	"github.com/alfredjeanlab/gridpanel/internal/store"
)

func entities(t *testing.T) (author, book *model.Entity) {
	t.Helper()
	author = &model.Entity{Name: "author", Table: "authors", Attributes: []model.Attribute{
		{Name: "name", Type: model.AttrString},
	}}
	book = &model.Entity{
		Name:  "book",
		Table: "books",
		Attributes: []model.Attribute{
			{Name: "title", Type: model.AttrString},
			{Name: "pages", Type: model.AttrInteger},
			{Name: "author_id", Type: model.AttrInteger},
			{Name: "position", Type: model.AttrInteger},
		},
		Associations:   []model.Association{{Name: "author", Entity: "author"}},
		PositionColumn: "position",
	}
	if _, err := model.NewRegistry(author, book); err != nil {
		t.Fatal(err)
	}
	return author, book
}

func seeded(t *testing.T) (*Store, *model.Entity) {
	t.Helper()
	author, book := entities(t)
	s := New()
	if err := s.Seed(author,
		model.Record{"id": int64(1), "name": "Frank Herbert"},
		model.Record{"id": int64(2), "name": "Ursula Le Guin"},
	); err != nil {
		t.Fatal(err)
	}
	if err := s.Seed(book,
		model.Record{"id": int64(1), "title": "Dune", "pages": int64(412), "author_id": int64(1), "position": int64(1)},
		model.Record{"id": int64(2), "title": "The Dispossessed", "pages": int64(387), "author_id": int64(2), "position": int64(2)},
		model.Record{"id": int64(3), "title": "Dune Messiah", "pages": int64(256), "author_id": int64(1), "position": int64(3)},
		model.Record{"id": int64(4), "title": "Lathe of Heaven", "pages": int64(184), "author_id": int64(2), "position": int64(4)},
	); err != nil {
		t.Fatal(err)
	}
	return s, book
}

func ids(records []model.Record) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r["id"]
	}
	return out
}

func TestSelectRecords_SubstringIsCaseInsensitive(t *testing.T) {
	s, book := seeded(t)
	ctx := context.Background()
	for _, tc := range []struct {
		pattern string
		want    []any
	}{
		{"%dune%", []any{int64(1), int64(3)}},
		{"%DUNE%", []any{int64(1), int64(3)}},
		{"%dis%", []any{int64(2)}},
		{"%xyz%", []any{}},
		{"%d_ne%", []any{int64(1), int64(3)}},
		{`%d\_ne%`, []any{}},
		{`%\%%`, []any{}},
	} {
		rel := query.From(book).Where(model.Condition{Field: "title", Op: model.OpMatches, Value: tc.pattern})
		got, total, err := s.SelectRecords(ctx, rel)
		if err != nil {
			t.Fatal(err)
		}
		if total != len(tc.want) || !reflect.DeepEqual(ids(got), tc.want) {
			t.Errorf("%s: got %v (total %d), want %v", tc.pattern, ids(got), total, tc.want)
		}
	}
}

func TestSelectRecords_OrderAndPage(t *testing.T) {
	s, book := seeded(t)
	rel := query.From(book).OrderBy(query.Order{Field: "pages", Desc: true}).Paginate(2, 2)
	got, total, err := s.SelectRecords(context.Background(), rel)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if want := []any{int64(3), int64(4)}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("page 2 = %v, want %v", ids(got), want)
	}
}

func TestSelectRecords_Association(t *testing.T) {
	s, book := seeded(t)
	rel := query.From(book).
		Including("author__name").
		Where(model.Condition{Assoc: "author", Field: "name", Op: model.OpStarts, Value: "ursula"}).
		OrderBy(query.Order{Field: "title"})
	got, _, err := s.SelectRecords(context.Background(), rel)
	if err != nil {
		t.Fatal(err)
	}
	if want := []any{int64(4), int64(2)}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
	if got[0]["author__name"] != "Ursula Le Guin" {
		t.Errorf("author__name = %v", got[0]["author__name"])
	}
}

func TestSelectRecords_RawUnsupported(t *testing.T) {
	s, book := seeded(t)
	_, _, err := s.SelectRecords(context.Background(), query.From(book).WhereRaw("pages > ?", 1))
	if !errors.Is(err, store.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestInsertUpdateDelete(t *testing.T) {
	s, book := seeded(t)
	ctx := context.Background()

	created, err := s.InsertRecord(ctx, book, model.Record{"title": "Children of Dune", "author__name": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if created["id"] != int64(5) {
		t.Errorf("new id = %v, want 5", created["id"])
	}

	updated, err := s.UpdateRecord(ctx, book, int64(5), model.Record{"pages": int64(444)})
	if err != nil {
		t.Fatal(err)
	}
	if updated["pages"] != int64(444) || updated["title"] != "Children of Dune" {
		t.Errorf("updated = %v", updated)
	}

	if _, err := s.UpdateRecord(ctx, book, int64(99), model.Record{}); err != sql.ErrNoRows {
		t.Errorf("update missing: %v", err)
	}

	n, err := s.DeleteRecords(ctx, book, []any{int64(1), float64(5), int64(77)})
	if err != nil || n != 2 {
		t.Fatalf("deleted %d, err %v", n, err)
	}
	if _, err := s.FindRecord(ctx, book, int64(1)); err != sql.ErrNoRows {
		t.Errorf("find deleted: %v", err)
	}
}

func positions(t *testing.T, s *Store, book *model.Entity) []any {
	t.Helper()
	got, _, err := s.SelectRecords(context.Background(), query.From(book))
	if err != nil {
		t.Fatal(err)
	}
	return ids(got)
}

func TestInsertAt(t *testing.T) {
	s, book := seeded(t)
	ctx := context.Background()

	if err := s.InsertAt(ctx, book, int64(4), 1); err != nil {
		t.Fatal(err)
	}
	if want := []any{int64(4), int64(1), int64(2), int64(3)}; !reflect.DeepEqual(positions(t, s, book), want) {
		t.Fatalf("after move up = %v, want %v", positions(t, s, book), want)
	}

	if err := s.InsertAt(ctx, book, int64(4), 3); err != nil {
		t.Fatal(err)
	}
	if want := []any{int64(1), int64(2), int64(4), int64(3)}; !reflect.DeepEqual(positions(t, s, book), want) {
		t.Fatalf("after move down = %v, want %v", positions(t, s, book), want)
	}

	author, _ := book.Association("author")
	if err := s.InsertAt(ctx, author.Target, int64(1), 1); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("unordered entity: %v", err)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	s, book := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if _, err := tx.DeleteRecords(ctx, book, []any{int64(1), int64(2)}); err != nil {
			return err
		}
		if err := tx.SetConfig(ctx, &model.Config{Key: "books:columns", Value: json.RawMessage(`[]`)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := positions(t, s, book); len(got) != 4 {
		t.Errorf("rows after rollback = %v", got)
	}
	if _, err := s.GetConfig(ctx, "books:columns"); err != sql.ErrNoRows {
		t.Errorf("config survived rollback: %v", err)
	}
}

func TestDistinctValues(t *testing.T) {
	s, book := seeded(t)
	ctx := context.Background()

	got, err := s.DistinctValues(ctx, query.From(book), "author__name", "")
	if err != nil {
		t.Fatal(err)
	}
	if want := []any{"Frank Herbert", "Ursula Le Guin"}; !reflect.DeepEqual(got, want) {
		t.Errorf("distinct = %v", got)
	}

	got, err = s.DistinctValues(ctx, query.From(book), "title", "du")
	if err != nil {
		t.Fatal(err)
	}
	if want := []any{"Dune", "Dune Messiah"}; !reflect.DeepEqual(got, want) {
		t.Errorf("prefixed distinct = %v", got)
	}
}

func TestConfigs(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, key := range []string{"books:columns", "books:settings", "authors:columns"} {
		if err := s.SetConfig(ctx, &model.Config{Key: key, Value: json.RawMessage(`{}`)}); err != nil {
			t.Fatal(err)
		}
	}
	first, _ := s.GetConfig(ctx, "books:columns")
	again := &model.Config{Key: "books:columns", Value: json.RawMessage(`[1]`)}
	if err := s.SetConfig(ctx, again); err != nil {
		t.Fatal(err)
	}
	if !again.CreatedAt.Equal(first.CreatedAt) {
		t.Error("upsert reset created_at")
	}

	list, _ := s.ListConfigs(ctx, "books")
	if len(list) != 2 || list[0].Key != "books:columns" || string(list[0].Value) != `[1]` {
		t.Errorf("ListConfigs = %v", list)
	}
	all, _ := s.ListAllConfigs(ctx)
	if len(all) != 3 || all[0].Key != "authors:columns" {
		t.Errorf("ListAllConfigs = %v", all)
	}
	if err := s.DeleteConfig(ctx, "nope"); err != sql.ErrNoRows {
		t.Errorf("DeleteConfig missing = %v", err)
	}
}

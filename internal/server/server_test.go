package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alfredjeanlab/gridpanel/internal/config"
	"github.com/alfredjeanlab/gridpanel/internal/events"
	"github.com/alfredjeanlab/gridpanel/internal/grid"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/session"
	"github.com/alfredjeanlab/gridpanel/internal/store"
	"github.com/alfredjeanlab/gridpanel/internal/store/memory"
	"google.golang.org/grpc/codes"
)

const testGrids = `
[entities.book]
table = "books"
position_column = "position"

  [[entities.book.attributes]]
  name = "title"
  type = "string"
  required = true

  [[entities.book.attributes]]
  name = "pages"
  type = "integer"

  [[entities.book.attributes]]
  name = "position"
  type = "integer"

[grids.books]
entity = "book"
title = "Books"

  [[grids.books.columns]]
  name = "id"
  hidden = true

  [[grids.books.columns]]
  name = "title"

  [[grids.books.columns]]
  name = "pages"

[grids.readonly_books]
entity = "book"
prohibit_delete = true
enable_edit_in_form = false
`

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// newTestServer returns a server over four seeded books, its publisher and
// its HTTP handler.
func newTestServer(t *testing.T) (*GridServer, *recordingPublisher, http.Handler) {
	t.Helper()
	defs, err := config.ParseDefinitions(testGrids)
	if err != nil {
		t.Fatal(err)
	}
	book, _ := defs.Registry.Get("book")
	ms := memory.New()
	if err := ms.Seed(book,
		model.Record{"id": int64(1), "title": "Dune", "pages": int64(412), "position": int64(1)},
		model.Record{"id": int64(2), "title": "Tehanu", "pages": int64(252), "position": int64(2)},
		model.Record{"id": int64(3), "title": "Hyperion", "pages": int64(482), "position": int64(3)},
		model.Record{"id": int64(4), "title": "Solaris", "pages": int64(204), "position": int64(4)},
	); err != nil {
		t.Fatal(err)
	}
	pub := &recordingPublisher{}
	srv := NewGridServer(defs, ms, session.NewMemoryStore(0), pub)
	return srv, pub, srv.NewHTTPHandler("")
}

func TestErrorStatus(t *testing.T) {
	for _, tc := range []struct {
		err  error
		http int
		code codes.Code
	}{
		{grid.InputError("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{fmt.Errorf("wrapped: %w", grid.InputError("bad")), http.StatusBadRequest, codes.InvalidArgument},
		{grid.ErrUnknownGrid, http.StatusNotFound, codes.NotFound},
		{grid.ErrUnknownEndpoint, http.StatusNotFound, codes.NotFound},
		{grid.ErrNotConfigured, http.StatusInternalServerError, codes.FailedPrecondition},
		{grid.ErrUnsupported, http.StatusInternalServerError, codes.FailedPrecondition},
		{store.ErrUnsupported, http.StatusInternalServerError, codes.FailedPrecondition},
		{errors.New("boom"), http.StatusInternalServerError, codes.Internal},
	} {
		gotHTTP, gotCode := errorStatus(tc.err)
		if gotHTTP != tc.http || gotCode != tc.code {
			t.Errorf("errorStatus(%v) = %d, %v; want %d, %v", tc.err, gotHTTP, gotCode, tc.http, tc.code)
		}
	}
}

func TestDataChanged_PublishesEvent(t *testing.T) {
	srv, pub, _ := newTestServer(t)
	ctx := context.Background()

	_, err := srv.Call(ctx, "books", "sess-1", grid.EndpointDeleteData, grid.Params{"records": "[4]"})
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != events.DataChangedTopic("books") {
		t.Fatalf("topics = %v", pub.topics)
	}
	ev := pub.events[0].(events.DataChanged)
	if ev.Grid != "books" || ev.Endpoint != grid.EndpointDeleteData || ev.Session != "sess-1" || ev.At.IsZero() {
		t.Errorf("event = %+v", ev)
	}
}

func TestColumnsChanged_PublishesEvent(t *testing.T) {
	srv, pub, _ := newTestServer(t)
	_, err := srv.Call(context.Background(), "books", "s", grid.EndpointHideColumn, grid.Params{"index": 1.0, "hidden": true})
	if err != nil {
		t.Fatal(err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != events.ColumnsChangedTopic("books") {
		t.Fatalf("topics = %v", pub.topics)
	}
}

func TestDataChanged_PublishFailureIgnored(t *testing.T) {
	srv, pub, _ := newTestServer(t)
	pub.err = errors.New("bus down")
	if _, err := srv.Call(context.Background(), "books", "s", grid.EndpointDeleteData, grid.Params{"records": "[4]"}); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
}

func TestDataChanged_RunsInlineHooks(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "hook.out")

	layer, _ := json.Marshal(map[string]any{
		"on_data_changed": []string{`echo "$GRIDPANEL_GRID $GRIDPANEL_ENDPOINT" > ` + out},
	})
	if err := srv.store.SetConfig(ctx, &model.Config{Key: model.ConfigKey("books", grid.SettingsName), Value: layer}); err != nil {
		t.Fatal(err)
	}
	cmds, err := srv.HookCommands(ctx, "books")
	if err != nil || len(cmds) != 1 {
		t.Fatalf("HookCommands = %v, %v", cmds, err)
	}

	if _, err := srv.Call(ctx, "books", "s", grid.EndpointDeleteData, grid.Params{"records": "[4]"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "books delete_data\n" {
		t.Errorf("hook output = %q", data)
	}

	srv.InlineHooks = false
	_ = os.Remove(out)
	if _, err := srv.Call(ctx, "books", "s", grid.EndpointDeleteData, grid.Params{"records": "[3]"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("hook ran with inline hooks disabled")
	}
}

func TestHookCommands_UnknownGrid(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if _, err := srv.HookCommands(context.Background(), "nope"); !errors.Is(err, grid.ErrUnknownGrid) {
		t.Errorf("expected ErrUnknownGrid, got %v", err)
	}
}

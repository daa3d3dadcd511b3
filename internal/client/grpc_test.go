package client

import (
	"context"
	"net"
	"testing"

	"github.com/alfredjeanlab/gridpanel/internal/config"
	"github.com/alfredjeanlab/gridpanel/internal/model"
	"github.com/alfredjeanlab/gridpanel/internal/server"
	"github.com/alfredjeanlab/gridpanel/internal/session"
	"github.com/alfredjeanlab/gridpanel/internal/store/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const testGrids = `
[entities.book]
table = "books"

  [[entities.book.attributes]]
  name = "title"
  type = "string"
  required = true

  [[entities.book.attributes]]
  name = "pages"
  type = "integer"

[grids.books]
entity = "book"
`

// newTestGRPCClient serves a grid server over an in-memory listener and
// returns a client connected to it.
func newTestGRPCClient(t *testing.T, serverToken, clientToken string) *GRPCClient {
	t.Helper()
	defs, err := config.ParseDefinitions(testGrids)
	if err != nil {
		t.Fatal(err)
	}
	book, _ := defs.Registry.Get("book")
	ms := memory.New()
	if err := ms.Seed(book,
		model.Record{"id": int64(1), "title": "Dune", "pages": int64(412)},
		model.Record{"id": int64(2), "title": "Tehanu", "pages": int64(252)},
	); err != nil {
		t.Fatal(err)
	}
	gs := server.NewGRPCServer(server.NewGridServer(defs, ms, session.NewMemoryStore(0), nil), serverToken)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", clientToken, "",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGRPCClient_GetData(t *testing.T) {
	c := newTestGRPCClient(t, "", "")
	ctx := context.Background()

	resp, err := GetData(ctx, c, "books", &DataRequest{Sort: "pages", Dir: "DESC", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0][1] != "Dune" || resp.Total != 2.0 {
		t.Fatalf("resp = %+v", resp)
	}
	if c.Session() == "" {
		t.Fatal("expected the server to assign a session")
	}

	replay, err := GetData(ctx, c, "books", &DataRequest{WithLastParams: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(replay.Data) != 1 || replay.Data[0][1] != "Dune" {
		t.Errorf("replay = %+v", replay)
	}
}

func TestGRPCClient_PostAndDelete(t *testing.T) {
	c := newTestGRPCClient(t, "", "")
	ctx := context.Background()

	post, err := PostData(ctx, c, "books", []map[string]any{{"title": "Ubik", "pages": 224}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(post.UpdateNewRecords) != 1 {
		t.Fatalf("new records = %v", post.UpdateNewRecords)
	}

	del, err := DeleteData(ctx, c, "books", []any{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if msgs := del.Feedback.Messages(model.SeverityNotice); len(msgs) != 1 || msgs[0] != "Deleted 2 record(s)" {
		t.Errorf("feedback = %v", del.Feedback.Entries())
	}
}

func TestGRPCClient_Errors(t *testing.T) {
	c := newTestGRPCClient(t, "", "")
	err := c.Call(context.Background(), "nope", "get_data", nil, nil)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	_, err = GetData(context.Background(), c, "books", &DataRequest{Filter: "{"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPCClient_Auth(t *testing.T) {
	anon := newTestGRPCClient(t, "secret", "")
	if st, err := anon.Health(context.Background()); err != nil || st != "ok" {
		t.Fatalf("Health = %q, %v", st, err)
	}
	if _, err := GetData(context.Background(), anon, "books", nil); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	authed := newTestGRPCClient(t, "secret", "secret")
	if _, err := GetData(context.Background(), authed, "books", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

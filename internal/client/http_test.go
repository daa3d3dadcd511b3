package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/alfredjeanlab/gridpanel/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method  string
	path    string
	query   string
	body    string
	auth    string
	session string

	// canned response
	statusCode   int
	responseBody string
	setSession   string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.auth = r.Header.Get("Authorization")
	h.session = r.Header.Get(SessionHeader)
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	if h.setSession != "" {
		w.Header().Set(SessionHeader, h.setSession)
	}
	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler, token string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, token, "")
}

func requestBody(t *testing.T, h *testHandler) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("request body %q: %v", h.body, err)
	}
	return body
}

func TestHTTPClient_GetData(t *testing.T) {
	h := &testHandler{
		responseBody: `{"data":[[1,"Dune",412]],"total":4}`,
		setSession:   "gs-1",
	}
	c := newTestClient(t, h, "secret")

	resp, err := GetData(context.Background(), c, "books", &DataRequest{Sort: "title", Dir: "ASC", Limit: 1, Start: 2})
	if err != nil {
		t.Fatal(err)
	}
	if h.method != http.MethodPost || h.path != "/v1/grids/books/get_data" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.auth != "Bearer secret" {
		t.Errorf("auth = %q", h.auth)
	}
	want := map[string]any{"sort": "title", "dir": "ASC", "limit": 1.0, "start": 2.0}
	if body := requestBody(t, h); !reflect.DeepEqual(body, want) {
		t.Errorf("body = %v, want %v", body, want)
	}
	if len(resp.Data) != 1 || resp.Data[0][1] != "Dune" || resp.Total != 4.0 {
		t.Errorf("resp = %+v", resp)
	}

	// The assigned session is sent from then on.
	if c.Session() != "gs-1" {
		t.Fatalf("session = %q", c.Session())
	}
	h.setSession = ""
	if _, err := GetData(context.Background(), c, "books", &DataRequest{WithLastParams: true}); err != nil {
		t.Fatal(err)
	}
	if h.session != "gs-1" {
		t.Errorf("sent session = %q", h.session)
	}
	if body := requestBody(t, h); !reflect.DeepEqual(body, map[string]any{"with_last_params": true}) {
		t.Errorf("replay body = %v", body)
	}
}

func TestHTTPClient_Endpoints(t *testing.T) {
	for _, tc := range []struct {
		name     string
		call     func(Caller) error
		path     string
		wantBody map[string]any
	}{
		{"PostData", func(c Caller) error {
			_, err := PostData(context.Background(), c, "books", []map[string]any{{"title": "Ubik"}}, nil)
			return err
		}, "/v1/grids/books/post_data", map[string]any{"created_records": []any{map[string]any{"title": "Ubik"}}}},
		{"DeleteData", func(c Caller) error {
			_, err := DeleteData(context.Background(), c, "books", []any{1, 2})
			return err
		}, "/v1/grids/books/delete_data", map[string]any{"records": []any{1.0, 2.0}}},
		{"ResizeColumn", func(c Caller) error {
			return ResizeColumn(context.Background(), c, "books", 1, 150)
		}, "/v1/grids/books/resize_column", map[string]any{"index": 1.0, "size": 150.0}},
		{"MoveColumn", func(c Caller) error {
			return MoveColumn(context.Background(), c, "books", 2, 0)
		}, "/v1/grids/books/move_column", map[string]any{"old_index": 2.0, "new_index": 0.0}},
		{"HideColumn", func(c Caller) error {
			return HideColumn(context.Background(), c, "books", 1, true)
		}, "/v1/grids/books/hide_column", map[string]any{"index": 1.0, "hidden": true}},
		{"ResetColumns", func(c Caller) error {
			return ResetColumns(context.Background(), c, "books")
		}, "/v1/grids/books/reset_columns", map[string]any{}},
		{"MoveRows", func(c Caller) error {
			return MoveRows(context.Background(), c, "books", []any{3}, 0)
		}, "/v1/grids/books/move_rows", map[string]any{"ids": []any{3.0}, "new_index": 0.0}},
		{"MultiEdit", func(c Caller) error {
			_, err := MultiEdit(context.Background(), c, "books", []any{1}, map[string]any{"pages": 10})
			return err
		}, "/v1/grids/books/multi_edit", map[string]any{"ids": []any{1.0}, "data": map[string]any{"pages": 10.0}}},
		{"AddFormSubmit", func(c Caller) error {
			_, err := FormSubmit(context.Background(), c, "books", nil, map[string]any{"title": "x"})
			return err
		}, "/v1/grids/books/add_form_submit", map[string]any{"data": map[string]any{"title": "x"}}},
		{"EditFormSubmit", func(c Caller) error {
			_, err := FormSubmit(context.Background(), c, "books", 7, map[string]any{"title": "x"})
			return err
		}, "/v1/grids/books/edit_form_submit", map[string]any{"id": 7.0, "data": map[string]any{"title": "x"}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{responseBody: `{}`}
			c := newTestClient(t, h, "")
			if err := tc.call(c); err != nil {
				t.Fatal(err)
			}
			if h.path != tc.path {
				t.Errorf("path = %q, want %q", h.path, tc.path)
			}
			if body := requestBody(t, h); !reflect.DeepEqual(body, tc.wantBody) {
				t.Errorf("body = %v, want %v", body, tc.wantBody)
			}
		})
	}
}

func TestHTTPClient_ComboboxOptions(t *testing.T) {
	h := &testHandler{responseBody: `{"data":[["fantasy"],["sf"]]}`}
	c := newTestClient(t, h, "")
	opts, err := ComboboxOptions(context.Background(), c, "books", "genre", "")
	if err != nil {
		t.Fatal(err)
	}
	if want := [][]any{{"fantasy"}, {"sf"}}; !reflect.DeepEqual(opts, want) {
		t.Errorf("options = %v", opts)
	}
}

func TestHTTPClient_PostDataResponse(t *testing.T) {
	h := &testHandler{responseBody: `{"update_new_records":{"5":[5,"Ubik"]},"update_mod_records":{},"feedback":[{"error":"Title can't be blank"}]}`}
	c := newTestClient(t, h, "")
	resp, err := PostData(context.Background(), c, "books", []map[string]any{{"title": "Ubik"}, {}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(resp.UpdateNewRecords["5"], []any{5.0, "Ubik"}) {
		t.Errorf("new records = %v", resp.UpdateNewRecords)
	}
	if msgs := resp.Feedback.Messages(model.SeverityError); len(msgs) != 1 {
		t.Errorf("feedback = %v", resp.Feedback.Entries())
	}
}

func TestHTTPClient_ListGrids(t *testing.T) {
	h := &testHandler{responseBody: `{"grids":[{"id":"books","entity":"book"}]}`}
	c := newTestClient(t, h, "")
	grids, err := c.ListGrids(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if want := []GridSummary{{ID: "books", Entity: "book"}}; !reflect.DeepEqual(grids, want) {
		t.Errorf("grids = %v", grids)
	}
}

func TestHTTPClient_Configs(t *testing.T) {
	h := &testHandler{responseBody: `{"key":"books:settings","value":{"rows_per_page":10}}`}
	c := newTestClient(t, h, "")
	ctx := context.Background()

	cfg, err := c.SetConfig(ctx, "books:settings", json.RawMessage(`{"rows_per_page":10}`))
	if err != nil {
		t.Fatal(err)
	}
	if h.method != http.MethodPut || h.path != "/v1/configs/books:settings" || cfg.Key != "books:settings" {
		t.Errorf("request = %s %s, cfg = %+v", h.method, h.path, cfg)
	}

	if _, err := c.GetConfig(ctx, "books:settings"); err != nil || h.method != http.MethodGet {
		t.Errorf("GetConfig: %s, %v", h.method, err)
	}

	h.responseBody = `{"configs":[{"key":"books:columns","value":[]}]}`
	cfgs, err := c.ListConfigs(ctx, "books")
	if err != nil || len(cfgs) != 1 || h.query != "namespace=books" {
		t.Errorf("ListConfigs = %v, %v (query %q)", cfgs, err, h.query)
	}
	if _, err := c.ListConfigs(ctx, ""); err != nil || h.query != "" {
		t.Errorf("ListConfigs all: %v (query %q)", err, h.query)
	}

	h.statusCode = http.StatusNoContent
	h.responseBody = ""
	if err := c.DeleteConfig(ctx, "books:columns"); err != nil || h.method != http.MethodDelete {
		t.Errorf("DeleteConfig: %s, %v", h.method, err)
	}
}

func TestHTTPClient_Health(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	c := newTestClient(t, h, "")
	status, err := c.Health(context.Background())
	if err != nil || status != "ok" || h.path != "/v1/health" {
		t.Errorf("Health = %q, %v (path %q)", status, err, h.path)
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	for _, tc := range []struct {
		name    string
		code    int
		body    string
		message string
	}{
		{"JSONError", http.StatusBadRequest, `{"error":"limit must be an integer"}`, "limit must be an integer"},
		{"PlainBody", http.StatusInternalServerError, `boom`, "boom"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{statusCode: tc.code, responseBody: tc.body}
			c := newTestClient(t, h, "")
			_, err := GetData(context.Background(), c, "books", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tc.code || apiErr.Message != tc.message {
				t.Errorf("apiErr = %+v", apiErr)
			}
		})
	}
}

package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// stubHandler is a no-op gRPC handler used in interceptor tests.
func stubHandler(_ context.Context, _ any) (any, error) {
	return "ok", nil
}

func TestAuthInterceptor(t *testing.T) {
	for _, tc := range []struct {
		name   string
		token  string
		method string
		md     metadata.MD
		code   codes.Code
	}{
		{"Disabled", "", MethodCall, nil, codes.OK},
		{"HealthExempt", "secret", MethodHealth, nil, codes.OK},
		{"MissingMetadata", "secret", MethodCall, nil, codes.Unauthenticated},
		{"MissingHeader", "secret", MethodCall, metadata.Pairs("other", "value"), codes.Unauthenticated},
		{"WrongToken", "secret", MethodCall, metadata.Pairs("authorization", "Bearer wrong"), codes.Unauthenticated},
		{"InvalidScheme", "secret", MethodCall, metadata.Pairs("authorization", "Basic secret"), codes.Unauthenticated},
		{"CorrectToken", "secret", MethodCall, metadata.Pairs("authorization", "Bearer secret"), codes.OK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tc.md)
			}
			resp, err := AuthInterceptor(tc.token)(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tc.method}, stubHandler)
			if got := status.Code(err); got != tc.code {
				t.Fatalf("expected %v, got %v (%v)", tc.code, got, err)
			}
			if tc.code == codes.OK && resp != "ok" {
				t.Fatalf("expected 'ok', got %v", resp)
			}
		})
	}
}

func TestLoggingInterceptor(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	req, _ := structpb.NewStruct(map[string]any{"grid": "books", "endpoint": "get_data"})
	resp, err := LoggingInterceptor(context.Background(), req, &grpc.UnaryServerInfo{FullMethod: MethodCall}, stubHandler)
	if err != nil || resp != "ok" {
		t.Fatalf("resp = %v, err = %v", resp, err)
	}
	for _, want := range []string{"rpc completed", "grid=books", "endpoint=get_data"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log %q missing %q", buf.String(), want)
		}
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	panicky := func(context.Context, any) (any, error) { panic("boom") }
	_, err := RecoveryInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: MethodCall}, panicky)
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, tc := range []struct {
		name   string
		token  string
		method string
		path   string
		auth   string
		code   int
	}{
		{"NoHeader", "secret", http.MethodGet, "/v1/grids", "", http.StatusUnauthorized},
		{"WrongToken", "secret", http.MethodGet, "/v1/grids", "Bearer wrong", http.StatusUnauthorized},
		{"InvalidScheme", "secret", http.MethodGet, "/v1/grids", "Basic secret", http.StatusUnauthorized},
		{"CorrectToken", "secret", http.MethodPost, "/v1/grids/books/get_data", "Bearer secret", http.StatusOK},
		{"HealthExempt", "secret", http.MethodGet, "/v1/health", "", http.StatusOK},
		{"Disabled", "", http.MethodGet, "/v1/grids", "", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			AuthMiddleware(tc.token, ok).ServeHTTP(rec, req)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d; body: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSessionMiddleware(t *testing.T) {
	var seen string
	h := SessionMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = sessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/grids", nil)
	req.Header.Set(SessionHeader, "gs-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "gs-abc" || rec.Header().Get(SessionHeader) != "gs-abc" {
		t.Errorf("session = %q, header = %q", seen, rec.Header().Get(SessionHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/grids", nil))
	if seen == "" || seen == "gs-abc" || rec.Header().Get(SessionHeader) != seen {
		t.Errorf("generated session = %q, header = %q", seen, rec.Header().Get(SessionHeader))
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := LoggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/grids", nil))
	if !strings.Contains(buf.String(), "status=418") || !strings.Contains(buf.String(), "path=/v1/grids") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestCheckBearer(t *testing.T) {
	for _, tc := range []struct {
		header string
		want   error
	}{
		{"Bearer secret", nil},
		{"", errNoAuthHeader},
		{"bearer secret", errAuthScheme},
		{"Bearer secre", errInvalidToken},
		{"Bearer secret ", errInvalidToken},
	} {
		if got := checkBearer(tc.header, "secret"); got != tc.want {
			t.Errorf("checkBearer(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

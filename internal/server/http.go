package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/idgen"
	"github.com/alfredjeanlab/gridpanel/internal/session"
)

// SessionHeader carries the grid session id. Requests without one get a
// fresh id, echoed back on the response.
const SessionHeader = "X-Grid-Session"

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *GridServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/grids", s.handleListGrids)
	mux.HandleFunc("GET /v1/grids/{grid}", s.handleGetGrid)
	mux.HandleFunc("POST /v1/grids/{grid}/{endpoint}", s.handleCall)
	mux.HandleFunc("PUT /v1/configs/{key...}", s.handleSetConfig)
	mux.HandleFunc("GET /v1/configs/{key...}", s.handleGetConfig)
	mux.HandleFunc("GET /v1/configs", s.handleListConfigs)
	mux.HandleFunc("DELETE /v1/configs/{key...}", s.handleDeleteConfig)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return LoggingMiddleware(s.logger, AuthMiddleware(authToken, SessionMiddleware(mux)))
}

// handleHealth handles GET /v1/health.
func (s *GridServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SessionMiddleware resolves the grid session of the request and stores it
// in the request context.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := r.Header.Get(SessionHeader)
		if sess == "" {
			id, err := idgen.Session()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to create session")
				return
			}
			sess = id
		} else if err := session.ValidateID(sess); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set(SessionHeader, sess)
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs the method, path, status and duration of every
// request.
func LoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Error("http request completed", attrs...)
		} else {
			logger.Info("http request completed", attrs...)
		}
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

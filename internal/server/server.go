// Package server exposes grid endpoints over HTTP and gRPC and fans out
// change notifications to the event bus and the configured shell hooks.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/config"
	"github.com/alfredjeanlab/gridpanel/internal/events"
	"github.com/alfredjeanlab/gridpanel/internal/grid"
	"github.com/alfredjeanlab/gridpanel/internal/hooks"
	"github.com/alfredjeanlab/gridpanel/internal/session"
	"github.com/alfredjeanlab/gridpanel/internal/store"
	"google.golang.org/grpc/codes"
)

// GridServer serves the grids of one definitions file.
type GridServer struct {
	registry  *grid.Registry
	store     store.Store
	publisher events.Publisher
	hooks     *hooks.Handler
	logger    *slog.Logger

	// InlineHooks runs on_data_changed hooks in the request that changed the
	// data. Disable it when a separate subscriber runs them off the bus.
	InlineHooks bool
}

// NewGridServer returns a server for every grid in defs. opts are applied
// to each grid after the server's own change callbacks.
func NewGridServer(defs *config.Definitions, s store.Store, sessions session.Store, p events.Publisher, opts ...grid.Option) *GridServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	srv := &GridServer{
		store:       s,
		publisher:   p,
		logger:      slog.Default(),
		InlineHooks: true,
	}
	srv.hooks = hooks.NewHandler(srv.HookCommands, srv.logger)
	opts = append([]grid.Option{
		grid.WithOnDataChanged(srv.dataChanged),
		grid.WithOnColumnsChanged(srv.columnsChanged),
	}, opts...)
	srv.registry = grid.FromDefinitions(defs, s, sessions, opts...)
	return srv
}

// Registry returns the grids the server dispatches to.
func (s *GridServer) Registry() *grid.Registry { return s.registry }

// Hooks returns the data-changed hook runner.
func (s *GridServer) Hooks() *hooks.Handler { return s.hooks }

// Call runs endpoint of grid id for session.
func (s *GridServer) Call(ctx context.Context, id, sess, endpoint string, p grid.Params) (any, error) {
	return s.registry.Call(withSession(ctx, sess), id, sess, endpoint, p)
}

// HookCommands returns the on_data_changed commands of grid id.
func (s *GridServer) HookCommands(ctx context.Context, id string) ([]string, error) {
	g, ok := s.registry.Get(id)
	if !ok {
		return nil, grid.ErrUnknownGrid
	}
	st, err := g.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return st.OnDataChanged, nil
}

func (s *GridServer) dataChanged(ctx context.Context, id, endpoint string) {
	ev := events.DataChanged{
		Grid:     id,
		Endpoint: endpoint,
		Session:  sessionFromContext(ctx),
		At:       time.Now().UTC(),
	}
	s.publish(ctx, events.DataChangedTopic(id), ev)
	if s.InlineHooks {
		resp := s.hooks.HandleDataChanged(ctx, ev)
		for _, f := range resp.Failures {
			s.logger.Warn("on_data_changed hook failed", "grid", id, "failure", f)
		}
	}
}

func (s *GridServer) columnsChanged(ctx context.Context, id, endpoint string) {
	s.publish(ctx, events.ColumnsChangedTopic(id), events.ColumnsChanged{
		Grid:     id,
		Endpoint: endpoint,
		Session:  sessionFromContext(ctx),
		At:       time.Now().UTC(),
	})
}

// publish is best-effort; failures are logged but do not fail the request.
func (s *GridServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

type sessionKey struct{}

func withSession(ctx context.Context, sess string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

func sessionFromContext(ctx context.Context) string {
	sess, _ := ctx.Value(sessionKey{}).(string)
	return sess
}

// errorStatus maps a grid or store error to its HTTP status and gRPC code.
// Input errors are the client's fault; unknown grids, endpoints and keys
// are not found; everything else is a server-side failure.
func errorStatus(err error) (int, codes.Code) {
	var ie grid.InputError
	switch {
	case errors.As(err, &ie):
		return http.StatusBadRequest, codes.InvalidArgument
	case errors.Is(err, grid.ErrUnknownGrid), errors.Is(err, grid.ErrUnknownEndpoint), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, codes.NotFound
	case errors.Is(err, grid.ErrNotConfigured), errors.Is(err, grid.ErrUnsupported), errors.Is(err, store.ErrUnsupported):
		return http.StatusInternalServerError, codes.FailedPrecondition
	default:
		return http.StatusInternalServerError, codes.Internal
	}
}

func grpcCode(err error) codes.Code {
	_, code := errorStatus(err)
	return code
}

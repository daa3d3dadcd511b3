package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/events"
)

// Source returns the on_data_changed commands configured for a grid.
type Source func(ctx context.Context, grid string) ([]string, error)

// Response aggregates the outcome of the hooks run for one event.
type Response struct {
	Ran      int      `json:"ran"`
	Failures []string `json:"failures,omitempty"`
}

// Handler runs data-changed hooks.
type Handler struct {
	source  Source
	logger  *slog.Logger
	Timeout time.Duration
	Dir     string
}

// NewHandler creates a handler that looks commands up through source.
func NewHandler(source Source, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{source: source, logger: logger}
}

// HandleDataChanged runs every command configured for the event's grid, in
// order. A failing command is reported and does not stop the others.
func (h *Handler) HandleDataChanged(ctx context.Context, ev events.DataChanged) Response {
	var resp Response
	if ev.Grid == "" {
		return resp
	}
	commands, err := h.source(ctx, ev.Grid)
	if err != nil {
		h.logger.Error("hooks: failed to load commands", "grid", ev.Grid, "err", err)
		return resp
	}

	for _, line := range commands {
		if line == "" {
			continue
		}
		result := Command{Line: line, Event: ev, Dir: h.Dir, Timeout: h.Timeout}.Run(ctx)
		resp.Ran++
		if result.Err != nil {
			resp.Failures = append(resp.Failures,
				fmt.Sprintf("%s: %v (output: %s)", line, result.Err, result.Output))
		}
		h.logger.Info("hooks: executed data changed hook",
			"grid", ev.Grid, "endpoint", ev.Endpoint, "ok", result.Err == nil, "took", result.Duration)
	}
	return resp
}

// StartSubscriber listens for data-changed events on the bus and runs the
// matching hooks. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("hooks: subscriber started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hooks: subscriber stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				h.logger.Info("hooks: subscription channel closed")
				return nil
			}
			if _, kind, ok := events.GridFromTopic(msg.Topic); !ok || kind != events.KindDataChanged {
				continue
			}

			var ev events.DataChanged
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				h.logger.Warn("hooks: bad event payload", "topic", msg.Topic, "err", err)
				continue
			}
			resp := h.HandleDataChanged(ctx, ev)
			for _, f := range resp.Failures {
				h.logger.Warn("hooks: " + f)
			}
		}
	}
}

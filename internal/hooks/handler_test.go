package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/gridpanel/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func staticSource(commands map[string][]string) Source {
	return func(_ context.Context, grid string) ([]string, error) {
		return commands[grid], nil
	}
}

func TestCommand_Run(t *testing.T) {
	books := events.DataChanged{Grid: "books", Endpoint: "post_data", Session: "s1"}
	for _, tc := range []struct {
		name    string
		line    string
		want    string
		wantErr bool
	}{
		{"stdout", "echo hello", "hello", false},
		{"stderr fallback", "echo oops >&2; exit 3", "oops", true},
		{"event env", `echo "$GRIDPANEL_GRID/$GRIDPANEL_ENDPOINT/$GRIDPANEL_SESSION"`, "books/post_data/s1", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res := Command{Line: tc.line, Event: books, Timeout: time.Second}.Run(context.Background())
			if (res.Err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", res.Err, tc.wantErr)
			}
			if res.Output != tc.want {
				t.Errorf("output = %q, want %q", res.Output, tc.want)
			}
		})
	}
}

func TestCommand_Timeout(t *testing.T) {
	res := Command{Line: "sleep 5", Timeout: 100 * time.Millisecond}.Run(context.Background())
	if res.Err == nil {
		t.Fatal("expected error from timed out command")
	}
	if res.Duration > 3*time.Second {
		t.Errorf("timeout not enforced, took %v", res.Duration)
	}
}

func TestCommand_TimeoutBounds(t *testing.T) {
	for in, want := range map[time.Duration]time.Duration{
		0:              DefaultTimeout,
		-time.Second:   DefaultTimeout,
		time.Second:    time.Second,
		10 * time.Hour: MaxTimeout,
	} {
		if got := (Command{Timeout: in}).timeout(); got != want {
			t.Errorf("timeout(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestHandleDataChanged(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	h := NewHandler(staticSource(map[string][]string{
		"books": {
			`echo "$GRIDPANEL_GRID $GRIDPANEL_ENDPOINT $GRIDPANEL_SESSION" >> ` + out,
			"exit 1",
			"",
			"echo again >> " + out,
		},
	}), testLogger())

	resp := h.HandleDataChanged(context.Background(), events.DataChanged{
		Grid:     "books",
		Endpoint: "post_data",
		Session:  "s1",
	})
	if resp.Ran != 3 {
		t.Errorf("ran = %d, want 3", resp.Ran)
	}
	if len(resp.Failures) != 1 || !strings.HasPrefix(resp.Failures[0], "exit 1:") {
		t.Errorf("failures = %v", resp.Failures)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "books post_data s1\nagain\n"; got != want {
		t.Errorf("hook output = %q, want %q", got, want)
	}
}

func TestHandleDataChanged_NoCommands(t *testing.T) {
	h := NewHandler(staticSource(nil), testLogger())
	if resp := h.HandleDataChanged(context.Background(), events.DataChanged{Grid: "books"}); resp.Ran != 0 {
		t.Errorf("ran = %d, want 0", resp.Ran)
	}
}

func TestHandleDataChanged_SourceError(t *testing.T) {
	h := NewHandler(func(context.Context, string) ([]string, error) {
		return nil, errors.New("boom")
	}, testLogger())
	resp := h.HandleDataChanged(context.Background(), events.DataChanged{Grid: "books"})
	if resp.Ran != 0 || len(resp.Failures) != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

type chanSubscriber struct {
	ch    chan events.Message
	topic string
}

func (s *chanSubscriber) Subscribe(topic string) (<-chan events.Message, func(), error) {
	s.topic = topic
	return s.ch, func() {}, nil
}

func (s *chanSubscriber) Close() error { return nil }

func TestStartSubscriber(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	h := NewHandler(staticSource(map[string][]string{
		"books": {`echo "$GRIDPANEL_ENDPOINT" >> ` + out},
	}), testLogger())

	sub := &chanSubscriber{ch: make(chan events.Message, 4)}
	payload := func(ev any) []byte {
		b, _ := json.Marshal(ev)
		return b
	}
	sub.ch <- events.Message{Topic: events.ColumnsChangedTopic("books"), Data: payload(events.ColumnsChanged{Grid: "books", Endpoint: "move_column"})}
	sub.ch <- events.Message{Topic: events.DataChangedTopic("books"), Data: []byte("{bad")}
	sub.ch <- events.Message{Topic: events.DataChangedTopic("books"), Data: payload(events.DataChanged{Grid: "books", Endpoint: "delete_data"})}
	close(sub.ch)

	if err := h.StartSubscriber(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	if sub.topic != events.TopicAll {
		t.Errorf("subscribed to %q", sub.topic)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "delete_data\n" {
		t.Errorf("hook output = %q", got)
	}
}

func TestStartSubscriber_StopsOnCancel(t *testing.T) {
	h := NewHandler(staticSource(nil), testLogger())
	sub := &chanSubscriber{ch: make(chan events.Message)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.StartSubscriber(ctx, sub) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

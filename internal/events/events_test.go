package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestTopics(t *testing.T) {
	for _, tc := range []struct {
		topic    string
		wantGrid string
		wantKind string
		wantOK   bool
	}{
		{DataChangedTopic("books"), "books", KindDataChanged, true},
		{ColumnsChangedTopic("admin.books"), "admin.books", KindColumnsChanged, true},
		{"grids.books", "", "", false},
		{"other.books.data_changed", "", "", false},
	} {
		grid, kind, ok := GridFromTopic(tc.topic)
		if grid != tc.wantGrid || kind != tc.wantKind || ok != tc.wantOK {
			t.Errorf("GridFromTopic(%q) = %q, %q, %v", tc.topic, grid, kind, ok)
		}
	}
	if got := DataChangedTopic("books"); got != "grids.books.data_changed" {
		t.Errorf("DataChangedTopic = %q", got)
	}
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = &NoopPublisher{}
	if err := pub.Publish(context.Background(), DataChangedTopic("books"), DataChanged{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, DataChangedTopic("books"), DataChanged{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish after cancel = %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(DataChangedTopic("books"), ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := DataChanged{Grid: "books", Endpoint: "delete_data", At: time.Now().UTC()}
	if err := pub.Publish(context.Background(), DataChangedTopic("books"), event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got DataChanged
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Grid != "books" || got.Endpoint != "delete_data" {
			t.Errorf("got %+v", got)
		}
		if msg.Header.Get(HeaderGrid) != "books" || msg.Header.Get(HeaderKind) != KindDataChanged {
			t.Errorf("headers = %v", msg.Header)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_CanceledContext(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pub.Publish(ctx, DataChangedTopic("books"), DataChanged{}); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestNATSPublisher_RejectsForeignTopic(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	for _, topic := range []string{"orders.created", "grids", "grids.books"} {
		if err := pub.Publish(context.Background(), topic, DataChanged{}); !errors.Is(err, ErrTopic) {
			t.Errorf("Publish(%q) = %v, want ErrTopic", topic, err)
		}
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := pub.Publish(context.Background(), DataChangedTopic("books"), DataChanged{}); err == nil {
		t.Error("expected error publishing after close")
	}
}

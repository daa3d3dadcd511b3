// Package events publishes grid change notifications to NATS so that other
// server replicas and watching clients can refresh.
package events

import (
	"context"
	"strings"
	"time"
)

// Topic layout: grids.<grid>.<kind>.
const (
	TopicRoot = "grids"
	TopicAll  = TopicRoot + ".>"

	KindDataChanged    = "data_changed"
	KindColumnsChanged = "columns_changed"
)

// Topic returns the subject for events of kind on grid.
func Topic(grid, kind string) string {
	return TopicRoot + "." + grid + "." + kind
}

// DataChangedTopic is the subject for row mutations of grid.
func DataChangedTopic(grid string) string { return Topic(grid, KindDataChanged) }

// ColumnsChangedTopic is the subject for column layout changes of grid.
func ColumnsChangedTopic(grid string) string { return Topic(grid, KindColumnsChanged) }

// GridFromTopic extracts the grid name from a subject built by Topic.
func GridFromTopic(topic string) (grid, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicRoot+".")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ".")
	if i <= 0 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// DataChanged is emitted after an endpoint changed rows of a grid.
type DataChanged struct {
	Grid     string    `json:"grid"`
	Endpoint string    `json:"endpoint"`
	Session  string    `json:"session,omitempty"`
	At       time.Time `json:"at"`
}

// ColumnsChanged is emitted after a column resize, move or hide.
type ColumnsChanged struct {
	Grid     string    `json:"grid"`
	Endpoint string    `json:"endpoint"`
	Session  string    `json:"session,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

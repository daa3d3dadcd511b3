package events

import "context"

// NoopPublisher drops grid events. Servers run with it when no NATS url is
// configured; on_data_changed hooks then only run inline.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

// Publish reports only a done context.
func (*NoopPublisher) Publish(ctx context.Context, _ string, _ any) error { return ctx.Err() }

func (*NoopPublisher) Close() error { return nil }

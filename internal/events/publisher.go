package events

import "context"

//go:generate mockgen -source=publisher.go -destination=mocks/publisher_mock.go -package=mocks

// Publisher is the capability abstraction for delivering committed events.
// Implementations must treat delivery as best-effort from the caller's point
// of view: an error is logged by the queue and the event is dropped, never
// retried here.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards every event. Used in tests and environments where
// downstream notification is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Package events buffers domain events raised during a transaction and
// delivers them through a pluggable publisher only after the transaction has
// committed. A queue lives and dies with exactly one transaction; events are
// never persisted.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/metrics"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
)

// Event is one post-commit notification. The wire shape is Envelope.
type Event struct {
	Name          string
	TenantID      id.TenantID
	EntityID      id.EntityID
	EntityType    string
	Payload       json.RawMessage
	CorrelationID string
}

// Envelope is the JSON shape delivered to subscribers. Consumers must
// tolerate at-least-once delivery and deduplicate on their side.
type Envelope struct {
	EventName     string          `json:"event_name"`
	TenantID      string          `json:"tenant_id"`
	EntityID      string          `json:"entity_id"`
	EntityType    string          `json:"entity_type"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// MarshalEnvelope renders the event's wire form.
func (e Event) MarshalEnvelope() ([]byte, error) {
	return json.Marshal(Envelope{
		EventName:     e.Name,
		TenantID:      e.TenantID.String(),
		EntityID:      e.EntityID.String(),
		EntityType:    e.EntityType,
		Payload:       e.Payload,
		CorrelationID: e.CorrelationID,
	})
}

// Queue is the per-transaction ordered event buffer. The owning transaction
// must either flush it with PublishAll after a successful commit or discard
// it; events from a rolled-back transaction must never reach a publisher.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends an event in insertion order.
func (q *Queue) Enqueue(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Clear discards all buffered events without publishing.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = nil
}

// PublishAll delivers buffered events in insertion order and drains the
// queue. Call it only after the owning transaction has committed. Per-event
// publish failures are logged and swallowed: the business change is already
// durable and must not be undone by a notification failure. Returns the
// number of successfully published events.
func (q *Queue) PublishAll(ctx context.Context, publisher Publisher, logger *slog.Logger, m *metrics.Metrics) int {
	q.mu.Lock()
	drained := q.events
	q.events = nil
	q.mu.Unlock()

	published := 0
	for _, event := range drained {
		if err := publisher.Publish(ctx, event); err != nil {
			m.IncEventPublishFailures()
			logger.ErrorContext(ctx, "event publish failed, dropping event",
				"event_name", event.Name,
				"entity_id", event.EntityID.String(),
				"correlation_id", event.CorrelationID,
				"error", err,
			)
			continue
		}
		m.IncEventsPublished()
		published++
	}
	return published
}

type queueKey struct{}

// WithQueue attaches a transaction's event queue to its context so stores and
// services deep in the call tree can enqueue without extra plumbing.
func WithQueue(ctx context.Context, q *Queue) context.Context {
	return context.WithValue(ctx, queueKey{}, q)
}

// QueueFrom extracts the transaction's event queue, if any.
func QueueFrom(ctx context.Context) (*Queue, bool) {
	q, ok := ctx.Value(queueKey{}).(*Queue)
	return q, ok
}

// Package metrics registers the Prometheus metrics for the write core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the billing core. Construct it
// once in main; components accept a nil *Metrics and skip recording, which
// keeps unit tests free of registry collisions.
type Metrics struct {
	MutationsApplied     prometheus.Counter
	VersionConflicts     prometheus.Counter
	IdempotentReplays    prometheus.Counter
	IdempotencyConflicts prometheus.Counter
	EventsPublished      prometheus.Counter
	EventPublishFailures prometheus.Counter
	DenialsParsed        prometheus.Counter
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		MutationsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fusionems_entity_mutations_applied_total",
			Help: "Successful versioned entity mutations.",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fusionems_entity_version_conflicts_total",
			Help: "Mutations rejected because the expected version was stale.",
		}),
		IdempotentReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fusionems_idempotent_replays_total",
			Help: "Requests answered from a stored idempotency receipt.",
		}),
		IdempotencyConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fusionems_idempotency_key_reuse_total",
			Help: "Idempotency keys reused with a different request payload.",
		}),
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fusionems_events_published_total",
			Help: "Post-commit events handed to the publisher.",
		}),
		EventPublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fusionems_event_publish_failures_total",
			Help: "Post-commit events the publisher failed to deliver.",
		}),
		DenialsParsed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fusionems_era_denials_parsed_total",
			Help: "Denial records extracted from ingested 835 remittances.",
		}),
	}
}

// IncMutationsApplied records one successful versioned mutation.
func (m *Metrics) IncMutationsApplied() {
	if m != nil {
		m.MutationsApplied.Inc()
	}
}

// IncVersionConflicts records one optimistic-concurrency rejection.
func (m *Metrics) IncVersionConflicts() {
	if m != nil {
		m.VersionConflicts.Inc()
	}
}

// IncIdempotentReplays records one request served from a receipt.
func (m *Metrics) IncIdempotentReplays() {
	if m != nil {
		m.IdempotentReplays.Inc()
	}
}

// IncIdempotencyConflicts records one key reused with a different payload.
func (m *Metrics) IncIdempotencyConflicts() {
	if m != nil {
		m.IdempotencyConflicts.Inc()
	}
}

// IncEventsPublished records one delivered post-commit event.
func (m *Metrics) IncEventsPublished() {
	if m != nil {
		m.EventsPublished.Inc()
	}
}

// IncEventPublishFailures records one dropped post-commit event.
func (m *Metrics) IncEventPublishFailures() {
	if m != nil {
		m.EventPublishFailures.Inc()
	}
}

// AddDenialsParsed records denial records extracted from one remittance.
func (m *Metrics) AddDenialsParsed(n int) {
	if m != nil && n > 0 {
		m.DenialsParsed.Add(float64(n))
	}
}

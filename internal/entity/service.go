package entity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/audit"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/events"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/metrics"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	dErrors "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain-errors"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/sentinel"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/requestcontext"
)

// Service orchestrates versioned mutations. Every write goes through here:
// load under tenant scope, check the expected version, run the mutation
// callback, persist via the storage-layer compare-and-swap, record the audit
// entry and enqueue the post-commit event. All of it rides the transaction
// carried in ctx; the caller owns the transaction and the event queue.
type Service struct {
	store   Store
	audit   *audit.Recorder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, auditRecorder *audit.Recorder, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, audit: auditRecorder, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mutation describes one versioned write.
type Mutation struct {
	TenantID        id.TenantID
	EntityID        id.EntityID
	ExpectedVersion int64
	// Action names the mutation in the audit trail. Defaults to "update";
	// soft deletes are detected and recorded as such regardless.
	Action string
	// EventName, when set, enqueues a post-commit event carrying the
	// entity's new payload.
	EventName string
	// Mutate edits the loaded entity in place. Returning an error aborts
	// the mutation with nothing written.
	Mutate func(e *Entity) error
}

// Create inserts a new entity at version 1, audits it and enqueues the
// creation event.
func (s *Service) Create(ctx context.Context, tenantID id.TenantID, entityType string, payload json.RawMessage, eventName string) (*Entity, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if entityType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity type is required")
	}

	now := requestcontext.Now(ctx)
	e := &Entity{
		Meta: Meta{
			ID:        id.NewEntityID(),
			TenantID:  tenantID,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Type:    entityType,
		Payload: payload,
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert entity")
	}

	changes := audit.DiffFields(nil, e.Payload)
	if _, err := s.audit.LogMutation(ctx, tenantID, requestcontext.ActorID(ctx),
		audit.ActionCreate, e.Type, e.ID, changes, requestcontext.CorrelationID(ctx)); err != nil {
		return nil, err
	}

	s.enqueue(ctx, eventName, e)
	s.metrics.IncMutationsApplied()
	return e, nil
}

// ApplyMutation performs one optimistic-concurrency write. A stale expected
// version fails with a concurrency conflict and leaves the stored entity
// untouched; an entity outside the caller's tenant scope is reported as
// absent, never as belonging to someone else.
func (s *Service) ApplyMutation(ctx context.Context, m Mutation) (*Entity, error) {
	if err := validateMutation(m); err != nil {
		return nil, err
	}

	loaded, err := s.store.Find(ctx, m.TenantID, m.EntityID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if loaded.Version != m.ExpectedVersion {
		s.metrics.IncVersionConflicts()
		return nil, concurrencyConflict(loaded.Version, m.ExpectedVersion)
	}

	before := append(json.RawMessage(nil), loaded.Payload...)
	wasDeleted := loaded.Deleted()

	working := loaded.clone()
	if err := m.Mutate(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.UpdateVersioned(ctx, working, m.ExpectedVersion); err != nil {
		if errors.Is(err, sentinel.ErrVersionConflict) {
			s.metrics.IncVersionConflicts()
			return nil, concurrencyConflict(0, m.ExpectedVersion)
		}
		return nil, translateStoreErr(err)
	}

	action := m.Action
	if action == "" {
		action = audit.ActionUpdate
	}
	changes := audit.DiffFields(before, working.Payload)
	if working.Deleted() && !wasDeleted {
		action = audit.ActionSoftDelete
		changes["deleted_at"] = audit.FieldChange{From: nil, To: working.DeletedAt}
	}
	if _, err := s.audit.LogMutation(ctx, m.TenantID, requestcontext.ActorID(ctx),
		action, working.Type, working.ID, changes, requestcontext.CorrelationID(ctx)); err != nil {
		return nil, err
	}

	s.enqueue(ctx, m.EventName, working)
	s.metrics.IncMutationsApplied()
	return working, nil
}

// SoftDelete marks the entity deleted. It is a mutation like any other: it
// requires the current version, bumps it, and is audited.
func (s *Service) SoftDelete(ctx context.Context, tenantID id.TenantID, entityID id.EntityID, expectedVersion int64, eventName string) (*Entity, error) {
	return s.ApplyMutation(ctx, Mutation{
		TenantID:        tenantID,
		EntityID:        entityID,
		ExpectedVersion: expectedVersion,
		EventName:       eventName,
		Mutate: func(e *Entity) error {
			now := requestcontext.Now(ctx)
			e.DeletedAt = &now
			return nil
		},
	})
}

// Get loads one live entity under the tenant scope.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, entityID id.EntityID) (*Entity, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	e, err := s.store.Find(ctx, tenantID, entityID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return e, nil
}

// List returns the tenant's live entities of the given type, oldest first.
func (s *Service) List(ctx context.Context, tenantID id.TenantID, entityType string, limit int) ([]*Entity, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	list, err := s.store.List(ctx, tenantID, entityType, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list entities")
	}
	return list, nil
}

func (s *Service) enqueue(ctx context.Context, eventName string, e *Entity) {
	if eventName == "" {
		return
	}
	queue, ok := events.QueueFrom(ctx)
	if !ok {
		// No queue means the caller opted out of post-commit notification;
		// the mutation itself is unaffected.
		s.logger.DebugContext(ctx, "no event queue in context, skipping event",
			"event_name", eventName, "entity_id", e.ID.String())
		return
	}
	queue.Enqueue(events.Event{
		Name:          eventName,
		TenantID:      e.TenantID,
		EntityID:      e.ID,
		EntityType:    e.Type,
		Payload:       append(json.RawMessage(nil), e.Payload...),
		CorrelationID: requestcontext.CorrelationID(ctx),
	})
}

func validateMutation(m Mutation) error {
	if m.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if m.EntityID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "entity id is required")
	}
	if m.ExpectedVersion < 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "expected version must be at least 1")
	}
	if m.Mutate == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "mutation callback is required")
	}
	return nil
}

func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "entity not found")
	case errors.Is(err, sentinel.ErrVersionConflict):
		return dErrors.New(dErrors.CodeConcurrencyConflict, "entity was modified concurrently, re-fetch and retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "entity store failure")
	}
}

func concurrencyConflict(stored, expected int64) error {
	if stored > 0 {
		return dErrors.Newf(dErrors.CodeConcurrencyConflict,
			"expected version %d but entity is at version %d, re-fetch and retry", expected, stored)
	}
	return dErrors.New(dErrors.CodeConcurrencyConflict, "entity was modified concurrently, re-fetch and retry")
}

// Package entity implements the tenant-scoped versioned entity store every
// domain mutation funnels through. Optimistic concurrency via the version
// counter is the only coordination between concurrent writers; the store
// never takes in-process locks on behalf of callers.
package entity

import (
	"encoding/json"
	"time"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
)

// Meta is the auditable-record value embedded in every stored entity:
// identity, tenant scope, optimistic-concurrency version and lifecycle
// timestamps. Behavior (soft-delete filtering, version bumping) lives in the
// store, not here.
type Meta struct {
	ID        id.EntityID
	TenantID  id.TenantID
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the entity carries a soft-delete marker.
func (m Meta) Deleted() bool { return m.DeletedAt != nil }

// Entity is one versioned domain record. The payload is an opaque JSON
// document owned by the feature that stores it (billing claims, denial
// artifacts); this package only guarantees its transactional handling.
type Entity struct {
	Meta
	Type    string
	Payload json.RawMessage
}

// clone returns a deep copy so mutation callbacks work on scratch state that
// only persists if the whole operation succeeds.
func (e *Entity) clone() *Entity {
	copied := *e
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		copied.DeletedAt = &t
	}
	if e.Payload != nil {
		copied.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	return &copied
}

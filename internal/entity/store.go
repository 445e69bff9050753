package entity

import (
	"context"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
)

// Store persists versioned entities. Every method is implicitly scoped to
// the given tenant and to live rows (deleted_at IS NULL); a row owned by a
// different tenant is indistinguishable from an absent one.
//
// UpdateVersioned is the compare-and-swap that enforces optimistic
// concurrency: it persists the entity's new state only if the stored version
// still equals expectedVersion, returning sentinel.ErrVersionConflict when a
// concurrent writer got there first and sentinel.ErrNotFound when no live
// row matches the tenant scope. On success the stored version is
// expectedVersion+1, exactly.
type Store interface {
	Insert(ctx context.Context, e *Entity) error
	Find(ctx context.Context, tenantID id.TenantID, entityID id.EntityID) (*Entity, error)
	List(ctx context.Context, tenantID id.TenantID, entityType string, limit int) ([]*Entity, error)
	UpdateVersioned(ctx context.Context, e *Entity, expectedVersion int64) error
}

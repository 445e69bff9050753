// Package domain defines the strongly typed identifiers shared across the
// billing core. Wrapping uuid.UUID in distinct types keeps tenant, actor and
// entity identifiers from being swapped at call sites.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain-errors"
)

// TenantID identifies one isolated customer partition. Every entity, audit
// entry and idempotency receipt belongs to exactly one tenant.
type TenantID uuid.UUID

// UserID identifies an actor (a human user or service account) performing a
// mutation. It is recorded on audit entries, never trusted from raw input.
type UserID uuid.UUID

// EntityID identifies a single versioned entity within a tenant.
type EntityID uuid.UUID

func (t TenantID) String() string { return uuid.UUID(t).String() }
func (t TenantID) IsNil() bool    { return uuid.UUID(t) == uuid.Nil }

func (u UserID) String() string { return uuid.UUID(u).String() }
func (u UserID) IsNil() bool    { return uuid.UUID(u) == uuid.Nil }

func (e EntityID) String() string { return uuid.UUID(e).String() }
func (e EntityID) IsNil() bool    { return uuid.UUID(e) == uuid.Nil }

// NewTenantID returns a fresh random tenant identifier.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewUserID returns a fresh random user identifier.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewEntityID returns a fresh random entity identifier.
func NewEntityID() EntityID { return EntityID(uuid.New()) }

// ParseTenantID validates and parses a tenant identifier. The identifier must
// be a well-formed, non-nil UUID; anything else is rejected at the trust
// boundary before it can reach a store query.
func ParseTenantID(raw string) (TenantID, error) {
	u, err := parseUUID(raw, "tenant id")
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}

// ParseUserID validates and parses an actor identifier.
func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw, "user id")
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseEntityID validates and parses an entity identifier.
func ParseEntityID(raw string) (EntityID, error) {
	u, err := parseUUID(raw, "entity id")
	if err != nil {
		return EntityID{}, err
	}
	return EntityID(u), nil
}

func parseUUID(raw, what string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, what+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}

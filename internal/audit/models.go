// Package audit records an immutable trail of every mutation the write core
// applies. Entries commit atomically with the business change they describe;
// there is no update or delete surface, by contract.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
)

// FieldChange captures one field's before/after values in a structured diff.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// FieldChanges maps field names to their change records.
type FieldChanges map[string]FieldChange

// Entry is one immutable audit record. ActorUserID is nil for
// system-initiated mutations (ingest jobs have no human actor).
type Entry struct {
	ID            uuid.UUID
	TenantID      id.TenantID
	ActorUserID   *id.UserID
	Action        string
	EntityName    string
	EntityID      id.EntityID
	FieldChanges  FieldChanges
	CorrelationID string
	CreatedAt     time.Time
}

// Actions recorded against versioned entities.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionSoftDelete = "soft_delete"
)

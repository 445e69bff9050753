package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
)

// Receipt records that a client-identified request has been processed.
// Unique per (tenant, key, route); created at most once, read on every retry.
type Receipt struct {
	ID           uuid.UUID
	TenantID     id.TenantID
	Key          string
	RouteKey     string
	RequestHash  string
	ResponseJSON json.RawMessage
	CreatedAt    time.Time
}

// Store persists receipts. Insert must enforce uniqueness on
// (tenant_id, idempotency_key, route_key) and return sentinel.ErrDuplicateKey
// when violated; Find returns sentinel.ErrNotFound for unseen keys.
type Store interface {
	Find(ctx context.Context, tenantID id.TenantID, key, routeKey string) (*Receipt, error)
	Insert(ctx context.Context, receipt *Receipt) error
}

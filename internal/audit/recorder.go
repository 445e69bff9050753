package audit

import (
	"context"

	"github.com/google/uuid"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	dErrors "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain-errors"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/requestcontext"
)

// Store persists audit entries. Append joins the caller's transaction when
// one is in context; ListForTenant returns entries newest-first.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListForTenant(ctx context.Context, tenantID id.TenantID, limit int) ([]*Entry, error)
}

// Recorder is the write-once audit trail. A failed append propagates and
// aborts the enclosing transaction; the audit write is never best-effort.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// LogMutation appends one immutable entry describing a mutation. The entry
// commits atomically with the mutation because both ride the transaction
// carried in ctx.
func (r *Recorder) LogMutation(
	ctx context.Context,
	tenantID id.TenantID,
	actorUserID *id.UserID,
	action, entityName string,
	entityID id.EntityID,
	fieldChanges FieldChanges,
	correlationID string,
) (*Entry, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit entry requires a tenant")
	}
	if action == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audit entry requires an action")
	}

	entry := &Entry{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ActorUserID:   actorUserID,
		Action:        action,
		EntityName:    entityName,
		EntityID:      entityID,
		FieldChanges:  fieldChanges,
		CorrelationID: correlationID,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := r.store.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
	}
	return entry, nil
}

// ListForTenant returns the tenant's audit history, newest first. Soft-deleted
// entities keep their full history here; the trail outlives the rows it
// describes.
func (r *Recorder) ListForTenant(ctx context.Context, tenantID id.TenantID, limit int) ([]*Entry, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	entries, err := r.store.ListForTenant(ctx, tenantID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit entries")
	}
	return entries, nil
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

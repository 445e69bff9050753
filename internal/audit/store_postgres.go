package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	txcontext "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/tx"
)

// PostgresStore persists audit entries in the audit_log table. The table has
// no UPDATE or DELETE path anywhere in this codebase; immutability is an
// application-level contract backed by the narrow API here.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// execer returns the transaction from context when present so the audit
// write commits atomically with the mutation it describes.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	changes, err := json.Marshal(entry.FieldChanges)
	if err != nil {
		return fmt.Errorf("marshal field changes: %w", err)
	}

	var actorID any
	if entry.ActorUserID != nil {
		actorID = uuid.UUID(*entry.ActorUserID)
	}
	var correlationID any
	if entry.CorrelationID != "" {
		correlationID = entry.CorrelationID
	}

	query := `
		INSERT INTO audit_log (id, tenant_id, actor_user_id, action, entity_name, entity_id, field_changes, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		entry.ID,
		uuid.UUID(entry.TenantID),
		actorID,
		entry.Action,
		entry.EntityName,
		uuid.UUID(entry.EntityID),
		changes,
		correlationID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListForTenant(ctx context.Context, tenantID id.TenantID, limit int) ([]*Entry, error) {
	query := `
		SELECT id, tenant_id, actor_user_id, action, entity_name, entity_id, field_changes, correlation_id, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry         Entry
			tenant        uuid.UUID
			actor         sql.Null[uuid.UUID]
			entity        uuid.UUID
			changes       []byte
			correlationID sql.NullString
		)
		if err := rows.Scan(
			&entry.ID, &tenant, &actor, &entry.Action, &entry.EntityName,
			&entity, &changes, &correlationID, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.TenantID = id.TenantID(tenant)
		entry.EntityID = id.EntityID(entity)
		if actor.Valid {
			actorID := id.UserID(actor.V)
			entry.ActorUserID = &actorID
		}
		if correlationID.Valid {
			entry.CorrelationID = correlationID.String
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &entry.FieldChanges); err != nil {
				return nil, fmt.Errorf("unmarshal field changes: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/sentinel"
	txcontext "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists versioned entities in the entities table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, e *Entity) error {
	query := `
		INSERT INTO entities (id, tenant_id, entity_type, payload, version, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID),
		uuid.UUID(e.TenantID),
		e.Type,
		[]byte(e.Payload),
		e.Version,
		e.CreatedAt,
		e.UpdatedAt,
		e.DeletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrDuplicateKey
		}
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, tenantID id.TenantID, entityID id.EntityID) (*Entity, error) {
	query := `
		SELECT id, tenant_id, entity_type, payload, version, created_at, updated_at, deleted_at
		FROM entities
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(entityID), uuid.UUID(tenantID))
	e, err := scanEntity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, entityType string, limit int) ([]*Entity, error) {
	query := `
		SELECT id, tenant_id, entity_type, payload, version, created_at, updated_at, deleted_at
		FROM entities
		WHERE tenant_id = $1 AND ($2 = '' OR entity_type = $2) AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT $3
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(tenantID), entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		e, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// UpdateVersioned is the conditional update that enforces optimistic
// concurrency at the storage layer. The WHERE clause is the compare-and-swap;
// when it matches nothing, a follow-up probe classifies the miss as a stale
// version or an absent row without ever revealing rows outside the tenant
// scope.
func (s *PostgresStore) UpdateVersioned(ctx context.Context, e *Entity, expectedVersion int64) error {
	query := `
		UPDATE entities
		SET payload = $1, version = version + 1, updated_at = $2, deleted_at = $3
		WHERE id = $4 AND tenant_id = $5 AND version = $6 AND deleted_at IS NULL
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		[]byte(e.Payload),
		e.UpdatedAt,
		e.DeletedAt,
		uuid.UUID(e.ID),
		uuid.UUID(e.TenantID),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entity rows affected: %w", err)
	}
	if affected == 1 {
		e.Version = expectedVersion + 1
		return nil
	}

	var liveVersion int64
	probe := `SELECT version FROM entities WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`
	err = s.execer(ctx).QueryRowContext(ctx, probe, uuid.UUID(e.ID), uuid.UUID(e.TenantID)).Scan(&liveVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("probe entity version: %w", err)
	}
	return sentinel.ErrVersionConflict
}

func scanEntity(scan func(dest ...any) error) (*Entity, error) {
	var (
		e         Entity
		entityID  uuid.UUID
		tenantID  uuid.UUID
		payload   []byte
		deletedAt sql.NullTime
	)
	if err := scan(&entityID, &tenantID, &e.Type, &payload, &e.Version, &e.CreatedAt, &e.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	e.ID = id.EntityID(entityID)
	e.TenantID = id.TenantID(tenantID)
	e.Payload = payload
	if deletedAt.Valid {
		t := deletedAt.Time
		e.DeletedAt = &t
	}
	return &e, nil
}

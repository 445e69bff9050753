package idempotency

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

// uniqueViolation is the PostgreSQL error code raised when the
// (tenant_id, idempotency_key, route_key) unique constraint rejects a row.
const uniqueViolation = "23505"

// PostgresStore persists receipts in the idempotency_receipts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Find(ctx context.Context, tenantID id.TenantID, key, routeKey string) (*Receipt, error) {
	query := `
		SELECT id, tenant_id, idempotency_key, route_key, request_hash, response_json, created_at
		FROM idempotency_receipts
		WHERE tenant_id = $1 AND idempotency_key = $2 AND route_key = $3
	`
	var (
		receipt Receipt
		tenant  uuid.UUID
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(tenantID), key, routeKey).Scan(
		&receipt.ID, &tenant, &receipt.Key, &receipt.RouteKey,
		&receipt.RequestHash, &receipt.ResponseJSON, &receipt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find idempotency receipt: %w", err)
	}
	receipt.TenantID = id.TenantID(tenant)
	return &receipt, nil
}

// Insert persists a receipt. The unique constraint on
// (tenant_id, idempotency_key, route_key) is what makes check-then-act safe
// under concurrent retries; a violation surfaces as sentinel.ErrDuplicateKey.
func (s *PostgresStore) Insert(ctx context.Context, receipt *Receipt) error {
	query := `
		INSERT INTO idempotency_receipts (id, tenant_id, idempotency_key, route_key, request_hash, response_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		receipt.ID,
		uuid.UUID(receipt.TenantID),
		receipt.Key,
		receipt.RouteKey,
		receipt.RequestHash,
		[]byte(receipt.ResponseJSON),
		receipt.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrDuplicateKey
		}
		return fmt.Errorf("insert idempotency receipt: %w", err)
	}
	return nil
}

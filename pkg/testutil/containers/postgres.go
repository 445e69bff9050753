//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors the production DDL for the write-core tables.
const schema = `
CREATE TABLE IF NOT EXISTS entities (
    id          UUID PRIMARY KEY,
    tenant_id   UUID        NOT NULL,
    entity_type TEXT        NOT NULL,
    payload     JSONB       NOT NULL,
    version     BIGINT      NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    deleted_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_entities_tenant_type
    ON entities (tenant_id, entity_type) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS audit_log (
    id             UUID PRIMARY KEY,
    tenant_id      UUID        NOT NULL,
    actor_user_id  UUID,
    action         TEXT        NOT NULL,
    entity_name    TEXT        NOT NULL,
    entity_id      UUID        NOT NULL,
    field_changes  JSONB       NOT NULL,
    correlation_id TEXT,
    created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_tenant_created
    ON audit_log (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS idempotency_receipts (
    id              UUID PRIMARY KEY,
    tenant_id       UUID        NOT NULL,
    idempotency_key TEXT        NOT NULL,
    route_key       TEXT        NOT NULL,
    request_hash    TEXT        NOT NULL,
    response_json   JSONB       NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL,
    CONSTRAINT idempotency_receipts_scope_key
        UNIQUE (tenant_id, idempotency_key, route_key)
);
`

// PostgresContainer wraps a testcontainers Postgres instance with an open
// connection pool and the application schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t testingT) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fusionems_test"),
		tcpostgres.WithUsername("fusionems"),
		tcpostgres.WithPassword("fusionems"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the given tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", "))
	_, err := p.DB.ExecContext(ctx, query)
	return err
}

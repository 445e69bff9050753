// Package postgres opens and health-checks the shared database handle.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "postgres" driver used by every durable store.
	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL, configures the pool and verifies the
// connection with a bounded ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

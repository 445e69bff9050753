//go:build integration

package idempotency_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/idempotency"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/sentinel"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *idempotency.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = idempotency.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "idempotency_receipts")
	s.Require().NoError(err)
}

func newStoredReceipt(tenantID id.TenantID, key string) *idempotency.Receipt {
	return &idempotency.Receipt{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Key:          key,
		RouteKey:     "POST /v1/claims",
		RequestHash:  "hash-" + key,
		ResponseJSON: json.RawMessage(`{"id":"abc","version":1}`),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	receipt := newStoredReceipt(tenantID, "key-1")

	s.Require().NoError(s.store.Insert(ctx, receipt))

	found, err := s.store.Find(ctx, tenantID, "key-1", receipt.RouteKey)
	s.Require().NoError(err)
	s.Equal(receipt.ID, found.ID)
	s.Equal(receipt.RequestHash, found.RequestHash)
	s.JSONEq(string(receipt.ResponseJSON), string(found.ResponseJSON))
}

func (s *PostgresStoreSuite) TestFindUnseenKey() {
	ctx := context.Background()

	_, err := s.store.Find(ctx, id.NewTenantID(), "never-used", "POST /v1/claims")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindScopedToTenantAndRoute() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	receipt := newStoredReceipt(tenantID, "key-1")
	s.Require().NoError(s.store.Insert(ctx, receipt))

	_, err := s.store.Find(ctx, id.NewTenantID(), "key-1", receipt.RouteKey)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Find(ctx, tenantID, "key-1", "POST /v1/remittances")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestInsertDuplicateScope() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	s.Require().NoError(s.store.Insert(ctx, newStoredReceipt(tenantID, "key-1")))
	err := s.store.Insert(ctx, newStoredReceipt(tenantID, "key-1"))
	s.Require().ErrorIs(err, sentinel.ErrDuplicateKey)

	// Same key under another tenant is a fresh scope.
	s.Require().NoError(s.store.Insert(ctx, newStoredReceipt(id.NewTenantID(), "key-1")))
}

// TestConcurrentInsertSingleWinner verifies the constraint collapses racing
// retries into exactly one stored receipt.
func (s *PostgresStoreSuite) TestConcurrentInsertSingleWinner() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	const goroutines = 30

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var duplicateCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Insert(ctx, newStoredReceipt(tenantID, "racy-key"))
			switch {
			case err == nil:
				successCount.Add(1)
			case err == sentinel.ErrDuplicateKey:
				duplicateCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), duplicateCount.Load())

	_, err := s.store.Find(ctx, tenantID, "racy-key", "POST /v1/claims")
	s.Require().NoError(err)
}

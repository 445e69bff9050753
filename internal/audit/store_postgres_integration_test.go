//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/audit"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
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
	s.store = audit.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "audit_log")
	s.Require().NoError(err)
}

func newStoredEntry(tenantID id.TenantID, createdAt time.Time) *audit.Entry {
	return &audit.Entry{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Action:     audit.ActionUpdate,
		EntityName: "claim",
		EntityID:   id.NewEntityID(),
		FieldChanges: audit.FieldChanges{
			"status": {From: "submitted", To: "denied"},
		},
		CorrelationID: "corr-" + uuid.NewString(),
		CreatedAt:     createdAt,
	}
}

func (s *PostgresStoreSuite) TestAppendAndList() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	actorID := id.NewUserID()

	entry := newStoredEntry(tenantID, time.Now().UTC().Truncate(time.Microsecond))
	entry.ActorUserID = &actorID
	s.Require().NoError(s.store.Append(ctx, entry))

	entries, err := s.store.ListForTenant(ctx, tenantID, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)

	got := entries[0]
	s.Equal(entry.ID, got.ID)
	s.Equal(entry.Action, got.Action)
	s.Equal(entry.EntityName, got.EntityName)
	s.Equal(entry.EntityID, got.EntityID)
	s.Equal(entry.CorrelationID, got.CorrelationID)
	s.Require().NotNil(got.ActorUserID)
	s.Equal(actorID, *got.ActorUserID)
	s.Equal("submitted", got.FieldChanges["status"].From)
	s.Equal("denied", got.FieldChanges["status"].To)
}

func (s *PostgresStoreSuite) TestAppendWithoutActor() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	entry := newStoredEntry(tenantID, time.Now().UTC())
	s.Require().NoError(s.store.Append(ctx, entry))

	entries, err := s.store.ListForTenant(ctx, tenantID, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Nil(entries[0].ActorUserID)
}

func (s *PostgresStoreSuite) TestListNewestFirst() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		entry := newStoredEntry(tenantID, base.Add(time.Duration(i)*time.Second))
		entry.CorrelationID = []string{"first", "second", "third"}[i]
		s.Require().NoError(s.store.Append(ctx, entry))
	}

	entries, err := s.store.ListForTenant(ctx, tenantID, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal("third", entries[0].CorrelationID)
	s.Equal("first", entries[2].CorrelationID)
}

func (s *PostgresStoreSuite) TestListScopedToTenant() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	s.Require().NoError(s.store.Append(ctx, newStoredEntry(tenantID, time.Now().UTC())))
	s.Require().NoError(s.store.Append(ctx, newStoredEntry(id.NewTenantID(), time.Now().UTC())))

	entries, err := s.store.ListForTenant(ctx, tenantID, 10)
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *PostgresStoreSuite) TestListHonorsLimit() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Append(ctx, newStoredEntry(tenantID, base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := s.store.ListForTenant(ctx, tenantID, 2)
	s.Require().NoError(err)
	s.Len(entries, 2)
}

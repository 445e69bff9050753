package entity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/sentinel"
)

type EntityStoreSuite struct {
	suite.Suite
	store    *InMemoryStore
	ctx      context.Context
	tenantID id.TenantID
}

func TestEntityStoreSuite(t *testing.T) {
	suite.Run(t, new(EntityStoreSuite))
}

func (s *EntityStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.tenantID = id.NewTenantID()
}

func (s *EntityStoreSuite) newEntity(payload string) *Entity {
	now := time.Now().UTC()
	return &Entity{
		Meta: Meta{
			ID:        id.NewEntityID(),
			TenantID:  s.tenantID,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Type:    "claim",
		Payload: json.RawMessage(payload),
	}
}

func (s *EntityStoreSuite) TestInsertAndFind() {
	e := s.newEntity(`{"status":"submitted"}`)
	s.Require().NoError(s.store.Insert(s.ctx, e))

	found, err := s.store.Find(s.ctx, s.tenantID, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, found.ID)
	s.Equal(int64(1), found.Version)
	s.JSONEq(`{"status":"submitted"}`, string(found.Payload))
}

func (s *EntityStoreSuite) TestFindScopesByTenant() {
	e := s.newEntity(`{"status":"submitted"}`)
	s.Require().NoError(s.store.Insert(s.ctx, e))

	// A row owned by another tenant reads as absent, not as foreign.
	_, err := s.store.Find(s.ctx, id.NewTenantID(), e.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *EntityStoreSuite) TestUpdateVersionedBumpsExactlyOnce() {
	e := s.newEntity(`{"status":"submitted"}`)
	s.Require().NoError(s.store.Insert(s.ctx, e))

	e.Payload = json.RawMessage(`{"status":"billed"}`)
	s.Require().NoError(s.store.UpdateVersioned(s.ctx, e, 1))
	s.Equal(int64(2), e.Version)

	found, err := s.store.Find(s.ctx, s.tenantID, e.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), found.Version)
	s.JSONEq(`{"status":"billed"}`, string(found.Payload))
}

func (s *EntityStoreSuite) TestUpdateVersionedRejectsStaleVersion() {
	e := s.newEntity(`{"status":"submitted"}`)
	s.Require().NoError(s.store.Insert(s.ctx, e))
	e.Payload = json.RawMessage(`{"status":"billed"}`)
	s.Require().NoError(s.store.UpdateVersioned(s.ctx, e, 1))

	stale := e.clone()
	stale.Payload = json.RawMessage(`{"status":"void"}`)
	err := s.store.UpdateVersioned(s.ctx, stale, 1)
	s.Require().ErrorIs(err, sentinel.ErrVersionConflict)

	// The stored entity is unchanged by the losing write.
	found, err := s.store.Find(s.ctx, s.tenantID, e.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), found.Version)
	s.JSONEq(`{"status":"billed"}`, string(found.Payload))
}

func (s *EntityStoreSuite) TestUpdateVersionedMissesReadAsNotFound() {
	s.Run("unknown entity", func() {
		e := s.newEntity(`{}`)
		s.Require().ErrorIs(s.store.UpdateVersioned(s.ctx, e, 1), sentinel.ErrNotFound)
	})

	s.Run("wrong tenant", func() {
		e := s.newEntity(`{}`)
		s.Require().NoError(s.store.Insert(s.ctx, e))
		foreign := e.clone()
		foreign.TenantID = id.NewTenantID()
		s.Require().ErrorIs(s.store.UpdateVersioned(s.ctx, foreign, 1), sentinel.ErrNotFound)
	})

	s.Run("soft-deleted entity", func() {
		e := s.newEntity(`{}`)
		s.Require().NoError(s.store.Insert(s.ctx, e))
		now := time.Now().UTC()
		e.DeletedAt = &now
		s.Require().NoError(s.store.UpdateVersioned(s.ctx, e, 1))

		again := e.clone()
		s.Require().ErrorIs(s.store.UpdateVersioned(s.ctx, again, 2), sentinel.ErrNotFound)
	})
}

func (s *EntityStoreSuite) TestListFiltersDeletedAndForeignRows() {
	live := s.newEntity(`{"n":1}`)
	s.Require().NoError(s.store.Insert(s.ctx, live))

	deleted := s.newEntity(`{"n":2}`)
	deleted.CreatedAt = live.CreatedAt.Add(time.Second)
	s.Require().NoError(s.store.Insert(s.ctx, deleted))
	now := time.Now().UTC()
	deleted.DeletedAt = &now
	s.Require().NoError(s.store.UpdateVersioned(s.ctx, deleted, 1))

	foreign := s.newEntity(`{"n":3}`)
	foreign.TenantID = id.NewTenantID()
	s.Require().NoError(s.store.Insert(s.ctx, foreign))

	listed, err := s.store.List(s.ctx, s.tenantID, "claim", 10)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(live.ID, listed[0].ID)
}

func (s *EntityStoreSuite) TestStoredStateIsIsolatedFromCallers() {
	e := s.newEntity(`{"status":"submitted"}`)
	s.Require().NoError(s.store.Insert(s.ctx, e))

	// Mutating the inserted value must not reach the store.
	e.Payload[2] = 'X'

	found, err := s.store.Find(s.ctx, s.tenantID, e.ID)
	s.Require().NoError(err)
	s.JSONEq(`{"status":"submitted"}`, string(found.Payload))
}

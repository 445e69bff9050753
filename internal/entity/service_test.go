package entity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/audit"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/events"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	dErrors "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain-errors"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	service    *Service
	store      *InMemoryStore
	auditStore *audit.InMemoryStore
	ctx        context.Context
	tenantID   id.TenantID
	actorID    id.UserID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	s.service = NewService(s.store, audit.NewRecorder(s.auditStore), slog.New(slog.DiscardHandler))
	s.tenantID = id.NewTenantID()
	s.actorID = id.NewUserID()
	ctx := requestcontext.WithTenantID(context.Background(), s.tenantID)
	ctx = requestcontext.WithActorID(ctx, s.actorID)
	s.ctx = requestcontext.WithCorrelationID(ctx, "corr-42")
}

func (s *ServiceSuite) create(payload string) *Entity {
	e, err := s.service.Create(s.ctx, s.tenantID, "claim", json.RawMessage(payload), "")
	s.Require().NoError(err)
	return e
}

func (s *ServiceSuite) setStatus(status string) func(*Entity) error {
	return func(e *Entity) error {
		e.Payload = json.RawMessage(`{"status":"` + status + `"}`)
		return nil
	}
}

func (s *ServiceSuite) TestVersionIsOnePlusMutationCount() {
	e := s.create(`{"status":"s0"}`)
	s.Equal(int64(1), e.Version)

	const mutations = 5
	for i := 0; i < mutations; i++ {
		var err error
		e, err = s.service.ApplyMutation(s.ctx, Mutation{
			TenantID:        s.tenantID,
			EntityID:        e.ID,
			ExpectedVersion: e.Version,
			Mutate:          s.setStatus("billed"),
		})
		s.Require().NoError(err)
	}
	s.Equal(int64(1+mutations), e.Version)
}

func (s *ServiceSuite) TestStaleVersionFailsAndLeavesEntityUnchanged() {
	e := s.create(`{"status":"submitted"}`)
	_, err := s.service.ApplyMutation(s.ctx, Mutation{
		TenantID: s.tenantID, EntityID: e.ID, ExpectedVersion: 1,
		Mutate: s.setStatus("billed"),
	})
	s.Require().NoError(err)

	_, err = s.service.ApplyMutation(s.ctx, Mutation{
		TenantID: s.tenantID, EntityID: e.ID, ExpectedVersion: 1,
		Mutate: s.setStatus("void"),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConcurrencyConflict))

	current, err := s.service.Get(s.ctx, s.tenantID, e.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), current.Version)
	s.JSONEq(`{"status":"billed"}`, string(current.Payload))
}

func (s *ServiceSuite) TestCrossTenantAccessReadsAsNotFound() {
	e := s.create(`{"status":"submitted"}`)

	otherTenant := id.NewTenantID()
	_, err := s.service.Get(s.ctx, otherTenant, e.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.ApplyMutation(s.ctx, Mutation{
		TenantID: otherTenant, EntityID: e.ID, ExpectedVersion: 1,
		Mutate: s.setStatus("billed"),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound),
		"wrong tenant must be indistinguishable from absence")
}

func (s *ServiceSuite) TestMutateErrorAbortsWithNothingWritten() {
	e := s.create(`{"status":"submitted"}`)
	boom := errors.New("domain rule violated")

	_, err := s.service.ApplyMutation(s.ctx, Mutation{
		TenantID: s.tenantID, EntityID: e.ID, ExpectedVersion: 1,
		Mutate: func(*Entity) error { return boom },
	})
	s.Require().ErrorIs(err, boom)

	current, err := s.service.Get(s.ctx, s.tenantID, e.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), current.Version)
	s.JSONEq(`{"status":"submitted"}`, string(current.Payload))
}

func (s *ServiceSuite) TestEveryMutationIsAudited() {
	e := s.create(`{"status":"submitted"}`)
	_, err := s.service.ApplyMutation(s.ctx, Mutation{
		TenantID: s.tenantID, EntityID: e.ID, ExpectedVersion: 1,
		Mutate: s.setStatus("denied"),
	})
	s.Require().NoError(err)

	entries, err := s.auditStore.ListForTenant(s.ctx, s.tenantID, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	update := entries[0]
	s.Equal(audit.ActionUpdate, update.Action)
	s.Equal(e.ID, update.EntityID)
	s.Equal("corr-42", update.CorrelationID)
	s.Require().NotNil(update.ActorUserID)
	s.Equal(s.actorID, *update.ActorUserID)
	s.Equal(audit.FieldChange{From: "submitted", To: "denied"}, update.FieldChanges["status"])

	s.Equal(audit.ActionCreate, entries[1].Action)
}

func (s *ServiceSuite) TestSoftDelete() {
	e := s.create(`{"status":"submitted"}`)

	deleted, err := s.service.SoftDelete(s.ctx, s.tenantID, e.ID, 1, "")
	s.Require().NoError(err)
	s.Equal(int64(2), deleted.Version, "soft delete bumps the version like any mutation")
	s.True(deleted.Deleted())

	s.Run("excluded from reads and listings", func() {
		_, err := s.service.Get(s.ctx, s.tenantID, e.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		listed, err := s.service.List(s.ctx, s.tenantID, "claim", 10)
		s.Require().NoError(err)
		s.Empty(listed)
	})

	s.Run("audit history remains retrievable", func() {
		entries, err := s.auditStore.ListForTenant(s.ctx, s.tenantID, 10)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(audit.ActionSoftDelete, entries[0].Action)
		s.Contains(entries[0].FieldChanges, "deleted_at")
	})
}

func (s *ServiceSuite) TestEventsEnqueueToTransactionQueue() {
	queue := events.NewQueue()
	ctx := events.WithQueue(s.ctx, queue)

	e, err := s.service.Create(ctx, s.tenantID, "claim", json.RawMessage(`{"status":"submitted"}`), "claim.created")
	s.Require().NoError(err)
	_, err = s.service.ApplyMutation(ctx, Mutation{
		TenantID: s.tenantID, EntityID: e.ID, ExpectedVersion: 1,
		EventName: "claim.updated",
		Mutate:    s.setStatus("billed"),
	})
	s.Require().NoError(err)

	s.Equal(2, queue.Len())
}

func (s *ServiceSuite) TestNoQueueMeansNoEventButMutationSucceeds() {
	e, err := s.service.Create(s.ctx, s.tenantID, "claim", json.RawMessage(`{}`), "claim.created")
	s.Require().NoError(err)
	s.NotNil(e)
}

func (s *ServiceSuite) TestValidation() {
	s.Run("expected version below one", func() {
		_, err := s.service.ApplyMutation(s.ctx, Mutation{
			TenantID: s.tenantID, EntityID: id.NewEntityID(), ExpectedVersion: 0,
			Mutate: s.setStatus("x"),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing mutation callback", func() {
		_, err := s.service.ApplyMutation(s.ctx, Mutation{
			TenantID: s.tenantID, EntityID: id.NewEntityID(), ExpectedVersion: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

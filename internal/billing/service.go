package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/edi"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/entity"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/events"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/idempotency"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/metrics"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	dErrors "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain-errors"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/sentinel"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/tx"
)

// Service orchestrates claim operations end to end.
type Service struct {
	entities  *entity.Service
	guard     *idempotency.Guard
	runner    tx.Runner
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	entities *entity.Service,
	guard *idempotency.Guard,
	runner tx.Runner,
	publisher events.Publisher,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		entities:  entities,
		guard:     guard,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withTx runs fn in one transaction that owns a fresh event queue. On commit
// the queue flushes through the publisher; on any error the queue (and with
// it every event raised inside the failed transaction) is discarded.
func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	queue := events.NewQueue()
	err := s.runner.RunInTx(events.WithQueue(ctx, queue), func(txCtx context.Context) error {
		return fn(txCtx)
	})
	if err != nil {
		queue.Clear()
		return err
	}
	queue.PublishAll(ctx, s.publisher, s.logger, s.metrics)
	return nil
}

// CreateClaim creates a claim at version 1. When idempotencyKey is set the
// creation is receipt-guarded: a retry with the same key and payload replays
// the original response without creating a second claim, and a lost
// first-writer race is converted into a replay of the winner's response.
func (s *Service) CreateClaim(ctx context.Context, tenantID id.TenantID, req CreateClaimRequest, idempotencyKey string) (*ClaimResponse, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	createFn := func(txCtx context.Context) (json.RawMessage, error) {
		payload, err := marshalPayload(Claim{
			ClaimNumber: req.ClaimNumber,
			PatientRef:  req.PatientRef,
			Payer:       req.Payer,
			Amount:      req.Amount,
			Status:      StatusSubmitted,
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode claim")
		}
		created, err := s.entities.Create(txCtx, tenantID, EntityTypeClaim, payload, EventClaimCreated)
		if err != nil {
			return nil, err
		}
		resp, err := toResponse(created)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}

	var raw json.RawMessage
	var replayed bool

	if idempotencyKey == "" {
		err := s.withTx(ctx, func(txCtx context.Context) error {
			var err error
			raw, err = createFn(txCtx)
			return err
		})
		if err != nil {
			return nil, false, err
		}
	} else {
		err := s.withTx(ctx, func(txCtx context.Context) error {
			var err error
			raw, replayed, err = s.guard.Execute(txCtx, tenantID, idempotencyKey, RouteCreateClaim, req, createFn)
			return err
		})
		if errors.Is(err, sentinel.ErrDuplicateKey) {
			// Another retry won the insert race; its transaction committed
			// the receipt. Read it back outside our rolled-back transaction.
			raw, replayed, err = s.guard.Replay(ctx, tenantID, idempotencyKey, RouteCreateClaim, req)
			if err != nil {
				return nil, false, err
			}
		} else if err != nil {
			return nil, false, err
		}
	}

	var resp ClaimResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decode stored claim response")
	}
	return &resp, replayed, nil
}

// GetClaim loads one live claim under the tenant scope.
func (s *Service) GetClaim(ctx context.Context, tenantID id.TenantID, claimID id.EntityID) (*ClaimResponse, error) {
	e, err := s.entities.Get(ctx, tenantID, claimID)
	if err != nil {
		return nil, err
	}
	return toResponse(e)
}

// ListClaims returns the tenant's live claims.
func (s *Service) ListClaims(ctx context.Context, tenantID id.TenantID, limit int) ([]*ClaimResponse, error) {
	list, err := s.entities.List(ctx, tenantID, EntityTypeClaim, limit)
	if err != nil {
		return nil, err
	}
	responses := make([]*ClaimResponse, 0, len(list))
	for _, e := range list {
		resp, err := toResponse(e)
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// UpdateClaim applies a version-guarded partial update.
func (s *Service) UpdateClaim(ctx context.Context, tenantID id.TenantID, claimID id.EntityID, req UpdateClaimRequest) (*ClaimResponse, error) {
	var updated *entity.Entity
	err := s.withTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.entities.ApplyMutation(txCtx, entity.Mutation{
			TenantID:        tenantID,
			EntityID:        claimID,
			ExpectedVersion: req.ExpectedVersion,
			EventName:       EventClaimUpdated,
			Mutate: func(e *entity.Entity) error {
				claim, err := unmarshalPayload(e.Payload)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "stored claim payload is unreadable")
				}
				if req.PatientRef != nil {
					claim.PatientRef = *req.PatientRef
				}
				if req.Payer != nil {
					claim.Payer = *req.Payer
				}
				if req.Amount != nil {
					if *req.Amount < 0 {
						return dErrors.New(dErrors.CodeBadRequest, "amount must not be negative")
					}
					claim.Amount = *req.Amount
				}
				if req.Status != nil {
					claim.Status = *req.Status
				}
				e.Payload, err = marshalPayload(claim)
				return err
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return toResponse(updated)
}

// DeleteClaim soft-deletes a claim. The row survives for audit history but
// disappears from tenant-scoped reads and listings.
func (s *Service) DeleteClaim(ctx context.Context, tenantID id.TenantID, claimID id.EntityID, expectedVersion int64) error {
	return s.withTx(ctx, func(txCtx context.Context) error {
		_, err := s.entities.SoftDelete(txCtx, tenantID, claimID, expectedVersion, EventClaimDeleted)
		return err
	})
}

// IngestRemittance parses an 835 remittance and applies each extracted
// denial to the matching claim in one transaction. Denials referencing
// unknown claim numbers are reported, not fatal: payers routinely remit
// against claims another system submitted.
func (s *Service) IngestRemittance(ctx context.Context, tenantID id.TenantID, ediText string) (*RemittanceSummary, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}

	denials := edi.Parse835(ediText)
	s.metrics.AddDenialsParsed(len(denials))
	summary := &RemittanceSummary{DenialsParsed: len(denials)}
	if len(denials) == 0 {
		return summary, nil
	}

	err := s.withTx(ctx, func(txCtx context.Context) error {
		claims, err := s.entities.List(txCtx, tenantID, EntityTypeClaim, 1000)
		if err != nil {
			return err
		}
		byNumber := make(map[string]*entity.Entity, len(claims))
		for _, e := range claims {
			claim, err := unmarshalPayload(e.Payload)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "stored claim payload is unreadable")
			}
			byNumber[claim.ClaimNumber] = e
		}

		unmatched := make(map[string]bool)
		for _, denial := range denials {
			target, ok := byNumber[denial.ClaimID]
			if !ok {
				unmatched[denial.ClaimID] = true
				continue
			}

			d := denial
			updated, err := s.entities.ApplyMutation(txCtx, entity.Mutation{
				TenantID:        tenantID,
				EntityID:        target.ID,
				ExpectedVersion: target.Version,
				Action:          "apply_denial",
				EventName:       EventClaimDenied,
				Mutate: func(e *entity.Entity) error {
					claim, err := unmarshalPayload(e.Payload)
					if err != nil {
						return dErrors.Wrap(err, dErrors.CodeInternal, "stored claim payload is unreadable")
					}
					claim.Denials = append(claim.Denials, d)
					claim.Status = StatusDenied
					e.Payload, err = marshalPayload(claim)
					return err
				},
			})
			if err != nil {
				return err
			}
			byNumber[denial.ClaimID] = updated
			summary.DenialsApplied++
		}

		for claimNumber := range unmatched {
			summary.UnmatchedClaims = append(summary.UnmatchedClaims, claimNumber)
		}
		sort.Strings(summary.UnmatchedClaims)
		return nil
	})
	if err != nil {
		summary.DenialsApplied = 0
		summary.UnmatchedClaims = nil
		return nil, err
	}

	if len(summary.UnmatchedClaims) > 0 {
		s.logger.WarnContext(ctx, "remittance referenced unknown claims",
			"tenant_id", tenantID.String(),
			"unmatched", summary.UnmatchedClaims,
		)
	}
	return summary, nil
}

func toResponse(e *entity.Entity) (*ClaimResponse, error) {
	claim, err := unmarshalPayload(e.Payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored claim payload is unreadable")
	}
	return &ClaimResponse{
		ID:          e.ID.String(),
		Version:     e.Version,
		DenialTotal: claim.DenialTotal(),
		Claim:       claim,
	}, nil
}

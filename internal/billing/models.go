// Package billing owns the claim lifecycle: idempotent creation, versioned
// updates, soft deletion and ERA remittance ingestion. It is the composition
// point of the write core; every operation here runs inside one transaction
// spanning the entity mutation, the audit entry and the idempotency receipt,
// with domain events flushed only after commit.
package billing

import (
	"encoding/json"
	"fmt"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/edi"
	dErrors "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain-errors"
)

// EntityTypeClaim is the entity store type tag for billing claims.
const EntityTypeClaim = "claim"

// Claim statuses.
const (
	StatusSubmitted = "submitted"
	StatusDenied    = "denied"
)

// Event names emitted by claim mutations.
const (
	EventClaimCreated = "claim.created"
	EventClaimUpdated = "claim.updated"
	EventClaimDeleted = "claim.deleted"
	EventClaimDenied  = "claim.denied"
)

// Route keys scoping idempotency receipts to one logical operation.
const (
	RouteCreateClaim = "POST /v1/claims"
)

// Claim is the payload stored for a claim entity. ClaimNumber is the
// payer-facing identifier that 835 CLP segments reference.
type Claim struct {
	ClaimNumber string       `json:"claim_number"`
	PatientRef  string       `json:"patient_ref"`
	Payer       string       `json:"payer"`
	Amount      float64      `json:"amount"`
	Status      string       `json:"status"`
	Denials     []edi.Denial `json:"denials,omitempty"`
}

// DenialTotal sums the adjustment amounts recorded against the claim.
func (c Claim) DenialTotal() float64 {
	var total float64
	for _, d := range c.Denials {
		total += d.Amount
	}
	return total
}

// CreateClaimRequest is the inbound shape for claim creation.
type CreateClaimRequest struct {
	ClaimNumber string  `json:"claim_number"`
	PatientRef  string  `json:"patient_ref"`
	Payer       string  `json:"payer"`
	Amount      float64 `json:"amount"`
}

// Validate enforces the request invariants before any store work happens.
func (r CreateClaimRequest) Validate() error {
	if r.ClaimNumber == "" {
		return dErrors.New(dErrors.CodeBadRequest, "claim_number is required")
	}
	if r.Amount < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must not be negative")
	}
	return nil
}

// UpdateClaimRequest carries a versioned claim update. ExpectedVersion is the
// optimistic-concurrency guard the caller read.
type UpdateClaimRequest struct {
	ExpectedVersion int64    `json:"expected_version"`
	PatientRef      *string  `json:"patient_ref,omitempty"`
	Payer           *string  `json:"payer,omitempty"`
	Amount          *float64 `json:"amount,omitempty"`
	Status          *string  `json:"status,omitempty"`
}

// ClaimResponse is the outbound claim shape, combining the stored payload
// with the entity metadata callers need for their next conditional write.
// DenialTotal is derived from the stored denials, never persisted.
type ClaimResponse struct {
	ID          string  `json:"id"`
	Version     int64   `json:"version"`
	DenialTotal float64 `json:"denial_total"`
	Claim
}

// RemittanceSummary reports one 835 ingestion run.
type RemittanceSummary struct {
	DenialsParsed   int      `json:"denials_parsed"`
	DenialsApplied  int      `json:"denials_applied"`
	UnmatchedClaims []string `json:"unmatched_claims,omitempty"`
}

func marshalPayload(c Claim) (json.RawMessage, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal claim payload: %w", err)
	}
	return payload, nil
}

func unmarshalPayload(raw json.RawMessage) (Claim, error) {
	var c Claim
	if err := json.Unmarshal(raw, &c); err != nil {
		return Claim{}, fmt.Errorf("unmarshal claim payload: %w", err)
	}
	return c, nil
}

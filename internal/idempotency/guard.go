// Package idempotency deduplicates externally retried financial operations.
// A receipt is created at most once per (tenant, key, route); retries of the
// same logical request replay the stored response without re-running side
// effects. The race between concurrent first attempts is settled by a
// uniqueness constraint at persistence time, never by the pre-check alone.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/metrics"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	dErrors "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain-errors"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/platform/sentinel"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/requestcontext"
)

// Guard wraps side-effecting operations with receipt-based deduplication.
type Guard struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Guard.
type Option func(*Guard)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func NewGuard(store Store, logger *slog.Logger, opts ...Option) *Guard {
	g := &Guard{store: store, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Execute runs fn at most once for (tenantID, key, routeKey). The returned
// bool is true when the response came from a stored receipt.
//
// Execute must run inside the transaction that also carries fn's business
// mutation: the receipt insert rides the same commit, so a crash between
// mutation and receipt cannot leave the two disagreeing.
//
// Two concurrent first attempts can both pass the existence check. The loser
// hits the uniqueness constraint and Execute returns sentinel.ErrDuplicateKey
// untranslated; the caller rolls its transaction back and calls Replay
// outside it to return the winner's stored response.
func (g *Guard) Execute(
	ctx context.Context,
	tenantID id.TenantID,
	key, routeKey string,
	payload any,
	fn func(ctx context.Context) (json.RawMessage, error),
) (json.RawMessage, bool, error) {
	if err := validateKeys(tenantID, key, routeKey); err != nil {
		return nil, false, err
	}

	requestHash, err := hashPayload(payload)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeBadRequest, "request payload is not hashable")
	}

	existing, err := g.store.Find(ctx, tenantID, key, routeKey)
	switch {
	case err == nil:
		return g.replayReceipt(ctx, existing, requestHash, key, routeKey)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up idempotency receipt")
	}

	response, err := fn(ctx)
	if err != nil {
		return nil, false, err
	}

	receipt := &Receipt{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Key:          key,
		RouteKey:     routeKey,
		RequestHash:  requestHash,
		ResponseJSON: response,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := g.store.Insert(ctx, receipt); err != nil {
		if errors.Is(err, sentinel.ErrDuplicateKey) {
			// Lost the first-writer race. Propagate the sentinel so the
			// caller can roll back and replay the winner's receipt.
			return nil, false, err
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist idempotency receipt")
	}
	return response, false, nil
}

// Replay returns the stored response for a key whose insert lost the
// uniqueness race. It must be called outside the rolled-back transaction so
// the read sees the winner's committed receipt.
func (g *Guard) Replay(
	ctx context.Context,
	tenantID id.TenantID,
	key, routeKey string,
	payload any,
) (json.RawMessage, bool, error) {
	requestHash, err := hashPayload(payload)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeBadRequest, "request payload is not hashable")
	}

	receipt, err := g.store.Find(ctx, tenantID, key, routeKey)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to re-read idempotency receipt after race")
	}
	return g.replayReceipt(ctx, receipt, requestHash, key, routeKey)
}

func (g *Guard) replayReceipt(ctx context.Context, receipt *Receipt, requestHash, key, routeKey string) (json.RawMessage, bool, error) {
	if receipt.RequestHash != requestHash {
		g.metrics.IncIdempotencyConflicts()
		return nil, false, dErrors.New(dErrors.CodeIdempotencyKeyReuse,
			"idempotency key was already used for a different request payload")
	}
	g.metrics.IncIdempotentReplays()
	g.logger.DebugContext(ctx, "idempotent replay",
		"idempotency_key", key,
		"route_key", routeKey,
		"correlation_id", requestcontext.CorrelationID(ctx),
	)
	return receipt.ResponseJSON, true, nil
}

func validateKeys(tenantID id.TenantID, key, routeKey string) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if key == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "idempotency key is required")
	}
	if routeKey == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "route key is required")
	}
	return nil
}

// hashPayload produces a stable digest of the normalized request payload.
// Raw JSON is decoded and re-encoded so formatting and key order do not
// change the hash; Go re-marshals object keys sorted.
func hashPayload(payload any) (string, error) {
	var normalized []byte
	var err error

	switch p := payload.(type) {
	case nil:
		normalized = []byte("null")
	case json.RawMessage:
		normalized, err = normalizeRaw(p)
	case []byte:
		normalized, err = normalizeRaw(p)
	default:
		normalized, err = json.Marshal(p)
	}
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeRaw(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return []byte("null"), nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode request payload: %w", err)
	}
	return json.Marshal(v)
}

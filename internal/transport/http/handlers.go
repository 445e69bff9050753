// Package http exposes the thin HTTP surface over the billing core. Routing
// and JSON shuffling only; every decision that matters happens in services.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/audit"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/billing"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	dErrors "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain-errors"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/requestcontext"
)

// HeaderIdempotencyKey carries the client-chosen key for safely retryable
// financial operations.
const HeaderIdempotencyKey = "Idempotency-Key"

// Handler serves the claim, remittance and audit endpoints.
type Handler struct {
	billing *billing.Service
	audit   *audit.Recorder
	logger  *slog.Logger
}

func NewHandler(billingService *billing.Service, auditRecorder *audit.Recorder, logger *slog.Logger) *Handler {
	return &Handler{billing: billingService, audit: auditRecorder, logger: logger}
}

func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req billing.CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	resp, replayed, err := h.billing.CreateClaim(ctx, requestcontext.TenantID(ctx), req, r.Header.Get(HeaderIdempotencyKey))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		// The original creation already happened; this is a safe retry.
		status = http.StatusOK
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, err := id.ParseEntityID(chi.URLParam(r, "claimID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.billing.GetClaim(ctx, requestcontext.TenantID(ctx), claimID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.billing.ListClaims(ctx, requestcontext.TenantID(ctx), 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"claims": resp})
}

func (h *Handler) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, err := id.ParseEntityID(chi.URLParam(r, "claimID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req billing.UpdateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	resp, err := h.billing.UpdateClaim(ctx, requestcontext.TenantID(ctx), claimID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claimID, err := id.ParseEntityID(chi.URLParam(r, "claimID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		ExpectedVersion int64 `json:"expected_version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	if err := h.billing.DeleteClaim(ctx, requestcontext.TenantID(ctx), claimID, req.ExpectedVersion); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) IngestRemittance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Document string `json:"document"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	summary, err := h.billing.IngestRemittance(ctx, requestcontext.TenantID(ctx), req.Document)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := h.audit.ListForTenant(ctx, requestcontext.TenantID(ctx), parseLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": toAuditResponses(entries)})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	err = dErrors.WithCorrelationID(err, requestcontext.CorrelationID(ctx))
	correlationID := dErrors.CorrelationIDOf(err)
	if correlationID == "" {
		// Unclassified errors never carry the annotation.
		correlationID = requestcontext.CorrelationID(ctx)
	}
	code := dErrors.CodeOf(err)

	if code == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "request failed",
			"path", r.URL.Path,
			"correlation_id", correlationID,
			"error", err,
		)
	}

	h.writeJSON(w, statusFor(code), errorBody{
		Code:          string(code),
		Message:       dErrors.MessageOf(err),
		CorrelationID: correlationID,
	})
}

type errorBody struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConcurrencyConflict, dErrors.CodeConflict, dErrors.CodeIdempotencyKeyReuse:
		return http.StatusConflict
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return limit
}

// Package middleware holds the transport-boundary middleware for the billing
// core. Token verification itself happens upstream (API gateway / identity
// provider); by the time a request reaches this service the identity headers
// are trusted output of that verification, never raw client input.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/requestcontext"
)

// Headers populated by the upstream gateway after it verifies the caller.
const (
	HeaderTenantID      = "X-Verified-Tenant-ID"
	HeaderActorID       = "X-Verified-Actor-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// ResolveIdentity copies the verified tenant and actor into the request
// context. Requests without a resolvable tenant are rejected before they can
// touch any tenant-scoped store. A missing correlation id gets a fresh one so
// every mutation in the request is traceable.
func ResolveIdentity(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			correlationID := r.Header.Get(HeaderCorrelationID)
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			ctx = requestcontext.WithCorrelationID(ctx, correlationID)

			tenantID, err := id.ParseTenantID(r.Header.Get(HeaderTenantID))
			if err != nil {
				logger.WarnContext(ctx, "request rejected: unresolvable tenant",
					"correlation_id", correlationID,
					"path", r.URL.Path,
				)
				writeIdentityError(w, correlationID)
				return
			}
			ctx = requestcontext.WithTenantID(ctx, tenantID)

			if actorID, err := id.ParseUserID(r.Header.Get(HeaderActorID)); err == nil {
				ctx = requestcontext.WithActorID(ctx, actorID)
			}

			w.Header().Set(HeaderCorrelationID, correlationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeIdentityError(w http.ResponseWriter, correlationID string) {
	w.Header().Set(HeaderCorrelationID, correlationID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":           "unauthenticated",
		"message":        "tenant identity could not be resolved",
		"correlation_id": correlationID,
	})
}

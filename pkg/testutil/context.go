package testutil

import (
	"context"
	"net/http"

	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/internal/platform/middleware"
	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
	"github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/requestcontext"
)

// WithTenant sets the verified-tenant header on a request.
// This simulates what the upstream gateway would attach after authentication.
func WithTenant(req *http.Request, tenantID id.TenantID) *http.Request {
	req.Header.Set(middleware.HeaderTenantID, tenantID.String())
	return req
}

// WithActor sets the verified-actor header on a request.
func WithActor(req *http.Request, actorID id.UserID) *http.Request {
	req.Header.Set(middleware.HeaderActorID, actorID.String())
	return req
}

// WithIdentity sets tenant, actor and correlation headers in one call.
// Empty values are skipped.
func WithIdentity(req *http.Request, tenantID id.TenantID, actorID id.UserID, correlationID string) *http.Request {
	if !tenantID.IsNil() {
		req.Header.Set(middleware.HeaderTenantID, tenantID.String())
	}
	if !actorID.IsNil() {
		req.Header.Set(middleware.HeaderActorID, actorID.String())
	}
	if correlationID != "" {
		req.Header.Set(middleware.HeaderCorrelationID, correlationID)
	}
	return req
}

// TenantContext builds a context carrying a tenant identity, the way the
// identity middleware would for a verified request.
func TenantContext(tenantID id.TenantID) context.Context {
	return requestcontext.WithTenantID(context.Background(), tenantID)
}

// IdentityContext builds a context carrying a full request identity.
func IdentityContext(tenantID id.TenantID, actorID id.UserID, correlationID string) context.Context {
	ctx := requestcontext.WithTenantID(context.Background(), tenantID)
	ctx = requestcontext.WithActorID(ctx, actorID)
	return requestcontext.WithCorrelationID(ctx, correlationID)
}

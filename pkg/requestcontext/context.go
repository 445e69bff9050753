// Package requestcontext provides HTTP-independent context accessors for
// request-scoped identity and tracing values.
//
// Middleware at the transport boundary resolves tenant, actor and correlation
// id from verified identity and stores them here; services read them without
// importing anything HTTP-shaped. Tests inject values (including a fixed
// request time) the same way.
package requestcontext

import (
	"context"
	"time"

	id "github.com/joshuawendorf21310/FusionEMS-Core-sub003/pkg/domain"
)

type (
	tenantIDKey      struct{}
	actorIDKey       struct{}
	correlationIDKey struct{}
	requestTimeKey   struct{}
)

// WithTenantID records the verified tenant partition for this request.
func WithTenantID(ctx context.Context, tenantID id.TenantID) context.Context {
	return context.WithValue(ctx, tenantIDKey{}, tenantID)
}

// TenantID returns the request's tenant, or the zero TenantID when unset.
func TenantID(ctx context.Context) id.TenantID {
	tenantID, _ := ctx.Value(tenantIDKey{}).(id.TenantID)
	return tenantID
}

// WithActorID records the verified acting user for this request.
func WithActorID(ctx context.Context, actorID id.UserID) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// ActorID returns the acting user, or nil for system-initiated work (ingest
// jobs, schedulers) that has no human actor.
func ActorID(ctx context.Context) *id.UserID {
	actorID, ok := ctx.Value(actorIDKey{}).(id.UserID)
	if !ok || actorID.IsNil() {
		return nil
	}
	return &actorID
}

// WithCorrelationID attaches an opaque token propagated across a request's
// audit entries and emitted events.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// CorrelationID returns the request's correlation id, or "" when unset.
func CorrelationID(ctx context.Context) string {
	correlationID, _ := ctx.Value(correlationIDKey{}).(string)
	return correlationID
}

// WithTime pins the request time, letting tests control every timestamp a
// mutation produces.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now().UTC()
}

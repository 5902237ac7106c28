package tenant

import (
	"context"
	"log/slog"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithTenant places the resolved tenant record in ambient request-local
// storage for the duration of the request (spec section 4.2: "the internal
// id is placed in ambient request-local storage").
func WithTenant(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, contextKey{}, rec)
}

// FromContext retrieves the resolved tenant record from the context.
func FromContext(ctx context.Context) (*Record, bool) {
	rec, ok := ctx.Value(contextKey{}).(*Record)
	return rec, ok
}

// InternalIDFromContext retrieves just the internal tenant id — the value
// used as the partition key in every resource row.
func InternalIDFromContext(ctx context.Context) (string, bool) {
	rec, ok := FromContext(ctx)
	if !ok || rec == nil {
		return "", false
	}
	return rec.InternalID, true
}

// MustInternalIDFromContext retrieves the internal tenant id, panicking if
// absent. Use only where the request pipeline guarantees tenant resolution
// already ran (i.e. everywhere past C2).
func MustInternalIDFromContext(ctx context.Context) string {
	id, ok := InternalIDFromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return id
}

// LoggerExtractor returns a ContextExtractor for the logger that pulls the
// internal tenant id from context, grounded on the teacher's pkg/requestid
// LoggerExtractor pattern.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := InternalIDFromContext(ctx); ok {
			return slog.String("tenant_id", id), true
		}
		return slog.Attr{}, false
	}
}

package tenant

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
)

// DefaultHeaderName is the header carrying the tenant's external GUID when
// multi-tenancy is enabled (spec section 4.2).
const DefaultHeaderName = "X-Tenant-ID"

// Resolver implements the Tenant Resolver (C2): it turns an inbound request
// into a tenant Record, consulting the cache before the Store and
// populating the cache only on a successful, enabled resolution.
//
// Propagation policy: Resolve returns *fhirerr.Error values exclusively
// (spec section 7) — callers must never synthesize an HTTP status here.
type Resolver struct {
	store       Store
	cache       Cache
	header      string
	multiTenant bool
}

// NewResolver constructs a Resolver. By default multi-tenancy is enabled
// and the tenant GUID is read from DefaultHeaderName; use the With*
// options to override.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:       store,
		cache:       NewInMemoryCache(),
		header:      DefaultHeaderName,
		multiTenant: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache overrides the default in-memory mapping cache.
func WithCache(cache Cache) ResolverOption {
	return func(r *Resolver) { r.cache = cache }
}

// WithHeaderName overrides DefaultHeaderName.
func WithHeaderName(name string) ResolverOption {
	return func(r *Resolver) {
		if name != "" {
			r.header = name
		}
	}
}

// WithMultiTenancy toggles multi-tenancy. When disabled, Resolve always
// returns the default tenant record and ignores the header entirely (spec
// section 4.2).
func WithMultiTenancy(enabled bool) ResolverOption {
	return func(r *Resolver) { r.multiTenant = enabled }
}

// Resolve extracts and validates the tenant for req, per spec section 4.2:
//
//   - multi-tenancy disabled: returns the default tenant, no header check,
//     no lookup.
//   - header absent or blank: fhirerr.KindBadRequest (MissingTenantHeader).
//   - header not a parseable GUID: fhirerr.KindBadRequest (InvalidTenantFormat).
//   - GUID unknown to the store: fhirerr.KindBadRequest (TenantNotFound).
//   - GUID known but disabled: fhirerr.KindForbidden (TenantDisabled).
func (r *Resolver) Resolve(req *http.Request) (*Record, error) {
	if !r.multiTenant {
		return &Record{GUID: DefaultGUID, InternalID: DefaultInternalID, Enabled: true}, nil
	}

	raw := req.Header.Get(r.header)
	if raw == "" {
		return nil, fhirerr.New(fhirerr.KindBadRequest,
			fmt.Sprintf("missing required tenant header %q", r.header))
	}

	guid, err := uuid.Parse(raw)
	if err != nil {
		return nil, fhirerr.New(fhirerr.KindBadRequest,
			fmt.Sprintf("tenant header %q is not a valid GUID", r.header))
	}

	return r.resolveGUID(req.Context(), guid)
}

func (r *Resolver) resolveGUID(ctx context.Context, guid uuid.UUID) (*Record, error) {
	if cached, ok := r.cache.Get(ctx, guid); ok {
		return cached, nil
	}

	rec, err := r.store.GetByGUID(ctx, guid)
	if err != nil {
		if err == ErrNotFound {
			return nil, fhirerr.New(fhirerr.KindBadRequest, "tenant not found")
		}
		return nil, fhirerr.New(fhirerr.KindInternal, "tenant lookup failed")
	}

	if !rec.Enabled {
		return nil, fhirerr.New(fhirerr.KindForbidden, "tenant is disabled")
	}

	if err := r.cache.Set(ctx, guid, rec); err != nil {
		return nil, fhirerr.New(fhirerr.KindInternal, "tenant cache write failed")
	}

	return rec, nil
}

// InvalidateCache drops the cached mapping for guid. Called by the admin
// surface whenever a tenant record is edited or disabled (spec section
// 4.2: "invalidated only by explicit admin-triggered calls, no TTL").
func (r *Resolver) InvalidateCache(ctx context.Context, guid uuid.UUID) error {
	return r.cache.Invalidate(ctx, guid)
}

// ClearCache drops every cached mapping.
func (r *Resolver) ClearCache(ctx context.Context) error {
	return r.cache.Clear(ctx)
}

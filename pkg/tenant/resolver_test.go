package tenant_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
)

func newFhirError(t *testing.T, err error) *fhirerr.Error {
	t.Helper()
	var fe *fhirerr.Error
	require.ErrorAs(t, err, &fe)
	return fe
}

func TestResolver_MultiTenancyDisabled(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := tenant.NewResolver(store, tenant.WithMultiTenancy(false))

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	rec, err := resolver.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, tenant.DefaultGUID, rec.GUID)
	assert.Equal(t, tenant.DefaultInternalID, rec.InternalID)
	assert.Equal(t, 0, store.callCount(), "no lookup should happen when multi-tenancy is disabled")
}

func TestResolver_MissingHeader(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := tenant.NewResolver(store)

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	_, err := resolver.Resolve(req)
	require.Error(t, err)
	assert.Equal(t, fhirerr.KindBadRequest, newFhirError(t, err).Kind)
}

func TestResolver_BlankHeader(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := tenant.NewResolver(store)

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	req.Header.Set(tenant.DefaultHeaderName, "")

	_, err := resolver.Resolve(req)
	require.Error(t, err)
	assert.Equal(t, fhirerr.KindBadRequest, newFhirError(t, err).Kind)
}

func TestResolver_InvalidGUIDFormat(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := tenant.NewResolver(store)

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	req.Header.Set(tenant.DefaultHeaderName, "not-a-guid")

	_, err := resolver.Resolve(req)
	require.Error(t, err)
	assert.Equal(t, fhirerr.KindBadRequest, newFhirError(t, err).Kind)
}

func TestResolver_UnknownGUID(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := tenant.NewResolver(store)

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	req.Header.Set(tenant.DefaultHeaderName, uuid.New().String())

	_, err := resolver.Resolve(req)
	require.Error(t, err)
	assert.Equal(t, fhirerr.KindBadRequest, newFhirError(t, err).Kind)
}

func TestResolver_DisabledTenant(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := newTestRecord(false)
	store.add(rec)
	resolver := tenant.NewResolver(store)

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	req.Header.Set(tenant.DefaultHeaderName, rec.GUID.String())

	_, err := resolver.Resolve(req)
	require.Error(t, err)
	assert.Equal(t, fhirerr.KindForbidden, newFhirError(t, err).Kind)
}

func TestResolver_SuccessfulResolution(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := newTestRecord(true)
	store.add(rec)
	resolver := tenant.NewResolver(store)

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	req.Header.Set(tenant.DefaultHeaderName, rec.GUID.String())

	resolved, err := resolver.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, rec.InternalID, resolved.InternalID)
}

func TestResolver_CachesSuccessfulResolution(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := newTestRecord(true)
	store.add(rec)
	resolver := tenant.NewResolver(store)

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	req.Header.Set(tenant.DefaultHeaderName, rec.GUID.String())

	_, err := resolver.Resolve(req)
	require.NoError(t, err)
	_, err = resolver.Resolve(req)
	require.NoError(t, err)

	assert.Equal(t, 1, store.callCount(), "second resolution should be served from cache")
}

func TestResolver_NeverCachesNotFoundOrDisabled(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := tenant.NewResolver(store)

	missing := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	req.Header.Set(tenant.DefaultHeaderName, missing.String())

	_, err := resolver.Resolve(req)
	require.Error(t, err)
	_, err = resolver.Resolve(req)
	require.Error(t, err)

	assert.Equal(t, 2, store.callCount(), "not-found lookups must never be cached")
}

func TestResolver_InvalidateCache(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := newTestRecord(true)
	store.add(rec)
	resolver := tenant.NewResolver(store)

	req := httptest.NewRequest(http.MethodGet, "/Patient/123", nil)
	req.Header.Set(tenant.DefaultHeaderName, rec.GUID.String())

	_, err := resolver.Resolve(req)
	require.NoError(t, err)
	require.NoError(t, resolver.InvalidateCache(req.Context(), rec.GUID))

	_, err = resolver.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, 2, store.callCount(), "invalidated entry must be re-fetched from the store")
}

package resource_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fhirgateway/pkg/conformance"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/profile"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
	"github.com/dmitrymomot/fhirgateway/pkg/resource"
	"github.com/dmitrymomot/fhirgateway/pkg/searchparam"
	"github.com/dmitrymomot/fhirgateway/pkg/storage"
)

// fakeSearchIndex is a minimal stand-in for *storage.OpenSearchIndex,
// recording every call instead of talking to a real cluster.
type fakeSearchIndex struct {
	indexed []storage.Record
	removed []string
}

func (f *fakeSearchIndex) Index(_ context.Context, rec storage.Record) {
	f.indexed = append(f.indexed, rec)
}

func (f *fakeSearchIndex) Remove(_ context.Context, _, _, resourceID string) {
	f.removed = append(f.removed, resourceID)
}

func TestService_WithSearchIndex_IndexesOnCreateAndUpdate_RemovesOnDelete(t *testing.T) {
	reg, err := registry.LoadBytes([]byte(registryYAML))
	require.NoError(t, err)

	backend := storage.NewMemoryBackend()
	router := storage.NewRouter(backend, nil)
	engine := conformance.NewGenericEngine()
	checker := profile.NewChecker(profile.NoopValidator{}, profile.ModeStrict, true)
	validator := searchparam.New(nil)

	idx := &fakeSearchIndex{}
	svc := resource.NewService(router, reg, engine, checker, validator, resource.WithSearchIndex("Patient", idx))

	ctx := withTenant(context.Background())

	created, err := svc.Create(ctx, "Patient", fhirversion.R5, []byte(`{"resourceType":"Patient","active":true}`))
	require.NoError(t, err)
	require.Len(t, idx.indexed, 1)
	assert.Equal(t, created.ResourceID, idx.indexed[0].ResourceID)

	_, err = svc.Update(ctx, "Patient", fhirversion.R5, created.ResourceID,
		[]byte(`{"resourceType":"Patient","active":false}`), created.ETag())
	require.NoError(t, err)
	require.Len(t, idx.indexed, 2)

	_, err = svc.Delete(ctx, "Patient", fhirversion.R5, created.ResourceID)
	require.NoError(t, err)
	require.Len(t, idx.removed, 1)
	assert.Equal(t, created.ResourceID, idx.removed[0])
}

func TestService_WithSearchIndex_UnconfiguredResourceTypeNeverCalled(t *testing.T) {
	reg, err := registry.LoadBytes([]byte(registryYAML))
	require.NoError(t, err)

	backend := storage.NewMemoryBackend()
	router := storage.NewRouter(backend, nil)
	engine := conformance.NewGenericEngine()
	checker := profile.NewChecker(profile.NoopValidator{}, profile.ModeStrict, true)
	validator := searchparam.New(nil)

	idx := &fakeSearchIndex{}
	svc := resource.NewService(router, reg, engine, checker, validator, resource.WithSearchIndex("Patient", idx))

	ctx := withTenant(context.Background())
	_, err = svc.Create(ctx, "Observation", fhirversion.R5, []byte(`{"resourceType":"Observation"}`))
	require.NoError(t, err)
	assert.Empty(t, idx.indexed)
}

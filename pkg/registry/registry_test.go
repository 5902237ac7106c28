package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
)

func TestNew_ValidConfig(t *testing.T) {
	t.Parallel()

	reg, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Patient
    enabled: true
    versions: [r5, r4b]
    default_version: r5
    placement: shared
    shared_schema: fhir_resource
    interactions:
      read: true
      create: true
`))
	require.NoError(t, err)

	cfg, err := reg.Current().Get("Patient")
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.Interactions.Read)
	assert.True(t, cfg.SupportsVersion(fhirversion.R5))
	assert.True(t, cfg.SupportsVersion(fhirversion.R4B))
}

func TestLoadBytes_MissingDefaultVersion(t *testing.T) {
	t.Parallel()

	_, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Patient
    versions: [r5]
    default_version: r4b
    placement: shared
    shared_schema: fhir_resource
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrNoDefaultVersion)
}

func TestLoadBytes_DuplicateResourceType(t *testing.T) {
	t.Parallel()

	_, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Patient
    versions: [r5]
    default_version: r5
    placement: shared
    shared_schema: fhir_resource
  - resource_type: Patient
    versions: [r5]
    default_version: r5
    placement: shared
    shared_schema: fhir_resource
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrDuplicateResourceType)
}

func TestLoadBytes_InvalidDedicatedSchemaName(t *testing.T) {
	t.Parallel()

	_, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Observation
    versions: [r5]
    default_version: r5
    placement: dedicated
    dedicated_schema: "bad-name; drop table"
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrInvalidSchemaName)
}

func TestLoadBytes_MissingSchemaName(t *testing.T) {
	t.Parallel()

	_, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Observation
    versions: [r5]
    default_version: r5
    placement: dedicated
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrMissingSchemaName)
}

func TestLoadBytes_UnknownPlacement(t *testing.T) {
	t.Parallel()

	_, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Observation
    versions: [r5]
    default_version: r5
    placement: elsewhere
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrUnknownPlacement)
}

func TestLoadBytes_UnknownDedicatedBackend(t *testing.T) {
	t.Parallel()

	_, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Observation
    versions: [r5]
    default_version: r5
    placement: dedicated
    dedicated_schema: observation
    dedicated_backend: oracle
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrUnknownDedicatedBackend)
}

func TestLoadBytes_UnknownSearchBackend(t *testing.T) {
	t.Parallel()

	_, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Observation
    versions: [r5]
    default_version: r5
    placement: shared
    shared_schema: fhir_resource
    search_backend: elasticsearch
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrUnknownSearchBackend)
}

func TestResourceConfig_Backend_DefaultsToPostgres(t *testing.T) {
	t.Parallel()

	reg, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Observation
    versions: [r5]
    default_version: r5
    placement: dedicated
    dedicated_schema: observation
`))
	require.NoError(t, err)

	cfg, err := reg.Current().Get("Observation")
	require.NoError(t, err)
	assert.Equal(t, registry.DedicatedBackendPostgres, cfg.Backend())
}

func TestResourceConfig_Backend_HonorsMongoOverride(t *testing.T) {
	t.Parallel()

	reg, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Observation
    versions: [r5]
    default_version: r5
    placement: dedicated
    dedicated_schema: observation
    dedicated_backend: mongo
`))
	require.NoError(t, err)

	cfg, err := reg.Current().Get("Observation")
	require.NoError(t, err)
	assert.Equal(t, registry.DedicatedBackendMongo, cfg.Backend())
}

func TestTable_Get_UnknownResourceType(t *testing.T) {
	t.Parallel()

	reg, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Patient
    versions: [r5]
    default_version: r5
    placement: shared
    shared_schema: fhir_resource
`))
	require.NoError(t, err)

	_, err = reg.Current().Get("Observation")
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrUnknownResourceType)
}

func TestRegistry_ReloadSwapsAtomically(t *testing.T) {
	t.Parallel()

	reg, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Patient
    versions: [r5]
    default_version: r5
    placement: shared
    shared_schema: fhir_resource
    interactions:
      delete: true
`))
	require.NoError(t, err)

	before := reg.Current()
	cfg, err := before.Get("Patient")
	require.NoError(t, err)
	assert.True(t, cfg.Interactions.Delete)

	require.NoError(t, reg.Reload([]registry.ResourceConfig{{
		ResourceType:   "Patient",
		Versions:       []fhirversion.Version{fhirversion.R5},
		DefaultVersion: fhirversion.R5,
		Placement:      registry.PlacementShared,
		SharedSchema:   "fhir_resource",
	}}))

	// The previously obtained snapshot is untouched.
	cfgAfterReloadOnOldSnapshot, err := before.Get("Patient")
	require.NoError(t, err)
	assert.True(t, cfgAfterReloadOnOldSnapshot.Interactions.Delete)

	after := reg.Current()
	cfgNew, err := after.Get("Patient")
	require.NoError(t, err)
	assert.False(t, cfgNew.Interactions.Delete)
}

func TestRegistry_ReloadRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	reg, err := registry.LoadBytes([]byte(`
resources:
  - resource_type: Patient
    versions: [r5]
    default_version: r5
    placement: shared
    shared_schema: fhir_resource
`))
	require.NoError(t, err)

	err = reg.Reload([]registry.ResourceConfig{{
		ResourceType:   "Patient",
		Versions:       []fhirversion.Version{fhirversion.R5},
		DefaultVersion: fhirversion.R5,
		Placement:      registry.PlacementShared,
		SharedSchema:   "bad;name",
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrInvalidSchemaName)

	// Previous valid table remains current after a rejected reload.
	cfg, err := reg.Current().Get("Patient")
	require.NoError(t, err)
	assert.Equal(t, "fhir_resource", cfg.SharedSchema)
}

func TestValidSchemaName(t *testing.T) {
	t.Parallel()

	assert.True(t, registry.ValidSchemaName("fhir_resource"))
	assert.True(t, registry.ValidSchemaName("_private"))
	assert.True(t, registry.ValidSchemaName("Observation2"))
	assert.False(t, registry.ValidSchemaName("1leading_digit"))
	assert.False(t, registry.ValidSchemaName("bad-name"))
	assert.False(t, registry.ValidSchemaName("bad;name"))
	assert.False(t, registry.ValidSchemaName(""))
}

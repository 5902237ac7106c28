// Package registry holds the Resource Registry (spec section 3/4's
// "Resource Configuration" table): an in-memory, effectively immutable
// index of per-resource-type settings consulted by the search-param
// validator, storage router, profile validator, and resource service.
//
// The table is loaded once from YAML and published atomically. Reloading
// never mutates an existing Table in place — a new Table is constructed
// and swapped, per the design note on global configuration singletons
// (spec section 9).
package registry

import "github.com/dmitrymomot/fhirgateway/pkg/fhirversion"

// SchemaPlacement says whether a resource type's rows live in the shared
// multi-resource table or a dedicated per-resource schema (spec section 4.5).
type SchemaPlacement string

const (
	PlacementShared    SchemaPlacement = "shared"
	PlacementDedicated SchemaPlacement = "dedicated"
)

// DedicatedBackendKind selects which storage engine backs a dedicated-
// placement resource type (spec section 4.5 names Postgres and Mongo as
// interchangeable dedicated-schema implementations of the same Backend
// interface). Unset resolves to Postgres, the router's default.
type DedicatedBackendKind string

const (
	DedicatedBackendPostgres DedicatedBackendKind = "postgres"
	DedicatedBackendMongo    DedicatedBackendKind = "mongo"
)

// Interactions is the enabled-interaction bitmap from spec section 3.
type Interactions struct {
	Read    bool `yaml:"read"`
	VRead   bool `yaml:"vread"`
	Create  bool `yaml:"create"`
	Update  bool `yaml:"update"`
	Patch   bool `yaml:"patch"`
	Delete  bool `yaml:"delete"`
	Search  bool `yaml:"search"`
	History bool `yaml:"history"`
}

// SearchParamMode selects allowlist or denylist semantics for C5.
type SearchParamMode string

const (
	ModeAllowlist SearchParamMode = "allowlist"
	ModeDenylist  SearchParamMode = "denylist"
)

// SearchParamPolicy is the optional per-resource search-parameter policy
// from spec section 3. Common applies across all resource types in
// addition to ResourceSpecific; when Policy is the zero value (Mode ""),
// no restriction is applied and every parameter is accepted.
type SearchParamPolicy struct {
	Mode             SearchParamMode `yaml:"mode"`
	Common           []string        `yaml:"common"`
	ResourceSpecific []string        `yaml:"resource_specific"`
}

// Enabled reports whether a policy is configured at all.
func (p SearchParamPolicy) Enabled() bool {
	return p.Mode != ""
}

// ProfileRequirement is one entry of the required-profiles list.
type ProfileRequirement struct {
	URL      string `yaml:"url"`
	Required bool   `yaml:"required"`
}

// ResourceConfig is one resource type's configuration row, per spec
// section 3's "Resource Configuration" data model entry.
type ResourceConfig struct {
	ResourceType    string                  `yaml:"resource_type"`
	Enabled         bool                    `yaml:"enabled"`
	Versions        []fhirversion.Version   `yaml:"versions"`
	DefaultVersion  fhirversion.Version     `yaml:"default_version"`
	Placement       SchemaPlacement         `yaml:"placement"`
	SharedSchema    string                  `yaml:"shared_schema"`
	DedicatedSchema string                  `yaml:"dedicated_schema"`
	DedicatedBackend DedicatedBackendKind   `yaml:"dedicated_backend"`
	Interactions    Interactions            `yaml:"interactions"`
	SearchParams    SearchParamPolicy       `yaml:"search_params"`
	Profiles        []ProfileRequirement    `yaml:"profiles"`
	SearchBackend   string                  `yaml:"search_backend"`

	// BlobThresholdBytes is the SPEC_FULL.md section 4.4 binary
	// externalization policy: a CREATE/UPDATE whose serialized content
	// exceeds this many bytes is written to the blob store instead of the
	// resource row's content column, with source_uri populated in its
	// place. Zero disables externalization for this resource type.
	BlobThresholdBytes int `yaml:"blob_threshold_bytes"`

	// UpdatesAsCreate permits UPDATE on an id with no prior row to behave
	// like CREATE with that caller-supplied id, per spec section 4.4:
	// "if no prior row exists and updates-as-create is permitted, behaves
	// like CREATE with that id."
	UpdatesAsCreate bool `yaml:"updates_as_create"`
}

// SupportsVersion reports whether v is one of the configured versions.
func (c ResourceConfig) SupportsVersion(v fhirversion.Version) bool {
	for _, sv := range c.Versions {
		if sv == v {
			return true
		}
	}
	return false
}

// Backend resolves the dedicated storage engine for this resource type,
// defaulting to Postgres when DedicatedBackend is unset. Only meaningful
// when Placement is PlacementDedicated.
func (c ResourceConfig) Backend() DedicatedBackendKind {
	if c.DedicatedBackend == "" {
		return DedicatedBackendPostgres
	}
	return c.DedicatedBackend
}

// SchemaName returns the schema/table identifier to route to, depending on
// placement. The storage router is the only consumer expected to act on it.
func (c ResourceConfig) SchemaName() string {
	if c.Placement == PlacementDedicated {
		return c.DedicatedSchema
	}
	return c.SharedSchema
}

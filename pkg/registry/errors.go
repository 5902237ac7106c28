package registry

import "errors"

var (
	// ErrNoDefaultVersion is returned when a resource config's Versions list
	// does not contain DefaultVersion, violating "exactly one supported
	// version flagged default" (spec section 3).
	ErrNoDefaultVersion = errors.New("registry: resource config has no default version in its supported versions")

	// ErrDuplicateResourceType is returned when a YAML document declares the
	// same resource type twice.
	ErrDuplicateResourceType = errors.New("registry: duplicate resource type in configuration")

	// ErrInvalidSchemaName is returned when a configured schema/table
	// identifier fails the [A-Za-z_][A-Za-z0-9_]* safelist check (spec
	// section 9's design note on dynamic schema names for dedicated storage).
	ErrInvalidSchemaName = errors.New("registry: schema name fails safelist validation")

	// ErrMissingSchemaName is returned when a dedicated placement has no
	// dedicated schema name, or a shared placement has no shared schema name.
	ErrMissingSchemaName = errors.New("registry: schema name required for configured placement")

	// ErrUnknownPlacement is returned for a placement value other than
	// "shared" or "dedicated".
	ErrUnknownPlacement = errors.New("registry: unknown schema placement")

	// ErrUnknownResourceType is returned by Table.Get for an unconfigured
	// resource type.
	ErrUnknownResourceType = errors.New("registry: unknown resource type")

	// ErrUnknownDedicatedBackend is returned for a dedicated_backend value
	// other than "postgres", "mongo", or unset.
	ErrUnknownDedicatedBackend = errors.New("registry: unknown dedicated backend")

	// ErrUnknownSearchBackend is returned for a search_backend value other
	// than "opensearch" or unset.
	ErrUnknownSearchBackend = errors.New("registry: unknown search backend")
)

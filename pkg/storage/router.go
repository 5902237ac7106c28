package storage

import (
	"fmt"

	"github.com/dmitrymomot/fhirgateway/pkg/registry"
)

// Router is the single choke point for schema selection: given a resource
// type's registry configuration, it returns the Backend to use, without
// ever exposing the schema/table name itself to callers (spec section 4.5:
// "The router is the single choke point for schema selection — the
// resource service never sees the schema").
type Router struct {
	shared     Backend
	dedicated  map[string]Backend // keyed by validated schema name
}

// NewRouter builds a Router over a shared backend and a set of dedicated
// backends keyed by their (already-registry-validated) schema name.
func NewRouter(shared Backend, dedicated map[string]Backend) *Router {
	if dedicated == nil {
		dedicated = make(map[string]Backend)
	}
	return &Router{shared: shared, dedicated: dedicated}
}

// Route returns the Backend for cfg's placement, re-validating the schema
// name immediately before use per spec section 9's two-checkpoint guidance
// ("validate each value ... on load and again immediately before use").
func (r *Router) Route(cfg registry.ResourceConfig) (Backend, error) {
	if cfg.Placement == registry.PlacementShared {
		return r.shared, nil
	}

	name := cfg.DedicatedSchema
	if !registry.ValidSchemaName(name) {
		return nil, fmt.Errorf("storage: refusing to route to invalid schema name %q", name)
	}

	backend, ok := r.dedicated[name]
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for dedicated schema %q", name)
	}
	return backend, nil
}

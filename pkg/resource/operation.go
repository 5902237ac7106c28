package resource

import (
	"context"

	"github.com/dmitrymomot/fhirgateway/pkg/conformance"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
)

// Execute dispatches an extended operation (`$op`, spec section 6) to the
// conformance engine. resourceID is empty for a type-level operation. The
// registry is still consulted so an operation against a disabled or
// unversioned resource type fails the same way every other interaction does.
func (s *Service) Execute(ctx context.Context, resourceType string, version fhirversion.Version, resourceID, code string, params map[string][]string, input conformance.Resource) (conformance.Resource, error) {
	cfg, _, err := s.resolveConfig(resourceType, version, nil)
	if err != nil {
		return nil, err
	}

	return s.engine.Execute(ctx, cfg.DefaultVersion, cfg.ResourceType, code, params, input)
}

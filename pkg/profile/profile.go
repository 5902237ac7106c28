// Package profile implements the Profile Validator boundary (C4, spec
// section 1/4.4): "Profile validator internals (terminology, StructureDefinition
// loading): exposed as ProfileValidator.validate(resource, version, profileUrl)
// → Issues[]." This package carries only that contract plus the
// strict/lenient policy the Resource Service (pkg/resource) applies to its
// result — the terminology engine itself is out of scope per spec section 1.
package profile

import (
	"context"

	"github.com/dmitrymomot/fhirgateway/pkg/conformance"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
)

// Validator is the opaque ProfileValidator contract spec section 1 leaves
// external: validate a parsed resource against a single StructureDefinition
// named by profileURL.
type Validator interface {
	Validate(ctx context.Context, resource conformance.Resource, version fhirversion.Version, profileURL string) (conformance.Issues, error)
}

// Mode selects how CREATE/UPDATE react to a failing required profile, per
// the PROFILE_VALIDATOR_ENABLED environment toggle (spec section 6) and the
// strict/lenient contract (spec section 4.4): "if strict, runs C4 and fails
// ... if lenient, logs but proceeds."
type Mode string

const (
	ModeStrict  Mode = "strict"
	ModeLenient Mode = "lenient"
)

// Checker wires a Validator to a resource type's required-profiles list and
// a leniency Mode, giving pkg/resource a single ValidateAll call instead of
// looping over registry.ProfileRequirement itself.
type Checker struct {
	validator Validator
	mode      Mode
	enabled   bool
}

// NewChecker builds a Checker. enabled mirrors PROFILE_VALIDATOR_ENABLED
// (default true per spec section 6); when false, ValidateAll is a no-op
// regardless of mode.
func NewChecker(validator Validator, mode Mode, enabled bool) *Checker {
	if mode == "" {
		mode = ModeStrict
	}
	return &Checker{validator: validator, mode: mode, enabled: enabled}
}

// OnLenientFailure, when set, is invoked once per profile validation failure
// that Mode downgrades to a log instead of an error, so a caller can wire
// its own logger without this package taking a logging dependency.
type OnLenientFailure func(profileURL string, issues conformance.Issues)

// ValidateAll runs validator.Validate for every required profile in
// requirements, per the CREATE/UPDATE contract: a required profile's
// failure is fatal in strict mode (fhirerr.KindInvalid with one Details
// entry per issue); in lenient mode, onLenientFailure (if non-nil) is
// called and validation proceeds. A non-required profile's failure is
// always downgraded to onLenientFailure regardless of Mode — only required
// profiles are eligible to fail the request.
func (c *Checker) ValidateAll(
	ctx context.Context,
	resource conformance.Resource,
	version fhirversion.Version,
	requirements []registry.ProfileRequirement,
	onLenientFailure OnLenientFailure,
) error {
	if !c.enabled || c.validator == nil {
		return nil
	}

	for _, req := range requirements {
		issues, err := c.validator.Validate(ctx, resource, version, req.URL)
		if err != nil {
			return fhirerr.New(fhirerr.KindInternal, "profile validator failed: "+err.Error())
		}
		if !issues.HasError() {
			continue
		}

		if req.Required && c.mode == ModeStrict {
			return fhirerr.New(fhirerr.KindInvalid,
				"resource does not conform to required profile "+req.URL,
				issues.Details()...)
		}

		if onLenientFailure != nil {
			onLenientFailure(req.URL, issues)
		}
	}

	return nil
}

// NoopValidator always reports a clean validation: used when no real
// conformance/terminology engine is wired, so the pipeline can still be
// exercised end-to-end per spec section 1's "opaque ConformanceEngine"
// substitution note.
type NoopValidator struct{}

func (NoopValidator) Validate(context.Context, conformance.Resource, fhirversion.Version, string) (conformance.Issues, error) {
	return nil, nil
}

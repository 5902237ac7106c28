// Package searchparam implements the Search-Param Validator (C5): it
// enforces a resource type's allowlist/denylist search-parameter policy
// from the Resource Registry, per spec section 4.4's SEARCH contract and
// the Resource Configuration's search-param policy in spec section 3.
package searchparam

import (
	"fmt"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
)

// OnDroppedParam, when set, is invoked once per unknown parameter silently
// dropped by Validate under a non-fail-closed policy. SPEC_FULL.md section 9
// resolves the open question left by spec section 9 ("drop silently or
// log-and-drop — ambiguous; pick one and document it") in favor of silent
// drop plus an opt-in hook: the validator itself takes no logging
// dependency, but a caller that wants to log or record metrics on drops can
// supply this hook without changing the validator's own behavior.
type OnDroppedParam func(resourceType, param string)

// Validator enforces C5's allowlist/denylist policy.
type Validator struct {
	onDropped OnDroppedParam
}

// New constructs a Validator. onDropped may be nil.
func New(onDropped OnDroppedParam) *Validator {
	return &Validator{onDropped: onDropped}
}

// Validate checks params against cfg's search-param policy.
//
// When the policy is disabled (cfg.SearchParams.Enabled() is false), every
// parameter is accepted unchanged.
//
// Denylist mode is always fail-closed: a parameter named in common or
// resource-specific fails the whole request with KindBadRequest, matching the
// concrete scenario in spec section 8 ("Observation configured denylist
// {_text, _content, _filter}. GET /Observation?_text=fever → 400").
//
// Allowlist mode's treatment of a parameter outside the list is the
// ambiguity spec section 9 leaves open ("drop silently or log-and-drop").
// SPEC_FULL.md section 9 resolves it: drop silently, no error, but invoke
// onDropped (if set) so a caller can opt into logging or metrics without the
// validator itself taking a logging dependency.
func (v *Validator) Validate(resourceType string, cfg registry.SearchParamPolicy, params map[string][]string) (map[string][]string, error) {
	if !cfg.Enabled() {
		return params, nil
	}

	listed := make(map[string]struct{}, len(cfg.Common)+len(cfg.ResourceSpecific))
	for _, p := range cfg.Common {
		listed[p] = struct{}{}
	}
	for _, p := range cfg.ResourceSpecific {
		listed[p] = struct{}{}
	}

	kept := make(map[string][]string, len(params))
	for name, values := range params {
		_, inList := listed[name]

		switch cfg.Mode {
		case registry.ModeDenylist:
			if inList {
				return nil, fhirerr.New(fhirerr.KindBadRequest, fmt.Sprintf("search parameter %q is denied for %s", name, resourceType))
			}
			kept[name] = values
		case registry.ModeAllowlist:
			if inList {
				kept[name] = values
				continue
			}
			if v.onDropped != nil {
				v.onDropped(resourceType, name)
			}
		default:
			kept[name] = values
		}
	}

	return kept, nil
}

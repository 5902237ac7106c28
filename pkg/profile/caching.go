package profile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/dmitrymomot/fhirgateway/pkg/cache"
	"github.com/dmitrymomot/fhirgateway/pkg/conformance"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
)

// CachingValidator wraps a Validator with an LRU cache keyed on the
// resource's serialized content, its version, and the profile URL. A
// conditional update retried after a 409/412, or a client re-submitting an
// unchanged resource to $validate, hits the same (content, profile) pair
// repeatedly; this avoids re-running the same terminology/StructureDefinition
// check for content this process has already seen.
type CachingValidator struct {
	next  Validator
	cache *cache.LRUCache[string, conformance.Issues]
}

// NewCachingValidator wraps next with an LRU cache holding up to capacity
// distinct (resource, version, profile) results.
func NewCachingValidator(next Validator, capacity int) *CachingValidator {
	return &CachingValidator{next: next, cache: cache.NewLRUCache[string, conformance.Issues](capacity)}
}

func (v *CachingValidator) Validate(ctx context.Context, resource conformance.Resource, version fhirversion.Version, profileURL string) (conformance.Issues, error) {
	key, err := cacheKey(resource, version, profileURL)
	if err != nil {
		return v.next.Validate(ctx, resource, version, profileURL)
	}

	if issues, ok := v.cache.Get(key); ok {
		return issues, nil
	}

	issues, err := v.next.Validate(ctx, resource, version, profileURL)
	if err != nil {
		return issues, err
	}
	v.cache.Put(key, issues)
	return issues, nil
}

func cacheKey(resource conformance.Resource, version fhirversion.Version, profileURL string) (string, error) {
	body, err := json.Marshal(resource)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return string(version) + "|" + profileURL + "|" + hex.EncodeToString(sum[:]), nil
}

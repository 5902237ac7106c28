// Package fhirversion resolves the FHIR version, resource type, and resource
// id encoded in a request path, per spec section 4.1. It recognizes the
// case-insensitive path segments "/r5/" and "/r4b/"; an absent segment means
// the configured default.
package fhirversion

import (
	"strings"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
)

// Version identifies a supported FHIR release.
type Version string

const (
	R5  Version = "r5"
	R4B Version = "r4b"
)

// String implements fmt.Stringer.
func (v Version) String() string { return string(v) }

// Semver returns the major.minor.patch form echoed in the X-FHIR-Version
// response header (spec section 4.1).
func (v Version) Semver() string {
	switch v {
	case R5:
		return "5.0.0"
	case R4B:
		return "4.3.0"
	default:
		return ""
	}
}

// Valid reports whether v is one of the recognized versions.
func (v Version) Valid() bool {
	return v == R5 || v == R4B
}

// Resolved is the outcome of parsing a request path.
type Resolved struct {
	Version       Version
	Explicit      bool
	ResourceType  string
	ResourceID    string
	RemainingPath string
}

// Resolve parses path (e.g. "/r4b/Patient/123" or "/Patient/123") against
// the configured default version. Segment matching is case-insensitive;
// an unrecognized first segment that isn't a known resource type placeholder
// is left to the caller (the remaining path is returned as-is past the
// version token, or the full path when no version token is present).
func Resolve(path string, defaultVersion Version) (Resolved, error) {
	trimmed := strings.Trim(path, "/")
	segments := []string{}
	if trimmed != "" {
		segments = strings.Split(trimmed, "/")
	}

	result := Resolved{Version: defaultVersion}

	if len(segments) > 0 {
		switch strings.ToLower(segments[0]) {
		case string(R5):
			result.Version = R5
			result.Explicit = true
			segments = segments[1:]
		case string(R4B):
			result.Version = R4B
			result.Explicit = true
			segments = segments[1:]
		default:
			if looksLikeVersionSegment(segments[0]) {
				return Resolved{}, fhirerr.New(fhirerr.KindBadRequest, "unknown FHIR version: "+segments[0])
			}
		}
	}

	if !result.Version.Valid() {
		return Resolved{}, fhirerr.New(fhirerr.KindBadRequest, "unknown FHIR version")
	}

	if len(segments) > 0 {
		result.ResourceType = segments[0]
	}
	if len(segments) > 1 {
		result.ResourceID = segments[1]
	}
	result.RemainingPath = "/" + strings.Join(segments, "/")

	return result, nil
}

// looksLikeVersionSegment distinguishes a malformed version token ("/r4/")
// from a resource type segment ("/Patient/"): both are lowercase-ish short
// tokens, so we key off the "r" + digit shape used by every real FHIR
// version code.
func looksLikeVersionSegment(segment string) bool {
	lower := strings.ToLower(segment)
	if len(lower) < 2 || lower[0] != 'r' {
		return false
	}
	return lower[1] >= '0' && lower[1] <= '9'
}

// SupportsVersion checks a resource type's supported-version list (loaded
// from the Resource Registry) against the resolved version, returning a
// KindBadRequest error on mismatch (spec section 4.1).
func SupportsVersion(supported []Version, v Version) error {
	for _, s := range supported {
		if s == v {
			return nil
		}
	}
	return fhirerr.New(fhirerr.KindBadRequest, "resource type does not support FHIR version "+v.String())
}

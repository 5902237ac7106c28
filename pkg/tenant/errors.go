package tenant

import "errors"

// Store-level sentinel errors. The Resolver translates these into
// fhirerr.Kind values at the C2 boundary (spec section 4.2); they are not
// surfaced to callers directly.
var (
	// ErrNotFound is returned by a Store when no tenant matches the GUID.
	ErrNotFound = errors.New("tenant not found")

	// ErrNoTenantInContext is returned when ambient storage holds no tenant id.
	ErrNoTenantInContext = errors.New("no tenant in context")
)

package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ValidationError represents field validation errors, keyed by field name.
// Built on url.Values so it composes with the stdlib's multi-value-per-key
// handling instead of inventing another map shape.
type ValidationError url.Values

// Error implements the error interface.
func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "Validation failed"
	}

	var parts []string
	for field, messages := range e {
		if len(messages) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", field, messages[0]))
		}
	}
	return fmt.Sprintf("validation error: %s", strings.Join(parts, ", "))
}

// NewValidationError creates an empty ValidationError ready for Add calls.
func NewValidationError() ValidationError {
	return make(ValidationError)
}

// Add adds an error message for a field.
func (e ValidationError) Add(field, message string) {
	url.Values(e).Add(field, message)
}

// Get returns the first error message for a field.
func (e ValidationError) Get(field string) string {
	return url.Values(e).Get(field)
}

// Has reports whether a field has any errors.
func (e ValidationError) Has(field string) bool {
	return len(e[field]) > 0
}

// IsEmpty reports whether there are no validation errors.
func (e ValidationError) IsEmpty() bool {
	return len(e) == 0
}

// HTTPError is an error carrying its own HTTP status code, checked first by
// classifyError so callers can control the rendered status directly.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string { return e.Key }

// NewHTTPError builds an HTTPError from a status code and message.
func NewHTTPError(code int, key string) HTTPError {
	return HTTPError{Code: code, Key: key}
}

// Common HTTPError values used by handlers outside the FHIR surface, which
// renders its own OperationOutcome bodies through pkg/fhirerr instead.
var (
	ErrBadRequest   = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUnauthorized = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrNotFound     = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict     = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrInternal     = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
)

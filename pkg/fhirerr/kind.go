// Package fhirerr carries error kinds across the pipeline boundary and maps
// them to HTTP status codes and OperationOutcome bodies. Components never
// return HTTP codes directly; only the request pipeline (internal/api)
// converts a Kind into a response, following the propagation policy in
// spec section 7: "the resource service and validators surface error kinds,
// never HTTP codes."
package fhirerr

// Kind classifies a failure independent of any transport concern.
type Kind string

const (
	KindInvalid     Kind = "invalid"
	KindStructure   Kind = "structure"
	KindRequired    Kind = "required"
	KindCodeInvalid Kind = "code-invalid"
	KindNotFound    Kind = "not-found"
	KindGone        Kind = "gone"
	// KindConflict is a generic 409, e.g. a duplicate identifier raised by a
	// business plugin.
	KindConflict Kind = "conflict"
	// KindPreconditionFailed is the strict If-Match mismatch on UPDATE (412),
	// resolved in SPEC_FULL.md section 9 to always fire when If-Match is present.
	KindPreconditionFailed Kind = "precondition-failed"
	KindNotSupported       Kind = "not-supported"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindBadRequest         Kind = "bad-request"
	KindInternal           Kind = "internal"
)

// Error is the value every component in the pipeline returns on failure.
// Message is safe to surface to a caller; Details carries optional
// per-field or per-issue detail used when building an OperationOutcome.
type Error struct {
	Kind    Kind
	Message string
	Details []string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// New constructs an Error of the given kind.
func New(kind Kind, message string, details ...string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Is allows errors.Is(err, fhirerr.ErrNotFound)-style checks: two *Error
// values match when their Kind fields are equal, whatever their messages.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel errors for errors.Is comparisons against well-known kinds,
// e.g. errors.Is(err, fhirerr.ErrNotFound).
var (
	ErrInvalid            = &Error{Kind: KindInvalid}
	ErrStructure          = &Error{Kind: KindStructure}
	ErrRequired           = &Error{Kind: KindRequired}
	ErrCodeInvalid        = &Error{Kind: KindCodeInvalid}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrGone               = &Error{Kind: KindGone}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}
	ErrNotSupported       = &Error{Kind: KindNotSupported}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrBadRequest         = &Error{Kind: KindBadRequest}
	ErrInternal           = &Error{Kind: KindInternal}
)

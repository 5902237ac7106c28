package fhirerr

import "net/http"

// StatusFor maps a Kind to the HTTP status code from spec section 7.
func StatusFor(kind Kind) int {
	switch kind {
	case KindInvalid, KindStructure, KindRequired, KindCodeInvalid:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindGone:
		return http.StatusGone
	case KindConflict:
		return http.StatusConflict
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindNotSupported:
		return http.StatusMethodNotAllowed
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Issue is one entry of an OperationOutcome.issue array.
type Issue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

// OperationOutcome is the FHIR resource returned as the body of every
// failed request, per spec section 6: "Responses for failures are an
// OperationOutcome resource with one issue per problem."
type OperationOutcome struct {
	ResourceType string  `json:"resourceType"`
	Issue        []Issue `json:"issue"`
}

// issueCodeFor maps a Kind to the FHIR IssueType code vocabulary.
func issueCodeFor(kind Kind) string {
	switch kind {
	case KindInvalid, KindStructure:
		return "structure"
	case KindRequired:
		return "required"
	case KindCodeInvalid:
		return "code-invalid"
	case KindNotFound:
		return "not-found"
	case KindGone:
		return "deleted"
	case KindConflict, KindPreconditionFailed:
		return "conflict"
	case KindNotSupported:
		return "not-supported"
	case KindUnauthorized:
		return "login"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "invalid"
	default:
		return "exception"
	}
}

func severityFor(kind Kind) string {
	if kind == KindInternal {
		return "fatal"
	}
	return "error"
}

// ToOperationOutcome builds the OperationOutcome body for err. If err is not
// a *Error, it is treated as an opaque internal error.
func ToOperationOutcome(err error) (OperationOutcome, int) {
	fe, ok := err.(*Error)
	if !ok {
		fe = &Error{Kind: KindInternal, Message: "internal error"}
	}

	issues := []Issue{{
		Severity:    severityFor(fe.Kind),
		Code:        issueCodeFor(fe.Kind),
		Diagnostics: fe.Message,
	}}
	for _, d := range fe.Details {
		issues = append(issues, Issue{
			Severity:    severityFor(fe.Kind),
			Code:        issueCodeFor(fe.Kind),
			Diagnostics: d,
		})
	}

	return OperationOutcome{ResourceType: "OperationOutcome", Issue: issues}, StatusFor(fe.Kind)
}

// Package validator provides the small set of composable, type-safe
// validation helpers the admin tenant-management surface needs
// (internal/api/admin.go): required-field and regex-pattern rules over
// strings.
//
// Declarative validation builds small Rule values that encapsulate a boolean
// Check function together with rich, translation-friendly error metadata.
// Rules are evaluated with the Apply helper which aggregates any failures
// into a ValidationErrors slice that satisfies the error interface, making it
// convenient to bubble up multiple field-specific problems in a single error
// return.
//
// # Usage
//
//	err := validator.Apply(
//	    validator.RequiredString("code", req.Code),
//	    validator.MatchesRegex("code", req.Code, `^[a-z0-9][a-z0-9-]{1,62}$`, "lowercase alphanumeric with hyphens"),
//	)
//	if err != nil {
//	    var fieldErrs validator.ValidationErrors
//	    errors.As(err, &fieldErrs)
//	    // iterate over field-level messages
//	}
//
// This package intentionally does not carry the teacher's broader rule
// families (numeric, date, UUID, password-strength, financial, collection,
// choice, identifier, format rules): nothing in this gateway validates those
// shapes, so they are not reproduced here. See DESIGN.md for the trim
// rationale.
package validator

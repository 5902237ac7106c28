// Package api implements the Request Pipeline (C9, spec section 4.6): the
// go-chi/chi/v5-mounted HTTP surface that composes version resolution (C3),
// tenant resolution (C2), the plugin orchestrator (C8), and the resource
// service (C7) into the per-request control flow, converting internal
// error kinds into HTTP status codes at this one boundary (spec section 7).
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/logger"
	"github.com/dmitrymomot/fhirgateway/pkg/requestid"
)

// writeError converts err into an OperationOutcome response, per spec
// section 7's propagation policy: "the pipeline maps kinds to status codes
// and composes an OperationOutcome for the response body." This is the only
// place in the module allowed to make that conversion.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	outcome, status := fhirerr.ToOperationOutcome(err)

	if status >= http.StatusInternalServerError {
		log.LogAttrs(r.Context(), slog.LevelError, "fhir request failed",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status", status),
			slog.String("path", r.URL.Path),
		)
	}

	writeJSON(w, status, outcome)
}

// writeJSON writes body as a FHIR-flavored JSON response (application/fhir+json,
// per spec section 6's "canonical FHIR JSON" wire format).
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/fhir+json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// tenantErrorHandler adapts writeError to tenant.ErrorHandler/Middleware's
// signature, used before a *slog.Logger-carrying API value exists for the
// tenant-resolution middleware itself.
func tenantErrorHandler(log *slog.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, r, log, err)
	}
}

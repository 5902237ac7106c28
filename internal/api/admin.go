package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/fhirgateway/handler"
	"github.com/dmitrymomot/fhirgateway/pkg/binder"
	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
	"github.com/dmitrymomot/fhirgateway/pkg/validator"
)

// AdminAPI implements the small administrative surface outside /fhir (spec
// section 6): tenant CRUD plus secret rotation. Every mutation invalidates
// the tenant resolver's cache, per spec section 4.2's cache-invalidation
// contract. Handlers are built with handler.Wrap rather than the manual
// writeJSON/writeError helpers internal/api uses for /fhir, since this
// surface has no OperationOutcome contract to honor.
type AdminAPI struct {
	Store    tenant.Store
	Resolver *tenant.Resolver
	Logger   *slog.Logger
}

func (a *AdminAPI) errorHandler() handler.ErrorHandler[handler.Context] {
	return handler.NewErrorHandler(a.logger())
}

func (a *AdminAPI) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

type emptyRequest struct{}

type idRequest struct {
	ID string `path:"id"`
}

func (r idRequest) guid() (uuid.UUID, error) {
	return uuid.Parse(r.ID)
}

type createTenantRequest struct {
	Code        string         `json:"code"`
	DisplayName string         `json:"display_name"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// List handles GET /api/admin/tenants.
func (a *AdminAPI) List() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[handler.Context, emptyRequest](
		func(ctx handler.Context, _ emptyRequest) handler.Response {
			recs, err := a.Store.List(ctx.Request().Context())
			if err != nil {
				return handler.JSONError(handler.NewHTTPError(http.StatusInternalServerError, "failed to list tenants"))
			}
			return handler.JSON(recs)
		},
	), handler.WithErrorHandler[handler.Context, emptyRequest](a.errorHandler()))
}

// Create handles POST /api/admin/tenants.
func (a *AdminAPI) Create() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[handler.Context, createTenantRequest](
		func(ctx handler.Context, req createTenantRequest) handler.Response {
			if err := validator.Apply(
				validator.RequiredString("code", req.Code),
				validator.MatchesRegex("code", req.Code, `^[a-z0-9][a-z0-9-]{1,62}$`, "lowercase alphanumeric with hyphens"),
				validator.RequiredString("display_name", req.DisplayName),
			); err != nil {
				return handler.JSONError(toValidationError(err))
			}

			rec := &tenant.Record{
				GUID:        uuid.New(),
				InternalID:  req.Code,
				Code:        req.Code,
				DisplayName: req.DisplayName,
				Enabled:     true,
				Settings:    req.Settings,
			}
			if err := a.Store.Create(ctx.Request().Context(), rec); err != nil {
				return handler.JSONError(handler.NewHTTPError(http.StatusInternalServerError, "failed to create tenant"))
			}
			return handler.JSON(rec, handler.WithJSONStatus(http.StatusCreated))
		},
	), handler.WithBinders[handler.Context, createTenantRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, createTenantRequest](a.errorHandler()))
}

// setEnabled handles both enable and disable, differing only in the
// target state, per spec section 6's "enabling/disabling/deleting tenants".
func (a *AdminAPI) setEnabled(enabled bool) http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[handler.Context, idRequest](
		func(ctx handler.Context, req idRequest) handler.Response {
			guid, err := req.guid()
			if err != nil {
				return handler.JSONError(handler.NewHTTPError(http.StatusBadRequest, "invalid tenant id"))
			}

			rec, err := a.Store.GetByGUID(ctx.Request().Context(), guid)
			if err != nil {
				return handler.JSONError(toTenantNotFoundHTTP(err))
			}
			rec.Enabled = enabled
			if err := a.Store.Update(ctx.Request().Context(), rec); err != nil {
				return handler.JSONError(handler.NewHTTPError(http.StatusInternalServerError, "failed to update tenant"))
			}

			_ = a.Resolver.InvalidateCache(ctx.Request().Context(), guid)
			return handler.JSON(rec)
		},
	), handler.WithBinders[handler.Context, idRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, idRequest](a.errorHandler()))
}

// Enable handles POST /api/admin/tenants/{id}/enable.
func (a *AdminAPI) Enable() http.HandlerFunc { return a.setEnabled(true) }

// Disable handles POST /api/admin/tenants/{id}/disable.
func (a *AdminAPI) Disable() http.HandlerFunc { return a.setEnabled(false) }

// Delete handles DELETE /api/admin/tenants/{id}.
func (a *AdminAPI) Delete() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[handler.Context, idRequest](
		func(ctx handler.Context, req idRequest) handler.Response {
			guid, err := req.guid()
			if err != nil {
				return handler.JSONError(handler.NewHTTPError(http.StatusBadRequest, "invalid tenant id"))
			}
			if err := a.Store.Delete(ctx.Request().Context(), guid); err != nil {
				return handler.JSONError(toTenantNotFoundHTTP(err))
			}
			_ = a.Resolver.InvalidateCache(ctx.Request().Context(), guid)
			return handler.Empty()
		},
	), handler.WithBinders[handler.Context, idRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, idRequest](a.errorHandler()))
}

// RotateSecret handles POST /api/admin/tenants/{id}/rotate-secret
// (SPEC_FULL.md section 6): generates and bcrypt-hashes a fresh tenant API
// secret, persists only the hash, and returns the plaintext exactly once.
func (a *AdminAPI) RotateSecret() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[handler.Context, idRequest](
		func(ctx handler.Context, req idRequest) handler.Response {
			guid, err := req.guid()
			if err != nil {
				return handler.JSONError(handler.NewHTTPError(http.StatusBadRequest, "invalid tenant id"))
			}

			rec, err := a.Store.GetByGUID(ctx.Request().Context(), guid)
			if err != nil {
				return handler.JSONError(toTenantNotFoundHTTP(err))
			}

			plaintext, hash, err := tenant.RotateSecret()
			if err != nil {
				return handler.JSONError(handler.NewHTTPError(http.StatusInternalServerError, "failed to rotate secret"))
			}
			rec.SecretHash = hash
			if err := a.Store.Update(ctx.Request().Context(), rec); err != nil {
				return handler.JSONError(handler.NewHTTPError(http.StatusInternalServerError, "failed to persist rotated secret"))
			}

			_ = a.Resolver.InvalidateCache(ctx.Request().Context(), guid)
			return handler.JSON(map[string]string{"secret": plaintext})
		},
	), handler.WithBinders[handler.Context, idRequest](binder.Path(chi.URLParam)),
		handler.WithErrorHandler[handler.Context, idRequest](a.errorHandler()))
}

func toTenantNotFoundHTTP(err error) handler.HTTPError {
	if errors.Is(err, tenant.ErrNotFound) {
		return handler.NewHTTPError(http.StatusNotFound, "tenant not found")
	}
	return handler.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func toValidationError(err error) handler.ValidationError {
	ve := handler.NewValidationError()
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			ve.Add(fe.Field, fe.Message)
		}
		return ve
	}
	ve.Add("_", err.Error())
	return ve
}

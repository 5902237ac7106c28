package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/fhirgateway/pkg/environment"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/plugin"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
	"github.com/dmitrymomot/fhirgateway/pkg/requestid"
	"github.com/dmitrymomot/fhirgateway/pkg/resource"
	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
)

// Router wires the whole HTTP surface: /fhir/* (tenant-scoped), /fhir/metadata
// (server-wide), and /api/admin/tenants (tenant-administrative), grounded on
// the teacher's chi-based mounting in cmd/ (spec section 6).
func Router(a *API, admin *AdminAPI, resolver *tenant.Resolver, env environment.Environment, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(environment.Middleware(string(env)))

	errHandler := tenantErrorHandler(log)

	r.Get("/fhir/metadata", a.HandleMetadata)
	r.Get("/fhir/{version}/metadata", a.HandleMetadata)

	r.Route("/fhir", func(r chi.Router) {
		r.Use(tenant.Middleware(resolver, errHandler, "/fhir/metadata"))
		r.Handle("/*", http.HandlerFunc(a.ServeFHIR))
	})

	r.Route("/api/admin/tenants", func(r chi.Router) {
		r.Get("/", admin.List())
		r.Post("/", admin.Create())
		r.Post("/{id}/enable", admin.Enable())
		r.Post("/{id}/disable", admin.Disable())
		r.Post("/{id}/rotate-secret", admin.RotateSecret())
		r.Delete("/{id}", admin.Delete())
	})

	return r
}

// New builds the API value from its collaborators; kept separate from
// Router so callers can unit test ServeFHIR without a chi mux in the way.
func New(
	resources *resource.Service,
	orchestrator *plugin.Orchestrator,
	reg *registry.Registry,
	defaultVersion fhirversion.Version,
	log *slog.Logger,
) *API {
	return &API{
		Resources:      resources,
		Orchestrator:   orchestrator,
		Registry:       reg,
		DefaultVersion: defaultVersion,
		Logger:         log,
	}
}

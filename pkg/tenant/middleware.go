package tenant

import (
	"net/http"
	"strings"
)

// ErrorHandler renders a resolution failure. The request pipeline supplies
// the implementation that converts a *fhirerr.Error's Kind into an HTTP
// status and OperationOutcome body (spec section 7) — this package never
// performs that conversion itself.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware builds HTTP middleware wiring the Tenant Resolver (C2) into
// the request pipeline: it resolves the tenant for every request not in
// skipPaths and places the Record into ambient context via WithTenant. On
// resolution failure it hands the error to errorHandler rather than
// writing a response itself.
func Middleware(resolver *Resolver, errorHandler ErrorHandler, skipPaths ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			rec, err := resolver.Resolve(r)
			if err != nil {
				errorHandler(w, r, err)
				return
			}

			ctx := WithTenant(r.Context(), rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant creates middleware that fails closed if no tenant is
// present in the context — a defensive check for routes mounted outside
// the normal pipeline ordering.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec, ok := FromContext(r.Context())
			if !ok || rec == nil {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

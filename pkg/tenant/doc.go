// Package tenant implements the Tenant Resolver (C2): it maps an external
// tenant GUID, carried on a configurable request header, to the short
// internal id used as the partition value in every stored resource.
//
// # Architecture
//
// A Store persists the GUID to Record mapping and backs the admin tenant
// CRUD surface. A Resolver wraps a Store with a no-TTL mapping Cache and
// implements the resolution contract: multi-tenancy can be disabled
// entirely (every request resolves to the default tenant, no header
// check), or enabled, in which case a missing header, an unparseable
// GUID, an unknown GUID, or a disabled tenant all fail the request before
// any resource code runs.
//
// # Usage
//
//	resolver := tenant.NewResolver(store, tenant.WithHeaderName("X-Tenant-ID"))
//	mw := tenant.Middleware(resolver, pipelineErrorHandler, "/fhir/metadata")
//	router.Use(mw)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		id := tenant.MustInternalIDFromContext(r.Context())
//		// id partitions every storage call for this request
//	}
//
// # Propagation policy
//
// Resolve never writes an HTTP response and never picks a status code; it
// returns *fhirerr.Error values exclusively. Only the request pipeline
// converts a Kind into a status and OperationOutcome body. Middleware
// follows the same rule: failures are handed to the caller-supplied
// ErrorHandler, not rendered here.
//
// # Caching
//
// The mapping cache holds only tenants that resolved successfully and are
// enabled; not-found and disabled lookups are never cached. Entries carry
// no TTL and are invalidated only by explicit admin action — InvalidateCache
// after an edit, ClearCache for a bulk change. The default cache is an
// in-process map; NewNoOpCache disables caching for tests that want to
// exercise the Store on every call.
package tenant

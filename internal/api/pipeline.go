package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/plugin"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
	"github.com/dmitrymomot/fhirgateway/pkg/requestid"
	"github.com/dmitrymomot/fhirgateway/pkg/resource"
	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
)

// maxBodyBytes bounds a FHIR request body, guarding against an unbounded
// read on a malicious or misbehaving client.
const maxBodyBytes = 10 << 20

// API wires the Request Pipeline (C9) together: version resolution (C3),
// the plugin orchestrator (C8), and the resource service (C7). Tenant
// resolution (C2) happens one layer up, as tenant.Middleware — by the time
// a request reaches ServeFHIR, the tenant record is already in context.
type API struct {
	Resources      *resource.Service
	Orchestrator   *plugin.Orchestrator
	Registry       *registry.Registry
	DefaultVersion fhirversion.Version
	Logger         *slog.Logger
}

// ServeFHIR implements the full per-request control flow from spec section
// 4.6 for every route under the /fhir prefix except /fhir/metadata.
func (a *API) ServeFHIR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := a.logger()

	path := strings.TrimPrefix(r.URL.Path, "/fhir")
	resolved, err := fhirversion.Resolve(path, a.DefaultVersion)
	if err != nil {
		writeError(w, r, log, err)
		return
	}
	w.Header().Set("X-FHIR-Version", resolved.Version.Semver())

	segments := splitPath(resolved.RemainingPath)
	if len(segments) == 0 {
		writeError(w, r, log, fhirerr.New(fhirerr.KindNotFound, "resource type required"))
		return
	}
	resourceType := segments[0]

	op, err := parseOperation(r.Method, segments[1:])
	if err != nil {
		writeError(w, r, log, err)
		return
	}

	queryParams := r.URL.Query()

	var input []byte
	if op.HasBody {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		input, err = io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, log, fhirerr.New(fhirerr.KindStructure, "failed to read request body: "+err.Error()))
			return
		}
	}

	if op.Type == plugin.OpSearch && op.HasBody {
		if parsed, err := url.ParseQuery(string(input)); err == nil {
			for k, v := range parsed {
				queryParams[k] = append(queryParams[k], v...)
			}
		}
	}

	pc := &plugin.Context{
		RequestID:     requestid.FromContext(ctx),
		OperationType: op.Type,
		Version:       string(resolved.Version),
		ResourceType:  resourceType,
		ResourceID:    op.ResourceID,
		OperationCode: op.OpCode,
		QueryParams:   queryParams,
		Input:         input,
		TenantID:      tenant.MustInternalIDFromContext(ctx),
		Attributes: map[string]any{
			// The free-form attribute bag (spec section 3) is how ambient
			// request metadata the core Context doesn't name a field for
			// reaches plugins — e.g. an authn plugin reading the raw
			// Authorization header (examples/plugins.BearerAuthPlugin).
			"authorization_header": r.Header.Get("Authorization"),
		},
	}

	decision, err := a.Orchestrator.Before(ctx, pc)
	if err != nil {
		_ = a.Orchestrator.OnError(ctx, pc, err)
		writeError(w, r, log, err)
		return
	}
	if decision.Kind == plugin.DecisionAbort {
		// Step 4 of spec section 4.6: the abort still runs AFTER with the
		// abort recorded, so telemetry plugins observe this request too.
		_ = a.Orchestrator.After(ctx, pc)
		writeJSON(w, decision.AbortStatus, decision.AbortOutcome)
		return
	}

	respond, opErr := a.callCore(ctx, op, resourceType, resolved.Version, r, pc)
	if opErr != nil {
		_ = a.Orchestrator.OnError(ctx, pc, opErr)
		writeError(w, r, log, opErr)
		return
	}

	_ = a.Orchestrator.After(ctx, pc)
	respond(w)
}

// callCore invokes the resource-service method matching op.Type, recording
// its output on pc for the AFTER phase (spec section 4.6 step 5) and
// returning a closure that renders the HTTP response once AFTER has run.
func (a *API) callCore(ctx context.Context, op operation, resourceType string, version fhirversion.Version, r *http.Request, pc *plugin.Context) (func(http.ResponseWriter), error) {
	switch op.Type {
	case plugin.OpCreate:
		res, err := a.Resources.Create(ctx, resourceType, version, pc.Input)
		if err != nil {
			return nil, err
		}
		pc.Output = res.Content
		return func(w http.ResponseWriter) { renderVersion(w, resourceType, res, http.StatusCreated) }, nil

	case plugin.OpRead:
		res, err := a.Resources.Read(ctx, resourceType, version, op.ResourceID)
		if err != nil {
			return nil, err
		}
		pc.Output = res.Content
		return func(w http.ResponseWriter) { renderVersion(w, resourceType, res, http.StatusOK) }, nil

	case plugin.OpVRead:
		res, err := a.Resources.VRead(ctx, resourceType, version, op.ResourceID, op.VersionID)
		if err != nil {
			return nil, err
		}
		if res.IsDeleted {
			return nil, fhirerr.New(fhirerr.KindGone, "this version has been deleted")
		}
		pc.Output = res.Content
		return func(w http.ResponseWriter) { renderVersion(w, resourceType, res, http.StatusOK) }, nil

	case plugin.OpUpdate:
		res, err := a.Resources.Update(ctx, resourceType, version, op.ResourceID, pc.Input, r.Header.Get("If-Match"))
		if err != nil {
			return nil, err
		}
		pc.Output = res.Content
		status := http.StatusOK
		if res.VersionID == 1 && !res.CreatedAt.IsZero() {
			status = http.StatusCreated
		}
		return func(w http.ResponseWriter) { renderVersion(w, resourceType, res, status) }, nil

	case plugin.OpPatch:
		res, err := a.Resources.Patch(ctx, resourceType, version, op.ResourceID, pc.Input, r.Header.Get("If-Match"))
		if err != nil {
			return nil, err
		}
		pc.Output = res.Content
		return func(w http.ResponseWriter) { renderVersion(w, resourceType, res, http.StatusOK) }, nil

	case plugin.OpDelete:
		res, err := a.Resources.Delete(ctx, resourceType, version, op.ResourceID)
		if err != nil {
			return nil, err
		}
		return func(w http.ResponseWriter) {
			w.Header().Set("ETag", res.ETag())
			w.Header().Set("Last-Modified", res.LastUpdated.UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusNoContent)
		}, nil

	case plugin.OpSearch:
		bundle, err := a.Resources.Search(ctx, resourceType, version, pc.QueryParams, r.URL)
		if err != nil {
			return nil, err
		}
		pc.Output, _ = json.Marshal(bundle)
		return func(w http.ResponseWriter) { writeJSON(w, http.StatusOK, bundle) }, nil

	case plugin.OpHistory:
		bundle, err := a.Resources.History(ctx, resourceType, version, op.ResourceID, r.URL)
		if err != nil {
			return nil, err
		}
		pc.Output, _ = json.Marshal(bundle)
		return func(w http.ResponseWriter) { writeJSON(w, http.StatusOK, bundle) }, nil

	case plugin.OpOperation:
		out, err := a.Resources.Execute(ctx, resourceType, version, op.ResourceID, op.OpCode, pc.QueryParams, pc.Input)
		if err != nil {
			return nil, err
		}
		pc.Output = out
		return func(w http.ResponseWriter) { writeJSON(w, http.StatusOK, json.RawMessage(out)) }, nil
	}

	return nil, fhirerr.New(fhirerr.KindInternal, fmt.Sprintf("unhandled operation type %q", op.Type))
}

func renderVersion(w http.ResponseWriter, resourceType string, res resource.VersionResult, status int) {
	w.Header().Set("ETag", res.ETag())
	w.Header().Set("Last-Modified", res.LastUpdated.UTC().Format(http.TimeFormat))
	if status == http.StatusCreated {
		w.Header().Set("Location", fmt.Sprintf("%s/%s", resourceType, res.ResourceID))
	}
	writeJSON(w, status, json.RawMessage(res.Content))
}

func (a *API) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

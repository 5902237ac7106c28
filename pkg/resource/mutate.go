package resource

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fhirgateway/pkg/conformance"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
	"github.com/dmitrymomot/fhirgateway/pkg/storage"
)

// ParseIfMatch extracts the version id from an If-Match header value of the
// form `W/"n"` (spec section 6). ok is false when header is empty or
// unparseable — callers treat an unparseable non-empty header as a no-op
// per the "expected at natural checkpoints" leniency rather than a hard
// error, since §4.4 only specifies behavior for a *present, parseable* token.
func ParseIfMatch(header string) (versionID int64, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	header = strings.TrimPrefix(header, "W/")
	header = strings.Trim(header, `"`)
	v, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Update implements UPDATE (spec section 4.4): computes newVersionId =
// max(current, 0)+1, optionally enforces If-Match, and atomically flips the
// prior current row while inserting the new one.
//
// If-Match is enforced whenever present (SPEC_FULL.md section 9's
// resolution of the open question): a mismatch always yields
// fhirerr.KindPreconditionFailed (412), regardless of any other leniency
// setting, since optimistic concurrency is a correctness property.
func (s *Service) Update(ctx context.Context, resourceType string, version fhirversion.Version, id string, body conformance.Resource, ifMatch string) (VersionResult, error) {
	cfg, backend, err := s.resolveConfig(resourceType, version, func(i registry.Interactions) bool { return i.Update })
	if err != nil {
		return VersionResult{}, err
	}
	return s.update(ctx, cfg, backend, id, body, ifMatch)
}

func (s *Service) update(ctx context.Context, cfg registry.ResourceConfig, backend storage.Backend, id string, body conformance.Resource, ifMatch string) (VersionResult, error) {
	tid := tenantID(ctx)

	exists, err := backend.Exists(ctx, tid, cfg.ResourceType, id)
	if err != nil {
		return VersionResult{}, fhirerr.New(fhirerr.KindInternal, "failed to check resource existence: "+err.Error())
	}
	if !exists {
		if !cfg.UpdatesAsCreate {
			return VersionResult{}, fhirerr.New(fhirerr.KindNotFound, "resource not found")
		}
		if wantVersion, ok := ParseIfMatch(ifMatch); ok && wantVersion != 0 {
			return VersionResult{}, fhirerr.New(fhirerr.KindPreconditionFailed, "If-Match does not match: resource does not exist")
		}
		return s.create(ctx, cfg, backend, id, body)
	}

	maxVersion, err := backend.MaxVersionID(ctx, tid, cfg.ResourceType, id)
	if err != nil {
		return VersionResult{}, fhirerr.New(fhirerr.KindInternal, "failed to read current version: "+err.Error())
	}
	if wantVersion, ok := ParseIfMatch(ifMatch); ok && wantVersion != maxVersion {
		return VersionResult{}, fhirerr.New(fhirerr.KindPreconditionFailed,
			"If-Match version does not match the current resource version")
	}

	if _, err := s.engine.ResourceType(body); err != nil {
		return VersionResult{}, err
	}
	if issues, err := s.engine.Validate(ctx, cfg.DefaultVersion, body); err != nil {
		return VersionResult{}, err
	} else if issues.HasError() {
		return VersionResult{}, fhirerr.New(fhirerr.KindStructure, "resource failed conformance validation", issues.Details()...)
	}
	if err := s.profiles.ValidateAll(ctx, body, cfg.DefaultVersion, cfg.Profiles, s.onLenientProfileFailure); err != nil {
		return VersionResult{}, err
	}

	newVersionID := maxVersion + 1
	now := s.now()

	content, err := s.engine.SetMeta(body, conformance.Meta{VersionID: strconv.FormatInt(newVersionID, 10), LastUpdated: now})
	if err != nil {
		return VersionResult{}, err
	}

	rowContent, sourceURI, err := s.maybeExternalize(ctx, cfg, tid, id, newVersionID, content)
	if err != nil {
		return VersionResult{}, err
	}

	rec := storage.Record{
		ID:           uuid.NewString(),
		TenantID:     tid,
		ResourceType: cfg.ResourceType,
		ResourceID:   id,
		FHIRVersion:  string(cfg.DefaultVersion),
		VersionID:    newVersionID,
		IsCurrent:    true,
		IsDeleted:    false,
		Content:      rowContent,
		SourceURI:    sourceURI,
		LastUpdated:  now,
	}
	if err := backend.SaveAsNewCurrent(ctx, rec); err != nil {
		return VersionResult{}, fhirerr.New(fhirerr.KindInternal, "failed to persist resource: "+err.Error())
	}
	s.indexRecord(ctx, rec)

	return VersionResult{ResourceID: id, VersionID: newVersionID, LastUpdated: now, Content: content}, nil
}

// Delete implements DELETE (spec section 4.4): soft-delete sets
// is_deleted=true on the current row and never removes it physically.
// Idempotent: deleting an already-deleted resource is a no-op success;
// deleting a resource with no row at all is NotFound.
func (s *Service) Delete(ctx context.Context, resourceType string, version fhirversion.Version, id string) (VersionResult, error) {
	cfg, backend, err := s.resolveConfig(resourceType, version, func(i registry.Interactions) bool { return i.Delete })
	if err != nil {
		return VersionResult{}, err
	}

	tid := tenantID(ctx)
	existing, err := backend.FindCurrent(ctx, tid, cfg.ResourceType, id)
	if err != nil {
		return VersionResult{}, toNotFoundIfMissing(err)
	}

	if existing.IsDeleted {
		return VersionResult{ResourceID: id, VersionID: existing.VersionID, LastUpdated: existing.LastUpdated, IsDeleted: true}, nil
	}

	now := s.now()
	if err := backend.SoftDelete(ctx, tid, cfg.ResourceType, id, now); err != nil {
		return VersionResult{}, toNotFoundIfMissing(err)
	}
	s.deindexRecord(ctx, cfg.ResourceType, tid, id)

	return VersionResult{ResourceID: id, VersionID: existing.VersionID, LastUpdated: now, IsDeleted: true}, nil
}

// Patch implements PATCH (spec section 4.4): applies a JSON Patch document
// to the current content via the conformance engine, then proceeds exactly
// like Update. Rejected as NotSupported when the resource configuration
// disables patch.
func (s *Service) Patch(ctx context.Context, resourceType string, version fhirversion.Version, id string, patch json.RawMessage, ifMatch string) (VersionResult, error) {
	cfg, backend, err := s.resolveConfig(resourceType, version, func(i registry.Interactions) bool { return i.Patch })
	if err != nil {
		return VersionResult{}, err
	}

	tid := tenantID(ctx)
	existing, err := backend.FindCurrent(ctx, tid, cfg.ResourceType, id)
	if err != nil {
		return VersionResult{}, toNotFoundIfMissing(err)
	}
	if existing.IsDeleted {
		return VersionResult{}, fhirerr.New(fhirerr.KindNotFound, "resource not found")
	}

	content, err := s.resolveContent(ctx, existing)
	if err != nil {
		return VersionResult{}, err
	}

	patched, err := s.engine.ApplyPatch(content, patch)
	if err != nil {
		return VersionResult{}, err
	}

	return s.update(ctx, cfg, backend, id, patched, ifMatch)
}

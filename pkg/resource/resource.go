// Package resource implements the Resource Service (C7, spec section 4.4):
// the component that owns FHIR versioning, optimistic concurrency, soft
// delete, history, and search-bundle assembly on top of the Storage Router
// (pkg/storage). It is the only component that writes resource version
// rows; every write funnels through CREATE/UPDATE/DELETE/PATCH here so the
// gapless-version-sequence and single-current-row invariants (spec section
// 3) have exactly one writer to maintain them.
//
// Tenant isolation is implicit: every operation reads the tenant's internal
// id from ambient context (pkg/tenant), never as an explicit parameter, per
// spec section 4.4's "(resource type, FHIR version, tenant id implicit via
// ambient storage)".
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fhirgateway/pkg/blobstore"
	"github.com/dmitrymomot/fhirgateway/pkg/conformance"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/profile"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
	"github.com/dmitrymomot/fhirgateway/pkg/searchparam"
	"github.com/dmitrymomot/fhirgateway/pkg/storage"
	"github.com/dmitrymomot/fhirgateway/pkg/tenant"
)

// VersionResult is what every CRUD operation returns: the resolved content
// (empty for a tombstone) plus the version metadata the request pipeline
// renders as ETag/Last-Modified/Location headers (spec section 4.4, final
// paragraph).
type VersionResult struct {
	ResourceID  string
	VersionID   int64
	LastUpdated time.Time
	CreatedAt   time.Time
	Content     conformance.Resource
	IsDeleted   bool
}

// ETag renders the synthetic weak ETag from spec section 4.4/6: `W/"<versionId>"`.
func (r VersionResult) ETag() string {
	return ETag(r.VersionID)
}

// ETag formats versionID as the weak ETag spec sections 4.4/6 specify.
func ETag(versionID int64) string {
	return fmt.Sprintf(`W/"%d"`, versionID)
}

// SearchIndex is the optional SEARCH acceleration index from SPEC_FULL.md
// section 4.5 (satisfied by *storage.OpenSearchIndex). Best-effort by
// contract: an implementation logs its own failures and never returns them,
// so the Service treats every call as fire-and-forget.
type SearchIndex interface {
	Index(ctx context.Context, rec storage.Record)
	Remove(ctx context.Context, tenantID, resourceType, resourceID string)
}

// Service implements every C7 operation.
type Service struct {
	router       *storage.Router
	registry     *registry.Registry
	engine       conformance.Engine
	profiles     *profile.Checker
	searchParams *searchparam.Validator
	blobs        blobstore.Store
	logger       *slog.Logger
	now          func() time.Time

	// searchIndexes holds one accelerator per resource type configured with
	// `search_backend: opensearch` (spec section 4.5); resource types absent
	// from this map are never indexed.
	searchIndexes map[string]SearchIndex

	// onLenientProfileFailure observes a profile validation failure that
	// lenient mode downgraded to a log instead of an error (spec section
	// 4.4: "if lenient, logs but proceeds").
	onLenientProfileFailure profile.OnLenientFailure
}

// Option configures a Service.
type Option func(*Service)

// WithBlobStore wires the binary-externalization backend (SPEC_FULL.md
// section 4.4). Without one, large content is never externalized regardless
// of a resource type's configured threshold.
func WithBlobStore(store blobstore.Store) Option {
	return func(s *Service) { s.blobs = store }
}

// WithLogger overrides the default logger used for lenient-mode downgrades.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSearchIndex registers idx as the SEARCH accelerator for resourceType.
// An index wired for a resource type is called on that type's
// Create/Update/Delete, whatever the type's `search_backend` setting.
func WithSearchIndex(resourceType string, idx SearchIndex) Option {
	return func(s *Service) {
		if s.searchIndexes == nil {
			s.searchIndexes = make(map[string]SearchIndex)
		}
		s.searchIndexes[resourceType] = idx
	}
}

// NewService builds a Service over its collaborators.
func NewService(
	router *storage.Router,
	reg *registry.Registry,
	engine conformance.Engine,
	profiles *profile.Checker,
	searchParams *searchparam.Validator,
	opts ...Option,
) *Service {
	s := &Service{
		router:       router,
		registry:     reg,
		engine:       engine,
		profiles:     profiles,
		searchParams: searchParams,
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.onLenientProfileFailure = func(profileURL string, issues conformance.Issues) {
		s.logger.Warn("resource: profile validation failed in lenient mode",
			slog.String("profile", profileURL),
			slog.Int("issues", len(issues)))
	}
	return s
}

// interactionCheck names the registry.Interactions field an operation must
// find enabled, surfaced as a closure so resolveConfig stays generic.
type interactionCheck func(registry.Interactions) bool

func (s *Service) resolveConfig(resourceType string, version fhirversion.Version, check interactionCheck) (registry.ResourceConfig, storage.Backend, error) {
	cfg, err := s.registry.Current().Get(resourceType)
	if err != nil {
		return registry.ResourceConfig{}, nil, fhirerr.New(fhirerr.KindNotFound, "unknown resource type: "+resourceType)
	}
	if !cfg.Enabled {
		return registry.ResourceConfig{}, nil, fhirerr.New(fhirerr.KindNotSupported, resourceType+" is not enabled on this server")
	}
	if err := fhirversion.SupportsVersion(cfg.Versions, version); err != nil {
		return registry.ResourceConfig{}, nil, err
	}
	if check != nil && !check(cfg.Interactions) {
		return registry.ResourceConfig{}, nil, fhirerr.New(fhirerr.KindNotSupported, "interaction not enabled for "+resourceType)
	}

	backend, err := s.router.Route(cfg)
	if err != nil {
		return registry.ResourceConfig{}, nil, fhirerr.New(fhirerr.KindInternal, err.Error())
	}
	return cfg, backend, nil
}

func tenantID(ctx context.Context) string {
	return tenant.MustInternalIDFromContext(ctx)
}

// resolveContent returns rec's readable content, resolving an externalized
// blob via s.blobs when rec.SourceURI is set.
func (s *Service) resolveContent(ctx context.Context, rec storage.Record) (conformance.Resource, error) {
	if rec.SourceURI == "" {
		return rec.Content, nil
	}
	if s.blobs == nil {
		return nil, fhirerr.New(fhirerr.KindInternal, "resource content was externalized but no blob store is configured")
	}
	data, err := s.blobs.Get(ctx, rec.SourceURI)
	if err != nil {
		return nil, fhirerr.New(fhirerr.KindInternal, "failed to resolve externalized content: "+err.Error())
	}
	return data, nil
}

// maybeExternalize writes content to the blob store when cfg.BlobThresholdBytes
// is configured and content exceeds it, returning the row's content column
// value (empty when externalized) and source URI.
func (s *Service) maybeExternalize(ctx context.Context, cfg registry.ResourceConfig, tid, resourceID string, versionID int64, content conformance.Resource) (rowContent []byte, sourceURI string, err error) {
	if cfg.BlobThresholdBytes <= 0 || len(content) <= cfg.BlobThresholdBytes || s.blobs == nil {
		return content, "", nil
	}
	uri, err := s.blobs.Put(ctx, tid, cfg.ResourceType, resourceID, versionID, content)
	if err != nil {
		return nil, "", fhirerr.New(fhirerr.KindInternal, "failed to externalize content: "+err.Error())
	}
	return nil, uri, nil
}

// indexRecord hands rec to its resource type's search accelerator, if one
// is wired. A no-op when the resource type has none configured.
func (s *Service) indexRecord(ctx context.Context, rec storage.Record) {
	if idx, ok := s.searchIndexes[rec.ResourceType]; ok {
		idx.Index(ctx, rec)
	}
}

// deindexRecord removes a resource from its search accelerator on delete.
func (s *Service) deindexRecord(ctx context.Context, resourceType, tid, resourceID string) {
	if idx, ok := s.searchIndexes[resourceType]; ok {
		idx.Remove(ctx, tid, resourceType, resourceID)
	}
}

func toNotFoundIfMissing(err error) error {
	if err == storage.ErrNotFound {
		return fhirerr.New(fhirerr.KindNotFound, "resource not found")
	}
	return err
}

// Create implements CREATE (spec section 4.4): assigns a fresh logical id,
// stamps versionId=1, runs profile validation per the registry's leniency,
// and inserts the first version row.
func (s *Service) Create(ctx context.Context, resourceType string, version fhirversion.Version, body conformance.Resource) (VersionResult, error) {
	cfg, backend, err := s.resolveConfig(resourceType, version, func(i registry.Interactions) bool { return i.Create })
	if err != nil {
		return VersionResult{}, err
	}
	return s.create(ctx, cfg, backend, uuid.NewString(), body)
}

func (s *Service) create(ctx context.Context, cfg registry.ResourceConfig, backend storage.Backend, resourceID string, body conformance.Resource) (VersionResult, error) {
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

	tid := tenantID(ctx)
	now := s.now()

	content, err := s.engine.SetMeta(body, conformance.Meta{VersionID: "1", LastUpdated: now})
	if err != nil {
		return VersionResult{}, err
	}

	rowContent, sourceURI, err := s.maybeExternalize(ctx, cfg, tid, resourceID, 1, content)
	if err != nil {
		return VersionResult{}, err
	}

	rec := storage.Record{
		ID:           uuid.NewString(),
		TenantID:     tid,
		ResourceType: cfg.ResourceType,
		ResourceID:   resourceID,
		FHIRVersion:  string(cfg.DefaultVersion),
		VersionID:    1,
		IsCurrent:    true,
		IsDeleted:    false,
		Content:      rowContent,
		SourceURI:    sourceURI,
		LastUpdated:  now,
		CreatedAt:    now,
	}
	if err := backend.Save(ctx, rec); err != nil {
		return VersionResult{}, fhirerr.New(fhirerr.KindInternal, "failed to persist resource: "+err.Error())
	}
	s.indexRecord(ctx, rec)

	return VersionResult{ResourceID: resourceID, VersionID: 1, LastUpdated: now, CreatedAt: now, Content: content}, nil
}

// Read implements READ (spec section 4.4): returns the current,
// non-deleted row. A current tombstone maps to NotFound, resolving the
// open question in SPEC_FULL.md section 9 in favor of 404 over 410 —
// HISTORY remains the only place the tombstone is visible.
func (s *Service) Read(ctx context.Context, resourceType string, version fhirversion.Version, id string) (VersionResult, error) {
	cfg, backend, err := s.resolveConfig(resourceType, version, func(i registry.Interactions) bool { return i.Read })
	if err != nil {
		return VersionResult{}, err
	}

	rec, err := backend.FindCurrent(ctx, tenantID(ctx), cfg.ResourceType, id)
	if err != nil {
		return VersionResult{}, toNotFoundIfMissing(err)
	}
	if rec.IsDeleted {
		return VersionResult{}, fhirerr.New(fhirerr.KindNotFound, "resource not found")
	}

	content, err := s.resolveContent(ctx, rec)
	if err != nil {
		return VersionResult{}, err
	}
	return VersionResult{ResourceID: id, VersionID: rec.VersionID, LastUpdated: rec.LastUpdated, CreatedAt: rec.CreatedAt, Content: content}, nil
}

// VRead implements VREAD (spec section 4.4): returns the exact version row,
// including tombstones — HISTORY and VREAD are the two places a deleted
// version's existence (though not its content) is visible.
func (s *Service) VRead(ctx context.Context, resourceType string, version fhirversion.Version, id string, versionID int64) (VersionResult, error) {
	cfg, backend, err := s.resolveConfig(resourceType, version, func(i registry.Interactions) bool { return i.VRead })
	if err != nil {
		return VersionResult{}, err
	}

	rec, err := backend.FindVersion(ctx, tenantID(ctx), cfg.ResourceType, id, versionID)
	if err != nil {
		return VersionResult{}, toNotFoundIfMissing(err)
	}
	if rec.IsDeleted {
		return VersionResult{ResourceID: id, VersionID: rec.VersionID, LastUpdated: rec.LastUpdated, CreatedAt: rec.CreatedAt, IsDeleted: true}, nil
	}

	content, err := s.resolveContent(ctx, rec)
	if err != nil {
		return VersionResult{}, err
	}
	return VersionResult{ResourceID: id, VersionID: rec.VersionID, LastUpdated: rec.LastUpdated, CreatedAt: rec.CreatedAt, Content: content}, nil
}

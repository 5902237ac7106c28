package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindCurrent/FindVersion when no matching row
// exists.
var ErrNotFound = errors.New("storage: resource version not found")

// Backend is the common persistence contract both the shared and every
// dedicated-schema backend implement, per spec section 4.5: "Both backends
// implement the same contract: save, findCurrent, findVersion,
// findAllVersionsDesc, exists, maxVersionId, markAllVersionsNotCurrent,
// softDelete(now), search(params, pageable)."
type Backend interface {
	// Save inserts rec as a new row. Used only for a resource's first
	// version (CREATE), where there is no prior current row to flip.
	Save(ctx context.Context, rec Record) error

	// SaveAsNewCurrent atomically flips any existing current row of
	// (rec.TenantID, rec.ResourceType, rec.ResourceID) to is_current=false
	// and inserts rec as the new current row, in one transaction — the
	// UPDATE path's "mark-not-current + insert" from spec section 4.4,
	// executed so readers never observe zero or multiple current rows
	// (spec section 5: "Persistence is transactional per operation").
	SaveAsNewCurrent(ctx context.Context, rec Record) error

	// FindCurrent returns the unique is_current=true row, including
	// tombstones (IsDeleted=true) — callers decide how to surface those.
	FindCurrent(ctx context.Context, tenantID, resourceType, resourceID string) (Record, error)

	// FindVersion returns the exact (tenant, type, id, versionID) row.
	FindVersion(ctx context.Context, tenantID, resourceType, resourceID string, versionID int64) (Record, error)

	// FindAllVersionsDesc returns every version of a resource, newest first.
	FindAllVersionsDesc(ctx context.Context, tenantID, resourceType, resourceID string) ([]Record, error)

	// Exists reports whether any row exists for (tenant, type, id).
	Exists(ctx context.Context, tenantID, resourceType, resourceID string) (bool, error)

	// MaxVersionID returns the highest version id for (tenant, type, id), or
	// 0 if none exists yet.
	MaxVersionID(ctx context.Context, tenantID, resourceType, resourceID string) (int64, error)

	// MarkAllVersionsNotCurrent flips every row of (tenant, type, id) to
	// is_current=false, ahead of inserting the new current row.
	MarkAllVersionsNotCurrent(ctx context.Context, tenantID, resourceType, resourceID string) error

	// SoftDelete sets is_deleted=true and last_updated=now on the current
	// row. Also succeeds when the current row is already deleted, setting
	// last_updated to now again.
	SoftDelete(ctx context.Context, tenantID, resourceType, resourceID string, now time.Time) error

	// Search returns current, non-deleted rows matching params, ordered by
	// last_updated descending, windowed by pageable.
	Search(ctx context.Context, tenantID, resourceType string, params map[string][]string, pageable Pageable) (SearchResult, error)
}

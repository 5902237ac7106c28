// Package storage implements the Storage Router (C6): a common backend
// contract for resource version persistence, concrete Postgres/Mongo
// backends, a best-effort OpenSearch acceleration index, and a router that
// dispatches a resource type to its configured backend, per spec section
// 4.5 and the Resource Version Record data model in spec section 3.
package storage

import "time"

// Record is the Resource Version Record of spec section 3: one row per
// (tenant, type, id, versionId).
type Record struct {
	ID           string
	TenantID     string
	ResourceType string
	ResourceID   string
	FHIRVersion  string
	VersionID    int64
	IsCurrent    bool
	IsDeleted    bool
	Content      []byte
	SourceURI    string
	LastUpdated  time.Time
	CreatedAt    time.Time
}

// Pageable carries the SEARCH pagination window from spec section 4.4:
// `_count` clamped to <=1000 (default 20), `_offset` >= 0.
type Pageable struct {
	Count  int
	Offset int
}

// Normalize clamps Count/Offset to the bounds spec section 4.4 requires.
func (p Pageable) Normalize() Pageable {
	if p.Count <= 0 {
		p.Count = 20
	}
	if p.Count > 1000 {
		p.Count = 1000
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// SearchResult is a page of current, non-deleted rows plus the total match
// count, used by the resource service to build pagination links.
type SearchResult struct {
	Records []Record
	Total   int
}

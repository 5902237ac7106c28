package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// key identifies a resource line regardless of version.
type key struct {
	tenantID     string
	resourceType string
	resourceID   string
}

// MemoryBackend is an in-memory Backend implementation for tests and local
// development, grounded on the teacher's pkg/queue MemoryStorage shape: a
// mutex-guarded map of per-resource version slices. Records are stored by
// value, but their Content byte slices are shared with the caller, not
// copied.
type MemoryBackend struct {
	mu       sync.RWMutex
	versions map[key][]Record // ordered ascending by VersionID
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{versions: make(map[key][]Record)}
}

func keyOf(tenantID, resourceType, resourceID string) key {
	return key{tenantID: tenantID, resourceType: resourceType, resourceID: resourceID}
}

func (m *MemoryBackend) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(rec.TenantID, rec.ResourceType, rec.ResourceID)
	m.versions[k] = append(m.versions[k], rec)
	return nil
}

func (m *MemoryBackend) SaveAsNewCurrent(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(rec.TenantID, rec.ResourceType, rec.ResourceID)
	recs := m.versions[k]
	for i := range recs {
		recs[i].IsCurrent = false
	}
	m.versions[k] = append(recs, rec)
	return nil
}

func (m *MemoryBackend) FindCurrent(_ context.Context, tenantID, resourceType, resourceID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.versions[keyOf(tenantID, resourceType, resourceID)] {
		if rec.IsCurrent {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (m *MemoryBackend) FindVersion(_ context.Context, tenantID, resourceType, resourceID string, versionID int64) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.versions[keyOf(tenantID, resourceType, resourceID)] {
		if rec.VersionID == versionID {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (m *MemoryBackend) FindAllVersionsDesc(_ context.Context, tenantID, resourceType, resourceID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := append([]Record(nil), m.versions[keyOf(tenantID, resourceType, resourceID)]...)
	sort.Slice(recs, func(i, j int) bool { return recs[i].VersionID > recs[j].VersionID })
	return recs, nil
}

func (m *MemoryBackend) Exists(_ context.Context, tenantID, resourceType, resourceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.versions[keyOf(tenantID, resourceType, resourceID)]) > 0, nil
}

func (m *MemoryBackend) MaxVersionID(_ context.Context, tenantID, resourceType, resourceID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var max int64
	for _, rec := range m.versions[keyOf(tenantID, resourceType, resourceID)] {
		if rec.VersionID > max {
			max = rec.VersionID
		}
	}
	return max, nil
}

func (m *MemoryBackend) MarkAllVersionsNotCurrent(_ context.Context, tenantID, resourceType, resourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(tenantID, resourceType, resourceID)
	recs := m.versions[k]
	for i := range recs {
		recs[i].IsCurrent = false
	}
	return nil
}

func (m *MemoryBackend) SoftDelete(_ context.Context, tenantID, resourceType, resourceID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(tenantID, resourceType, resourceID)
	recs := m.versions[k]
	for i := range recs {
		if recs[i].IsCurrent {
			recs[i].IsDeleted = true
			recs[i].LastUpdated = now
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryBackend) Search(_ context.Context, tenantID, resourceType string, params map[string][]string, pageable Pageable) (SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pageable = pageable.Normalize()

	var matched []Record
	for k, recs := range m.versions {
		if k.tenantID != tenantID || k.resourceType != resourceType {
			continue
		}
		for _, rec := range recs {
			if rec.IsCurrent && !rec.IsDeleted {
				matched = append(matched, rec)
			}
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].LastUpdated.After(matched[j].LastUpdated) })

	total := len(matched)
	start := pageable.Offset
	if start > total {
		start = total
	}
	end := start + pageable.Count
	if end > total {
		end = total
	}

	return SearchResult{Records: matched[start:end], Total: total}, nil
}

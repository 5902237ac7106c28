package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/opensearch-project/opensearch-go/v2"
)

// openSearchDoc is the flattened projection of a current, non-deleted
// Record indexed for SEARCH acceleration. Only the fields a search
// predicate might reasonably target are carried — the row itself (in its
// SQL/Mongo backend) stays authoritative for content.
type openSearchDoc struct {
	TenantID     string `json:"tenant_id"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	LastUpdated  string `json:"last_updated"`
}

// OpenSearchIndex is the optional SEARCH acceleration index from
// SPEC_FULL.md section 4.5: consulted only for resource types the registry
// marks `search_backend: opensearch`. Writes are best-effort — a failed
// index write is logged and never fails the mutating request, since the
// SQL/Mongo row remains authoritative (SPEC_FULL.md section 4.5).
type OpenSearchIndex struct {
	client *opensearch.Client
	index  string
	logger *slog.Logger
}

// NewOpenSearchIndex builds an index wrapper bound to a single OpenSearch
// index name, one per resource type, matching the per-resource dedicated
// schema convention used by the SQL/Mongo backends.
func NewOpenSearchIndex(client *opensearch.Client, indexName string, logger *slog.Logger) *OpenSearchIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenSearchIndex{client: client, index: indexName, logger: logger}
}

// Index upserts rec's searchable projection. Failures are logged, never
// returned to the caller — see the type doc's best-effort policy.
func (idx *OpenSearchIndex) Index(ctx context.Context, rec Record) {
	doc := openSearchDoc{
		TenantID:     rec.TenantID,
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		LastUpdated:  rec.LastUpdated.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		idx.logger.Warn("opensearch: marshal doc failed", slog.String("error", err.Error()))
		return
	}

	docID := rec.TenantID + ":" + rec.ResourceType + ":" + rec.ResourceID
	res, err := idx.client.Index(idx.index, bytes.NewReader(body),
		idx.client.Index.WithContext(ctx),
		idx.client.Index.WithDocumentID(docID),
	)
	if err != nil {
		idx.logger.Warn("opensearch: index request failed", slog.String("error", err.Error()))
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		idx.logger.Warn("opensearch: index response error", slog.String("status", res.Status()))
	}
}

// Remove deletes a resource's document from the index, on SoftDelete.
// Best-effort, same policy as Index.
func (idx *OpenSearchIndex) Remove(ctx context.Context, tenantID, resourceType, resourceID string) {
	docID := tenantID + ":" + resourceType + ":" + resourceID
	res, err := idx.client.Delete(idx.index, docID, idx.client.Delete.WithContext(ctx))
	if err != nil {
		idx.logger.Warn("opensearch: delete request failed", slog.String("error", err.Error()))
		return
	}
	defer res.Body.Close()
}

// Search returns the resource ids matching a simple tenant/type-scoped
// query. The resource service does not call it; its SEARCH reads go through
// the backend's own Search. On any error it returns the error.
func (idx *OpenSearchIndex) Search(ctx context.Context, tenantID, resourceType string, pageable Pageable) ([]string, int, error) {
	pageable = pageable.Normalize()

	query := fmt.Sprintf(`{
		"from": %d, "size": %d,
		"sort": [{"last_updated": {"order": "desc"}}],
		"query": {"bool": {"filter": [
			{"term": {"tenant_id": %q}},
			{"term": {"resource_type": %q}}
		]}}
	}`, pageable.Offset, pageable.Count, tenantID, resourceType)

	res, err := idx.client.Search(
		idx.client.Search.WithContext(ctx),
		idx.client.Search.WithIndex(idx.index),
		idx.client.Search.WithBody(bytes.NewReader([]byte(query))),
	)
	if err != nil {
		return nil, 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("storage: opensearch search returned %s", res.Status())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, err
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source openSearchDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.Source.ResourceID)
	}
	return ids, parsed.Hits.Total.Value, nil
}

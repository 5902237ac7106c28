package resource

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dmitrymomot/fhirgateway/pkg/fhirerr"
	"github.com/dmitrymomot/fhirgateway/pkg/fhirversion"
	"github.com/dmitrymomot/fhirgateway/pkg/registry"
	"github.com/dmitrymomot/fhirgateway/pkg/storage"
)

// pagingParams are stripped from the match criteria before they reach the
// storage backend — they control pagination, not the result set.
var pagingParams = map[string]bool{"_count": true, "_offset": true}

// Search implements SEARCH (spec section 4.4): validates parameter names
// through the Search-Param Validator, paginates with `_count` (clamped to
// <=1000, default 20) and `_offset` (>=0), and returns a searchset bundle
// ordered by last_updated descending with the five navigation links.
func (s *Service) Search(ctx context.Context, resourceType string, version fhirversion.Version, params map[string][]string, requestURL *url.URL) (Bundle, error) {
	cfg, backend, err := s.resolveConfig(resourceType, version, func(i registry.Interactions) bool { return i.Search })
	if err != nil {
		return Bundle{}, err
	}

	kept, err := s.searchParams.Validate(cfg.ResourceType, cfg.SearchParams, params)
	if err != nil {
		return Bundle{}, err
	}

	pageable := storage.Pageable{Count: intParam(kept, "_count", 20), Offset: intParam(kept, "_offset", 0)}.Normalize()

	matchParams := make(map[string][]string, len(kept))
	preserved := url.Values{}
	for k, v := range kept {
		if pagingParams[k] {
			continue
		}
		matchParams[k] = v
		preserved[k] = v
	}

	result, err := backend.Search(ctx, tenantID(ctx), cfg.ResourceType, matchParams, pageable)
	if err != nil {
		return Bundle{}, fhirerr.New(fhirerr.KindInternal, "search failed: "+err.Error())
	}

	entries := make([]BundleEntry, 0, len(result.Records))
	for _, rec := range result.Records {
		content, err := s.resolveContent(ctx, rec)
		if err != nil {
			return Bundle{}, err
		}
		entries = append(entries, BundleEntry{
			FullURL:  entryFullURL(requestURL, cfg.ResourceType, rec.ResourceID),
			Resource: content,
		})
	}

	base := requestURL
	if base == nil {
		base = &url.URL{}
	}

	total := result.Total
	return Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Link:         pageLinks(base, preserved, pageable.Count, pageable.Offset, result.Total),
		Entry:        entries,
	}, nil
}

// History implements HISTORY (spec section 4.4): lists every version of a
// resource in descending version order, tagging each entry with the method
// that produced it and the synthetic ETag, omitting content for tombstones.
func (s *Service) History(ctx context.Context, resourceType string, version fhirversion.Version, id string, requestURL *url.URL) (Bundle, error) {
	cfg, backend, err := s.resolveConfig(resourceType, version, func(i registry.Interactions) bool { return i.History })
	if err != nil {
		return Bundle{}, err
	}

	recs, err := backend.FindAllVersionsDesc(ctx, tenantID(ctx), cfg.ResourceType, id)
	if err != nil {
		return Bundle{}, fhirerr.New(fhirerr.KindInternal, "history lookup failed: "+err.Error())
	}
	if len(recs) == 0 {
		return Bundle{}, fhirerr.New(fhirerr.KindNotFound, "resource not found")
	}

	base := requestURL
	if base == nil {
		base = &url.URL{}
	}

	entries := make([]BundleEntry, 0, len(recs))
	for _, rec := range recs {
		entry := BundleEntry{
			FullURL: entryFullURL(base, cfg.ResourceType, rec.ResourceID),
			Request: &BundleEntryRequest{
				Method: historyMethod(rec),
				URL:    cfg.ResourceType + "/" + rec.ResourceID,
			},
			Response: &BundleEntryResponse{
				Status:       "200",
				ETag:         ETag(rec.VersionID),
				LastModified: rec.LastUpdated.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			},
		}
		if !rec.IsDeleted {
			content, err := s.resolveContent(ctx, rec)
			if err != nil {
				return Bundle{}, err
			}
			entry.Resource = content
		}
		entries = append(entries, entry)
	}

	return Bundle{
		ResourceType: "Bundle",
		Type:         "history",
		Link:         []BundleLink{{Relation: "self", URL: base.String()}},
		Entry:        entries,
	}, nil
}

// historyMethod tags a history entry per spec section 4.4: "method POST
// (v1), PUT (v>1 not deleted), or DELETE (tombstone)".
func historyMethod(rec storage.Record) string {
	switch {
	case rec.IsDeleted:
		return "DELETE"
	case rec.VersionID == 1:
		return "POST"
	default:
		return "PUT"
	}
}

func entryFullURL(base *url.URL, resourceType, id string) string {
	u := *base
	u.RawQuery = ""
	u.Path = "/" + resourceType + "/" + id
	return u.String()
}

func intParam(params map[string][]string, name string, def int) int {
	values, ok := params[name]
	if !ok || len(values) == 0 {
		return def
	}
	n, err := strconv.Atoi(values[0])
	if err != nil {
		return def
	}
	return n
}

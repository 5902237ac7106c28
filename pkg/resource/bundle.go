package resource

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// BundleLink is one entry of a FHIR Bundle's `link` array.
type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// BundleEntryRequest is a history bundle entry's `request` element: the
// method that produced this version, per spec section 4.4 ("each entry
// tagged with method POST (v1), PUT (v>1 not deleted), or DELETE (tombstone)").
type BundleEntryRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// BundleEntryResponse carries the synthetic ETag/lastModified spec section
// 4.4 requires on every history entry.
type BundleEntryResponse struct {
	Status       string `json:"status"`
	ETag         string `json:"etag"`
	LastModified string `json:"lastModified"`
}

// BundleEntry is one resource (or tombstone) within a Bundle.
type BundleEntry struct {
	FullURL  string               `json:"fullUrl,omitempty"`
	Resource json.RawMessage      `json:"resource,omitempty"`
	Request  *BundleEntryRequest  `json:"request,omitempty"`
	Response *BundleEntryResponse `json:"response,omitempty"`
}

// Bundle is the FHIR Bundle resource the SEARCH and HISTORY operations
// return (spec section 4.4).
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// pageLinks builds the five navigation links SEARCH always includes (spec
// section 4.4: "Always includes five navigation links: self, first, prev
// (if offset > 0), next (if more pages exist), last."), each carrying the
// preserved non-paging parameters plus the appropriate _count/_offset pair.
func pageLinks(base *url.URL, preserved url.Values, count, offset, total int) []BundleLink {
	links := []BundleLink{
		{Relation: "self", URL: linkURL(base, preserved, count, offset)},
		{Relation: "first", URL: linkURL(base, preserved, count, 0)},
	}

	if offset > 0 {
		prevOffset := offset - count
		if prevOffset < 0 {
			prevOffset = 0
		}
		links = append(links, BundleLink{Relation: "prev", URL: linkURL(base, preserved, count, prevOffset)})
	}

	if offset+count < total {
		links = append(links, BundleLink{Relation: "next", URL: linkURL(base, preserved, count, offset+count)})
	}

	lastOffset := 0
	if total > 0 && count > 0 {
		lastOffset = ((total - 1) / count) * count
	}
	links = append(links, BundleLink{Relation: "last", URL: linkURL(base, preserved, count, lastOffset)})

	return links
}

func linkURL(base *url.URL, preserved url.Values, count, offset int) string {
	u := *base
	q := url.Values{}
	for k, v := range preserved {
		q[k] = append([]string(nil), v...)
	}
	q.Set("_count", strconv.Itoa(count))
	q.Set("_offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String()
}

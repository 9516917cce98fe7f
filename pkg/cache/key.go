package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies one fetched page of a paginated source in the page store.
type CacheKey struct {
	// Source is the collection URL without pagination parameters
	// (e.g., "https://api.example.org/forums/posts").
	Source string

	// QueryParams are the non-pagination query parameters of the source.
	QueryParams url.Values

	// Page is the 1-based page number.
	Page int

	// PageSize is the number of items requested per page.
	PageSize int
}

// String generates a deterministic key string.
// Format: pageview:page:host/path:query1=val1:page=3:size=20
//
// Example:
//
//	pageview:page:api.example.org/forums/posts:sort=desc:page=3:size=20
func (k CacheKey) String() string {
	parts := []string{"pageview", "page"}

	source := k.Source
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		source = u.Host + u.Path
	}
	source = strings.Trim(source, "/")
	if source != "" {
		parts = append(parts, source)
	}

	if len(k.QueryParams) > 0 {
		keys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	parts = append(parts, fmt.Sprintf("page=%d", k.Page), fmt.Sprintf("size=%d", k.PageSize))

	return strings.Join(parts, ":")
}

package cache

import (
	"encoding/json"
	"time"

	"github.com/Sternrassler/pageview/pkg/linkheader"
)

// CacheEntry is one fetched page as kept in the page store.
type CacheEntry struct {
	// Items are the raw JSON items of the page, in server order.
	Items []json.RawMessage `json:"items"`

	// Link is the raw Link header of the response.
	Link string `json:"link"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	// LastModified is when the page last changed on the server
	LastModified time.Time `json:"last_modified"`

	// StatusCode is the HTTP status of the response the entry was built from
	StatusCode int `json:"status_code"`

	// CachedAt is when the entry was written
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Metadata parses the pagination metadata of the stored Link header.
func (e *CacheEntry) Metadata() linkheader.Metadata {
	return linkheader.Parse(e.Link).Metadata()
}

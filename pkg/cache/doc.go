// Package cache keeps the pages a rendering target has already shown.
//
// # Page cache
//
// PageCache is the per-target, in-memory map from page number to the ordered
// items rendered for it. Tabular targets additionally keep a heading item that
// is rendered on top of every page and never counts against the page size.
//
//	pc := cache.NewPageCache("forum-posts", cache.TypeTabular)
//	_ = pc.SetHeading(headingRow)
//	pc.Put(3, rows)
//	items, ok := pc.Get(3)
//	render(pc.Compose(items)) // heading first, then rows
//
// The cache type decides what happens to a live render that was never fetched
// through the cache (typically the server-rendered first page):
//
//   - tabular: row items are captured, heading markers skipped
//   - listing: listing items are captured
//   - generic: nothing is captured; pages only enter through Put
//
// Items declare their role by implementing Kinded. Items without a declared
// kind are treated as content.
//
// # Page store
//
// Manager is an optional Redis-backed store for fetched page responses, shared
// between processes. Entries keep the raw JSON items, the Link header and the
// validators needed for conditional requests:
//
//	store := cache.NewManager(redisClient)
//	key := cache.CacheKey{Source: "https://api.example.org/forums/posts", Page: 3, PageSize: 20}
//
//	entry, err := store.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the source
//	}
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Metrics
//
//   - pageview_page_cache_hits_total{cache_type}
//   - pageview_page_cache_misses_total{cache_type}
//   - pageview_page_cache_captures_total{cache_type}
//   - pageview_store_hits_total{layer="redis"}
//   - pageview_store_misses_total
//   - pageview_store_written_bytes_total{layer="redis"}
//   - pageview_304_responses_total
//   - pageview_conditional_requests_total
//   - pageview_store_errors_total{operation}
package cache

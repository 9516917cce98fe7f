// Package pager drives paginated rendering targets.
//
// A Controller owns the pagination state of one rendering target: the current
// page, the page count, the page size and the target's cache.PageCache. It
// answers navigation from the cache when it can and otherwise asks a Fetcher
// for the page, caches the answer and renders it.
//
//	        navigate(p), cached                navigate(p), not cached
//	Idle ─────────────────────────▶ Idle   Idle ─────────────────────────▶ AwaitingFetch
//	AwaitingFetch ── fetch ok ──▶ Idle (page p shown)
//	AwaitingFetch ── fetch failed ──▶ Idle (error shown, current page = p)
//
// Output goes through a Renderer: the controller hands over opaque items and
// nav bar descriptors and never builds markup itself.
//
// Fetches run on their own goroutines so navigation never blocks. Concurrent
// fetches are not deduplicated. With StaleDiscard (the default) only the
// most recently requested page is rendered; responses to superseded requests
// are cached but not shown. StaleLastWins renders every response as it
// arrives, so a slow response for an earlier click can replace a newer page.
//
// Registry keys controllers by target id and is the entry point for
// applications that show several paginated targets at once.
package pager

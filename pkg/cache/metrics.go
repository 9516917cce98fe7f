package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Page cache metrics.
var (
	// PageCacheHits counts page lookups answered from a target's page cache.
	PageCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageview_page_cache_hits_total",
			Help: "Total number of page cache hits",
		},
		[]string{"cache_type"}, // "generic", "tabular", "listing"
	)

	// PageCacheMisses counts page lookups that require a fetch.
	PageCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageview_page_cache_misses_total",
			Help: "Total number of page cache misses",
		},
		[]string{"cache_type"},
	)

	// PageCaptures counts live renders snapshotted into a page cache.
	PageCaptures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageview_page_cache_captures_total",
			Help: "Total number of rendered pages captured into the cache",
		},
		[]string{"cache_type"},
	)
)

// Page store metrics.
var (
	// StoreHits tracks page store hits by layer (redis)
	StoreHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageview_store_hits_total",
			Help: "Total number of page store hits",
		},
		[]string{"layer"},
	)

	// StoreMisses tracks page store misses
	StoreMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pageview_store_misses_total",
			Help: "Total number of page store misses",
		},
	)

	// StoreBytes tracks the size of entries written to the store
	StoreBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageview_store_written_bytes_total",
			Help: "Total bytes written to the page store",
		},
		[]string{"layer"},
	)

	// NotModifiedResponses tracks 304 Not Modified responses served from the store
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pageview_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match or If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pageview_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// StoreErrors tracks page store operation errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pageview_store_errors_total",
			Help: "Total number of page store operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)

package cache

import (
	"errors"
	"slices"
)

// ErrHeadingUnsupported is returned when a heading is set on a non-tabular cache.
var ErrHeadingUnsupported = errors.New("cache type does not keep a heading")

// PageCache maps page numbers to the items previously rendered for them.
// Pages are 1-based; the heading is kept apart and never evicted.
//
// A PageCache belongs to exactly one rendering target and is not safe for
// concurrent use; the owning controller serialises access.
type PageCache struct {
	targetID   string
	typ        Type
	policy     Policy
	pages      map[int][]Item
	heading    Item
	hasHeading bool
}

// NewPageCache creates an empty page cache for a rendering target.
func NewPageCache(targetID string, t Type) *PageCache {
	return &PageCache{
		targetID: targetID,
		typ:      t,
		policy:   PolicyFor(t),
		pages:    make(map[int][]Item),
	}
}

// Type returns the cache type.
func (c *PageCache) Type() Type {
	return c.typ
}

// Get returns the items cached for page.
func (c *PageCache) Get(page int) ([]Item, bool) {
	items, ok := c.pages[page]
	if !ok {
		PageCacheMisses.WithLabelValues(c.typ.String()).Inc()
		return nil, false
	}
	PageCacheHits.WithLabelValues(c.typ.String()).Inc()
	return slices.Clone(items), true
}

// Has reports whether page is cached without touching metrics.
func (c *PageCache) Has(page int) bool {
	_, ok := c.pages[page]
	return ok
}

// Put stores items for page, replacing any previous entry.
// Page numbers below 1 are ignored; slot 0 is reserved for the heading.
func (c *PageCache) Put(page int, items []Item) {
	if page < 1 {
		return
	}
	stored := slices.Clone(items)
	if stored == nil {
		stored = []Item{}
	}
	c.pages[page] = stored
}

// SetHeading stores the persistent heading item.
func (c *PageCache) SetHeading(item Item) error {
	if !c.policy.SupportsHeading() {
		return ErrHeadingUnsupported
	}
	c.heading = item
	c.hasHeading = item != nil
	return nil
}

// Heading returns the heading item, if one is set.
func (c *PageCache) Heading() (Item, bool) {
	return c.heading, c.hasHeading
}

// CaptureCurrentRender snapshots what is displayed for page into the cache,
// so that returning to it is a hit. It does nothing when page is already
// cached or the cache type does not capture. Reports whether a page was stored.
func (c *PageCache) CaptureCurrentRender(page int, rendered []Item) bool {
	if page < 1 || c.Has(page) {
		return false
	}
	items, ok := c.policy.Capture(rendered)
	if !ok {
		return false
	}
	c.pages[page] = items
	PageCaptures.WithLabelValues(c.typ.String()).Inc()
	return true
}

// Compose returns items prepared for rendering, with the heading when the type keeps one.
func (c *PageCache) Compose(items []Item) []Item {
	return c.policy.Compose(c.heading, c.hasHeading, items)
}

// Fill splits a complete, ordered data set into pages of perPage items and
// caches all of them. Heading items are skipped. Returns the number of pages.
func (c *PageCache) Fill(items []Item, perPage int) int {
	if perPage <= 0 {
		return 0
	}

	page := 0
	current := make([]Item, 0, perPage)
	for _, item := range items {
		if KindOf(item) == KindHeading {
			continue
		}
		current = append(current, item)
		if len(current) == perPage {
			page++
			c.pages[page] = current
			current = make([]Item, 0, perPage)
		}
	}
	if len(current) > 0 {
		page++
		c.pages[page] = current
	}

	return page
}

// Reset drops every cached page but keeps the heading.
func (c *PageCache) Reset() {
	c.pages = make(map[int][]Item)
}

// Len returns the number of cached pages, not counting the heading.
func (c *PageCache) Len() int {
	return len(c.pages)
}

// TargetID returns the rendering target the cache belongs to.
func (c *PageCache) TargetID() string {
	return c.targetID
}

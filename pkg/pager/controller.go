package pager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/logging"
	"github.com/Sternrassler/pageview/pkg/window"
)

// Option configures a Controller or Registry.
type Option func(*options)

type options struct {
	logger      zerolog.Logger
	stalePolicy StalePolicy
}

func defaultOptions() options {
	return options{
		logger:      logging.NewLogger("pager"),
		stalePolicy: StaleDiscard,
	}
}

// WithLogger sets the logger. Controllers add target_id and cache_type fields.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStalePolicy sets how responses to superseded fetches are handled.
func WithStalePolicy(p StalePolicy) Option {
	return func(o *options) {
		o.stalePolicy = p
	}
}

// Controller is the pagination state machine of one rendering target.
// It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	id          string
	cache       *cache.PageCache
	fetcher     Fetcher
	renderer    Renderer
	logger      zerolog.Logger
	stalePolicy StalePolicy

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	closed   bool

	state        State
	currentPage  int
	totalPages   int
	totalItems   int
	itemsPerPage int

	// displayed holds the content items on screen for currentPage; nil while
	// the content area is cleared or shows an error.
	displayed []cache.Item
	failed    bool

	// seq is the last issued fetch token, latest the token whose response may
	// render under StaleDiscard. latest is 0 when no fetch is awaited.
	seq    uint64
	latest uint64
}

// New creates the controller of a rendering target whose first page is
// already on screen. Fetches run under ctx; cancelling it aborts them.
func New(ctx context.Context, t Target, fetcher Fetcher, renderer Renderer, opts ...Option) (*Controller, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newController(ctx, t, fetcher, renderer, o)
}

func newController(ctx context.Context, t Target, fetcher Fetcher, renderer Renderer, o options) (*Controller, error) {
	if t.ID == "" {
		return nil, ErrEmptyTargetID
	}
	if t.ItemsPerPage <= 0 {
		return nil, ErrInvalidPageSize
	}

	ctx, cancel := context.WithCancel(ctx)

	c := &Controller{
		id:       t.ID,
		cache:    cache.NewPageCache(t.ID, t.CacheType),
		fetcher:  fetcher,
		renderer: renderer,
		logger: o.logger.With().
			Str("target_id", t.ID).
			Str("cache_type", t.CacheType.String()).
			Logger(),
		stalePolicy:  o.stalePolicy,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateIdle,
		currentPage:  1,
		totalItems:   t.TotalItems,
		itemsPerPage: t.ItemsPerPage,
		totalPages:   window.TotalPages(t.TotalItems, t.ItemsPerPage),
		displayed:    t.InitialItems,
	}

	heading := t.Heading
	if heading == nil {
		heading = findHeading(t.InitialItems)
	}
	if heading != nil {
		if err := c.cache.SetHeading(heading); err != nil {
			c.logger.Debug().Err(err).Msg("Ignoring heading")
		}
	}

	c.logger.Debug().
		Int("total_items", c.totalItems).
		Int("items_per_page", c.itemsPerPage).
		Int("total_pages", c.totalPages).
		Msg("Pagination target initialized")

	return c, nil
}

func findHeading(items []cache.Item) cache.Item {
	for _, item := range items {
		if cache.KindOf(item) == cache.KindHeading {
			return item
		}
	}
	return nil
}

// ID returns the rendering target id.
func (c *Controller) ID() string {
	return c.id
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentPage returns the page the target shows or last tried to show.
func (c *Controller) CurrentPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPage
}

// TotalPages returns the page count.
func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPages
}

// ItemsPerPage returns the page size in effect.
func (c *Controller) ItemsPerPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsPerPage
}

// Cached reports whether page is in the target's cache.
func (c *Controller) Cached(page int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Has(page)
}

// CachedPages returns the number of cached pages.
func (c *Controller) CachedPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// NavBar returns the navigation bar for the current page. It is empty when
// everything fits on one page.
func (c *Controller) NavBar() window.NavBar {
	c.mu.Lock()
	defer c.mu.Unlock()
	return window.Build(c.totalPages, c.currentPage)
}

// Preload caches a complete data set split into pages and shows page 1.
// The item total becomes the number of non-heading items.
func (c *Controller) Preload(items []cache.Item) window.NavBar {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache.Heading(); !ok {
		if h := findHeading(items); h != nil {
			_ = c.cache.SetHeading(h)
		}
	}

	c.cache.Reset()
	pages := c.cache.Fill(items, c.itemsPerPage)
	c.totalItems = contentCount(items)
	c.totalPages = window.TotalPages(c.totalItems, c.itemsPerPage)

	c.logger.Debug().
		Int("total_items", c.totalItems).
		Int("pages", pages).
		Msg("Preloaded data set")

	first, _ := c.cache.Get(1)
	c.show(1, first)
	return window.Build(c.totalPages, c.currentPage)
}

// Navigate moves the target to page. Out-of-range pages and the page already
// on screen are ignored. Cached pages render synchronously; others are
// fetched in the background.
func (c *Controller) Navigate(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if page < 1 || page > c.totalPages {
		navigationsTotal.WithLabelValues("rejected").Inc()
		c.logger.Debug().Int("page", page).Int("total_pages", c.totalPages).Msg("Page out of range")
		return
	}

	if page == c.currentPage && c.state == StateIdle && !c.failed {
		navigationsTotal.WithLabelValues("noop").Inc()
		return
	}

	if c.state == StateIdle && !c.failed {
		if c.cache.CaptureCurrentRender(c.currentPage, c.displayed) {
			c.logger.Debug().Int("page", c.currentPage).Msg("Captured rendered page")
		}
	}

	if items, ok := c.cache.Get(page); ok {
		navigationsTotal.WithLabelValues("hit").Inc()
		c.latest = 0
		c.show(page, items)
		c.logger.Debug().Int("page", page).Msg("Page served from cache")
		return
	}

	navigationsTotal.WithLabelValues("miss").Inc()
	c.request(page)
}

// request starts a background fetch of page and clears the content area.
// Callers hold c.mu.
func (c *Controller) request(page int) {
	c.seq++
	token := c.seq
	c.latest = token
	c.state = StateAwaitingFetch
	c.displayed = nil

	req := FetchRequest{
		RequestID: uuid.NewString(),
		TargetID:  c.id,
		Page:      page,
		PageSize:  c.itemsPerPage,
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Int("page", page).
		Msg("Fetching page")

	c.renderer.RenderPage(c.id, c.cache.Compose(nil))

	c.inflight.Add(1)
	go c.fetch(token, req)
}

func (c *Controller) fetch(token uint64, req FetchRequest) {
	defer c.inflight.Done()

	start := time.Now()
	page, err := c.fetcher.FetchPage(c.ctx, req)
	fetchDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		fetchesTotal.WithLabelValues("dropped").Inc()
		return
	}

	if err != nil {
		c.fetchFailed(token, req, err)
		return
	}
	c.fetchSucceeded(token, req, page)
}

func (c *Controller) fetchSucceeded(token uint64, req FetchRequest, page Page) {
	if c.stalePolicy == StaleDiscard && token != c.latest {
		fetchesTotal.WithLabelValues("stale").Inc()
		// Only pages cut at the current size may enter the cache.
		if cutSize(req, page) == c.itemsPerPage && req.Page <= c.totalPages {
			c.cache.Put(req.Page, page.Items)
		}
		c.logger.Debug().
			Str("request_id", req.RequestID).
			Int("page", req.Page).
			Msg("Discarding superseded response")
		return
	}

	c.adoptPageSize(page.Metadata.PageSize)

	if req.Page > c.totalPages || cutSize(req, page) != c.itemsPerPage {
		// The items were cut for a page layout that no longer applies.
		fetchesTotal.WithLabelValues("dropped").Inc()
		c.logger.Info().
			Str("request_id", req.RequestID).
			Int("page", req.Page).
			Int("total_pages", c.totalPages).
			Msg("Re-requesting page after page size change")
		c.request(min(req.Page, c.totalPages))
		return
	}

	fetchesTotal.WithLabelValues("ok").Inc()
	c.latest = 0
	c.cache.Put(req.Page, page.Items)
	c.show(req.Page, page.Items)

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Int("page", req.Page).
		Int("items", len(page.Items)).
		Msg("Page fetched")
}

// cutSize is the page size the items of a response were cut at.
func cutSize(req FetchRequest, page Page) int {
	if page.Metadata.PageSize > 0 {
		return page.Metadata.PageSize
	}
	return req.PageSize
}

func (c *Controller) fetchFailed(token uint64, req FetchRequest, err error) {
	if c.stalePolicy == StaleDiscard && token != c.latest {
		fetchesTotal.WithLabelValues("stale").Inc()
		c.logger.Debug().
			Err(err).
			Str("request_id", req.RequestID).
			Int("page", req.Page).
			Msg("Ignoring failure of superseded request")
		return
	}

	fetchesTotal.WithLabelValues("error").Inc()
	c.latest = 0
	c.state = StateIdle
	c.currentPage = min(req.Page, c.totalPages)
	c.displayed = nil
	c.failed = true

	c.logger.Warn().
		Err(err).
		Str("request_id", req.RequestID).
		Int("page", req.Page).
		Msg("Page fetch failed")

	c.renderer.RenderError(c.id, req.Page, err)
}

// adoptPageSize switches to the page size reported by the server. Cached
// pages were split at the old size and are dropped.
func (c *Controller) adoptPageSize(size int) {
	if size <= 0 || size == c.itemsPerPage {
		return
	}

	old := c.itemsPerPage
	c.itemsPerPage = size
	c.totalPages = window.TotalPages(c.totalItems, size)
	c.cache.Reset()
	if c.currentPage > c.totalPages {
		c.currentPage = c.totalPages
	}

	c.logger.Info().
		Int("old_page_size", old).
		Int("new_page_size", size).
		Int("total_pages", c.totalPages).
		Msg("Adopted server page size")
}

// show renders items as page and makes it current. Callers hold c.mu.
func (c *Controller) show(page int, items []cache.Item) {
	c.renderer.RenderPage(c.id, c.cache.Compose(items))
	c.renderer.RenderNav(c.id, window.Build(c.totalPages, page))

	c.currentPage = page
	c.displayed = items
	c.failed = false
	c.state = StateIdle
}

// Wait blocks until all in-flight fetches have been handled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Close cancels in-flight fetches and waits for them. Responses arriving
// after Close are dropped and further navigation is ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.inflight.Wait()
}

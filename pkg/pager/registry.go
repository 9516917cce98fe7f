package pager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/window"
)

// Registry keeps one Controller per rendering target. Targets are
// independent: each has its own state, cache and page size.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller

	fetcher  Fetcher
	renderer Renderer
	opts     options
	logger   zerolog.Logger
}

// NewRegistry creates a registry whose controllers share fetcher and renderer.
func NewRegistry(fetcher Fetcher, renderer Renderer, opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		controllers: make(map[string]*Controller),
		fetcher:     fetcher,
		renderer:    renderer,
		opts:        o,
		logger:      o.logger,
	}
}

// Initialize registers a target whose first page is on screen and returns
// its navigation bar.
func (r *Registry) Initialize(ctx context.Context, t Target) (window.NavBar, error) {
	c, err := r.add(ctx, t)
	if err != nil {
		return window.NavBar{}, err
	}
	return c.NavBar(), nil
}

// InitializeFromPage registers a target from the first response of its
// source. See TargetFromPage for how the page size and item total are derived.
func (r *Registry) InitializeFromPage(ctx context.Context, id string, typ cache.Type, first Page, configuredPerPage int, heading cache.Item) (window.NavBar, error) {
	return r.Initialize(ctx, TargetFromPage(id, typ, first, configuredPerPage, heading))
}

// InitializePreloaded registers a target backed by a complete data set. The
// set is split into pages of perPage items, all pages are cached and page 1
// is rendered. Navigation never fetches unless the set was empty.
func (r *Registry) InitializePreloaded(ctx context.Context, id string, typ cache.Type, items []cache.Item, perPage int, heading cache.Item) (window.NavBar, error) {
	c, err := r.add(ctx, Target{
		ID:           id,
		CacheType:    typ,
		TotalItems:   contentCount(items),
		ItemsPerPage: perPage,
		Heading:      heading,
	})
	if err != nil {
		return window.NavBar{}, err
	}
	return c.Preload(items), nil
}

func (r *Registry) add(ctx context.Context, t Target) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.controllers[t.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTargetExists, t.ID)
	}

	c, err := newController(ctx, t, r.fetcher, r.renderer, r.opts)
	if err != nil {
		return nil, fmt.Errorf("initialize target %q: %w", t.ID, err)
	}
	r.controllers[t.ID] = c
	return c, nil
}

// Navigate moves target id to page.
func (r *Registry) Navigate(id string, page int) error {
	c, ok := r.Controller(id)
	if !ok {
		r.logger.Debug().Str("target_id", id).Int("page", page).Msg("Navigation for unknown target")
		return fmt.Errorf("%w: %s", ErrUnknownTarget, id)
	}
	c.Navigate(page)
	return nil
}

// Controller returns the controller of target id.
func (r *Registry) Controller(id string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[id]
	return c, ok
}

// Targets returns the registered target ids in sorted order.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.controllers))
	for id := range r.controllers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Remove closes and forgets target id. Reports whether it was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	c, ok := r.controllers[id]
	delete(r.controllers, id)
	r.mu.Unlock()

	if ok {
		c.Close()
	}
	return ok
}

// Wait blocks until every target's in-flight fetches have been handled.
func (r *Registry) Wait() {
	r.mu.RLock()
	controllers := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		controllers = append(controllers, c)
	}
	r.mu.RUnlock()

	for _, c := range controllers {
		c.Wait()
	}
}

// Close closes all targets.
func (r *Registry) Close() {
	r.mu.Lock()
	controllers := r.controllers
	r.controllers = make(map[string]*Controller)
	r.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
}

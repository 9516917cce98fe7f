package pager

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/linkheader"
	"github.com/Sternrassler/pageview/pkg/window"
)

type row string

func (row) ItemKind() cache.Kind { return cache.KindRow }

type heading string

func (heading) ItemKind() cache.Kind { return cache.KindHeading }

type card string

func (card) ItemKind() cache.Kind { return cache.KindListing }

func cardsFor(page, n int) []cache.Item {
	items := make([]cache.Item, n)
	for i := range items {
		items[i] = card(fmt.Sprintf("p%d-c%d", page, i+1))
	}
	return items
}

func rowsFor(page, n int) []cache.Item {
	items := make([]cache.Item, n)
	for i := range items {
		items[i] = row(fmt.Sprintf("p%d-r%d", page, i+1))
	}
	return items
}

// fakeFetcher answers every request with rowsFor(page, size). Pages listed
// in gates block until their gate channel is closed; pages in failures fail.
type fakeFetcher struct {
	mu       sync.Mutex
	requests []FetchRequest
	gates    map[int]chan struct{}
	failures map[int]error
	metadata linkheader.Metadata
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		gates:    make(map[int]chan struct{}),
		failures: make(map[int]error),
	}
}

func (f *fakeFetcher) gate(page int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[page] = ch
	return ch
}

func (f *fakeFetcher) fail(page int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[page] = err
}

func (f *fakeFetcher) FetchPage(ctx context.Context, req FetchRequest) (Page, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate := f.gates[req.Page]
	err := f.failures[req.Page]
	meta := f.metadata
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}
	if err != nil {
		return Page{}, err
	}

	size := req.PageSize
	if meta.PageSize > 0 {
		size = meta.PageSize
	}
	return Page{Items: rowsFor(req.Page, size), Metadata: meta}, nil
}

func (f *fakeFetcher) requestsFor(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Page == page {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type renderEvent struct {
	kind   string // "page", "nav", "error"
	target string
	items  []cache.Item
	nav    window.NavBar
	page   int
	err    error
}

type recordingRenderer struct {
	mu     sync.Mutex
	events []renderEvent
}

func (r *recordingRenderer) RenderPage(targetID string, items []cache.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, renderEvent{kind: "page", target: targetID, items: items})
}

func (r *recordingRenderer) RenderNav(targetID string, nav window.NavBar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, renderEvent{kind: "nav", target: targetID, nav: nav})
}

func (r *recordingRenderer) RenderError(targetID string, page int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, renderEvent{kind: "error", target: targetID, page: page, err: err})
}

func (r *recordingRenderer) all() []renderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderEvent(nil), r.events...)
}

func (r *recordingRenderer) last(kind string) (renderEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].kind == kind {
			return r.events[i], true
		}
	}
	return renderEvent{}, false
}

func (r *recordingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Package testutil provides a paginated JSON API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CollectionPath is the path of the paginated collection.
const CollectionPath = "/items"

// Item is one element of the mock collection.
type Item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PagedAPI is a configurable mock of a Link-header paginated collection.
type PagedAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	items           []Item
	version         int
	defaultPageSize int
	serverPageSize  int
	sizeParam       string
	envelope        string
	encodeAmpersand bool
	maxAge          int
	remaining       int
	resetSeconds    int
	delay           time.Duration
	failures        []int

	// Tracking
	RequestCount      int
	ConditionalCount  int
	LastRequestHeader http.Header
	RequestedPages    []int
}

// NewPagedAPI starts a server whose collection holds total items.
func NewPagedAPI(total int) *PagedAPI {
	api := &PagedAPI{
		handlers:        make(map[string]http.HandlerFunc),
		items:           makeItems(total),
		defaultPageSize: 10,
		sizeParam:       "pagesize",
		maxAge:          60,
		remaining:       -1,
	}

	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.RequestCount++
		api.LastRequestHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			api.ConditionalCount++
		}
		handler, exists := api.handlers[r.URL.Path]
		delay := api.delay
		api.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		if exists {
			handler(w, r)
			return
		}
		if r.URL.Path == CollectionPath {
			api.serveCollection(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return api
}

func makeItems(total int) []Item {
	items := make([]Item, total)
	for i := range items {
		items[i] = Item{ID: i + 1, Name: fmt.Sprintf("item-%d", i+1)}
	}
	return items
}

// URL returns the collection URL.
func (a *PagedAPI) URL() string {
	return a.server.URL + CollectionPath
}

// ServerURL returns the server root URL.
func (a *PagedAPI) ServerURL() string {
	return a.server.URL
}

// Close shuts down the server.
func (a *PagedAPI) Close() {
	a.server.Close()
}

// Reset clears all tracking counters.
func (a *PagedAPI) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.RequestCount = 0
	a.ConditionalCount = 0
	a.LastRequestHeader = nil
	a.RequestedPages = nil
}

// SetHandler overrides the handler for a path.
func (a *PagedAPI) SetHandler(path string, handler http.HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[path] = handler
}

// SetItems replaces the collection and invalidates every ETag.
func (a *PagedAPI) SetItems(total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = makeItems(total)
	a.version++
}

// SetSizeParam selects the page size parameter dialect ("pagesize" or "size").
func (a *PagedAPI) SetSizeParam(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sizeParam = name
}

// SetServerPageSize makes the server ignore the requested size and use n.
func (a *PagedAPI) SetServerPageSize(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.serverPageSize = n
}

// SetEnvelope wraps pages in an object, items under key.
func (a *PagedAPI) SetEnvelope(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.envelope = key
}

// SetEncodedAmpersands writes &amp; instead of & in Link URLs.
func (a *PagedAPI) SetEncodedAmpersands(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.encodeAmpersand = on
}

// SetMaxAge sets the Cache-Control max-age of pages.
func (a *PagedAPI) SetMaxAge(seconds int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxAge = seconds
}

// SetQuota makes responses carry X-RateLimit-Remaining and X-RateLimit-Reset.
func (a *PagedAPI) SetQuota(remaining, resetSeconds int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remaining = remaining
	a.resetSeconds = resetSeconds
}

// SetDelay delays every response.
func (a *PagedAPI) SetDelay(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = d
}

// FailNext makes the next requests answer with the given statuses, in order.
func (a *PagedAPI) FailNext(statuses ...int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures = append(a.failures, statuses...)
}

// GetRequestCount returns the number of requests made to the server.
func (a *PagedAPI) GetRequestCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.RequestCount
}

// GetConditionalCount returns the number of conditional requests.
func (a *PagedAPI) GetConditionalCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ConditionalCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (a *PagedAPI) GetLastRequestHeader() http.Header {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.LastRequestHeader.Clone()
}

// GetRequestedPages returns the page numbers requested from the collection, in order.
func (a *PagedAPI) GetRequestedPages() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]int(nil), a.RequestedPages...)
}

func (a *PagedAPI) serveCollection(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	query := r.URL.Query()
	page := atoiDefault(query.Get("page"), 1)
	size := atoiDefault(query.Get(a.sizeParam), a.defaultPageSize)
	if a.serverPageSize > 0 {
		size = a.serverPageSize
	}
	a.RequestedPages = append(a.RequestedPages, page)

	var status int
	if len(a.failures) > 0 {
		status = a.failures[0]
		a.failures = a.failures[1:]
	}

	total := len(a.items)
	lastPage := max((total+size-1)/size, 1)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	pageItems := append([]Item(nil), a.items[start:end]...)

	etag := fmt.Sprintf(`"p%d-s%d-v%d"`, page, size, a.version)
	link := a.linkHeader("http://"+r.Host+r.URL.Path, page, size, lastPage)
	envelope := a.envelope
	maxAge := a.maxAge
	remaining, reset := a.remaining, a.resetSeconds
	a.mu.Unlock()

	if remaining >= 0 {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error": %q}`, http.StatusText(status))
		return
	}

	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", maxAge))
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Link", link)

	var body any = pageItems
	if envelope != "" {
		body = map[string]any{envelope: pageItems, "total": total}
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *PagedAPI) linkHeader(base string, page, size, lastPage int) string {
	sep := "&"
	if a.encodeAmpersand {
		sep = "&amp;"
	}
	link := func(p int, rel string) string {
		return fmt.Sprintf(`<%s?page=%d%s%s=%d>; rel="%s"`, base, p, sep, a.sizeParam, size, rel)
	}

	parts := []string{link(1, "first")}
	if page > 1 {
		parts = append(parts, link(page-1, "prev"))
	}
	if page < lastPage {
		parts = append(parts, link(page+1, "next"))
	}
	parts = append(parts, link(lastPage, "last"))
	return strings.Join(parts, ", ")
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

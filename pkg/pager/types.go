package pager

import (
	"context"
	"errors"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/linkheader"
	"github.com/Sternrassler/pageview/pkg/window"
)

var (
	// ErrUnknownTarget is returned for operations on a target that was never initialized or was removed.
	ErrUnknownTarget = errors.New("unknown rendering target")

	// ErrTargetExists is returned when a target id is initialized twice.
	ErrTargetExists = errors.New("rendering target already initialized")

	// ErrInvalidPageSize is returned when a target has no positive page size.
	ErrInvalidPageSize = errors.New("items per page must be positive")

	// ErrEmptyTargetID is returned when a target has no id.
	ErrEmptyTargetID = errors.New("target id is required")
)

// State is the controller state.
type State int

const (
	// StateIdle means the content of the current page is on screen.
	StateIdle State = iota
	// StateAwaitingFetch means a page was requested from the fetcher and the content area is cleared.
	StateAwaitingFetch
)

func (s State) String() string {
	if s == StateAwaitingFetch {
		return "awaiting_fetch"
	}
	return "idle"
}

// StalePolicy decides what happens to responses of superseded fetches.
type StalePolicy int

const (
	// StaleDiscard renders only the response to the latest request.
	StaleDiscard StalePolicy = iota
	// StaleLastWins renders every response in arrival order.
	StaleLastWins
)

func (p StalePolicy) String() string {
	if p == StaleLastWins {
		return "last_wins"
	}
	return "discard"
}

// FetchRequest asks the fetcher for one page of a target.
type FetchRequest struct {
	RequestID string
	TargetID  string
	Page      int
	PageSize  int
}

// Page is a fetched page of items and the pagination metadata of its response.
type Page struct {
	Items    []cache.Item
	Metadata linkheader.Metadata
}

// Fetcher retrieves pages on cache misses.
type Fetcher interface {
	FetchPage(ctx context.Context, req FetchRequest) (Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req FetchRequest) (Page, error)

// FetchPage calls f.
func (f FetcherFunc) FetchPage(ctx context.Context, req FetchRequest) (Page, error) {
	return f(ctx, req)
}

// Renderer turns controller output into something visible.
//
// Methods are called with the controller lock held, in transition order.
// Implementations must not call back into the controller synchronously.
type Renderer interface {
	// RenderPage replaces the content area of the target with items.
	RenderPage(targetID string, items []cache.Item)
	// RenderNav replaces the target's pagination bar.
	RenderNav(targetID string, nav window.NavBar)
	// RenderError replaces the content area with an error indicator for page.
	RenderError(targetID string, page int, err error)
}

// Target describes a rendering target at initialization.
type Target struct {
	ID           string
	CacheType    cache.Type
	TotalItems   int
	ItemsPerPage int

	// InitialItems are the items already on screen for page 1.
	InitialItems []cache.Item

	// Heading is the persistent heading of tabular targets. When nil, the first
	// heading-kind item of InitialItems is used.
	Heading cache.Item
}

// TargetFromPage derives a Target from the first response of a source.
// A page size reported by the server replaces configuredPerPage; the item
// total is lastPage × pageSize. Without pagination metadata the first page is
// the whole result set.
func TargetFromPage(id string, typ cache.Type, first Page, configuredPerPage int, heading cache.Item) Target {
	perPage := configuredPerPage
	if size := first.Metadata.PageSize; size > 0 && size != perPage {
		perPage = size
	}

	total := first.Metadata.LastPage * perPage
	if first.Metadata.LastPage == 0 {
		total = contentCount(first.Items)
	}

	return Target{
		ID:           id,
		CacheType:    typ,
		TotalItems:   total,
		ItemsPerPage: perPage,
		InitialItems: first.Items,
		Heading:      heading,
	}
}

func contentCount(items []cache.Item) int {
	n := 0
	for _, item := range items {
		if cache.KindOf(item) != cache.KindHeading {
			n++
		}
	}
	return n
}

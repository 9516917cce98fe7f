package pager

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/linkheader"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func tabularTarget(totalItems, perPage int) Target {
	initial := append([]cache.Item{heading("H")}, rowsFor(1, perPage)...)
	return Target{
		ID:           "results",
		CacheType:    cache.TypeTabular,
		TotalItems:   totalItems,
		ItemsPerPage: perPage,
		InitialItems: initial,
	}
}

func newTestController(t *testing.T, target Target, opts ...Option) (*Controller, *fakeFetcher, *recordingRenderer) {
	t.Helper()
	f := newFakeFetcher()
	r := &recordingRenderer{}
	c, err := New(context.Background(), target, f, r, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, f, r
}

func withHeading(items []cache.Item) []cache.Item {
	return append([]cache.Item{heading("H")}, items...)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr error
	}{
		{"missing id", Target{ItemsPerPage: 10}, ErrEmptyTargetID},
		{"zero page size", Target{ID: "a"}, ErrInvalidPageSize},
		{"negative page size", Target{ID: "a", ItemsPerPage: -1}, ErrInvalidPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.target, newFakeFetcher(), &recordingRenderer{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestController_InitialState(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(95, 10))

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, c.CurrentPage())
	assert.Equal(t, 10, c.TotalPages())
	assert.Equal(t, 10, c.ItemsPerPage())
	assert.Equal(t, 0, f.total())
	assert.Equal(t, 0, r.count(), "first page is rendered by the caller")

	nav := c.NavBar()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, nav.Pages())
}

func TestController_NavBarSuppressedForSinglePage(t *testing.T) {
	c, _, _ := newTestController(t, tabularTarget(10, 10))
	assert.True(t, c.NavBar().Empty())
	assert.Equal(t, 1, c.TotalPages())
}

func TestController_MissThenHit(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(50, 10))

	c.Navigate(4)
	c.Wait()

	assert.Equal(t, 1, f.requestsFor(4))
	assert.Equal(t, 4, c.CurrentPage())
	assert.Equal(t, StateIdle, c.State())
	assert.True(t, c.Cached(4))

	page, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, withHeading(rowsFor(4, 10)), page.items)

	nav, ok := r.last("nav")
	require.True(t, ok)
	assert.Equal(t, 4, nav.nav.Current)

	c.Navigate(1)
	c.Navigate(4)
	c.Wait()

	assert.Equal(t, 1, f.requestsFor(4), "second visit must be served from cache")
	assert.Equal(t, 1, f.total())
	assert.Equal(t, 4, c.CurrentPage())
}

func TestController_FetchRequest(t *testing.T) {
	c, f, _ := newTestController(t, tabularTarget(50, 10))

	c.Navigate(3)
	c.Wait()

	require.Len(t, f.requests, 1)
	req := f.requests[0]
	assert.Equal(t, "results", req.TargetID)
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 10, req.PageSize)
	assert.NotEmpty(t, req.RequestID)
}

func TestController_BoundsRejection(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(50, 10))

	for _, p := range []int{0, -1, 6, 100} {
		c.Navigate(p)
	}
	c.Wait()

	assert.Equal(t, 1, c.CurrentPage())
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, f.total())
	assert.Equal(t, 0, r.count())
}

func TestController_SamePageIsNoop(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(50, 10))

	c.Navigate(1)

	assert.Equal(t, 0, f.total())
	assert.Equal(t, 0, r.count())
	assert.Equal(t, 0, c.CachedPages(), "no capture without leaving the page")
}

func TestController_HeadingPersistsWhileFetching(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(50, 10))
	gate := f.gate(2)

	c.Navigate(2)

	assert.Equal(t, StateAwaitingFetch, c.State())
	cleared, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, []cache.Item{heading("H")}, cleared.items)

	close(gate)
	c.Wait()

	page, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, withHeading(rowsFor(2, 10)), page.items)
	assert.Equal(t, StateIdle, c.State())
}

func TestController_ExplicitHeading(t *testing.T) {
	target := Target{
		ID:           "t",
		CacheType:    cache.TypeTabular,
		TotalItems:   30,
		ItemsPerPage: 10,
		InitialItems: rowsFor(1, 10),
		Heading:      heading("explicit"),
	}
	c, _, r := newTestController(t, target)

	c.Navigate(2)
	c.Wait()

	page, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, heading("explicit"), page.items[0])
	assert.Len(t, page.items, 11)
}

func TestController_CaptureFirstPage(t *testing.T) {
	tests := []struct {
		name          string
		typ           cache.Type
		wantRefetches int
		wantRender    []cache.Item
	}{
		{"tabular captures rows", cache.TypeTabular, 0, withHeading(rowsFor(1, 10))},
		{"listing captures items", cache.TypeListing, 0, cardsFor(1, 10)},
		{"generic refetches", cache.TypeGeneric, 1, rowsFor(1, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tabularTarget(30, 10)
			target.CacheType = tt.typ
			if tt.typ == cache.TypeListing {
				target.InitialItems = cardsFor(1, 10)
			}
			c, f, r := newTestController(t, target)

			c.Navigate(2)
			c.Wait()
			c.Navigate(1)
			c.Wait()

			assert.Equal(t, tt.wantRefetches, f.requestsFor(1))
			assert.Equal(t, 1, c.CurrentPage())

			page, ok := r.last("page")
			require.True(t, ok)
			if tt.typ == cache.TypeGeneric {
				// generic targets lose the heading row on refetch
				assert.Equal(t, rowsFor(1, 10), page.items)
				return
			}
			assert.Equal(t, tt.wantRender, page.items)
		})
	}
}

func TestController_FetchFailure(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(50, 10))
	boom := errors.New("upstream unavailable")
	f.fail(3, boom)

	c.Navigate(3)
	c.Wait()

	last := r.all()[len(r.all())-1]
	assert.Equal(t, "error", last.kind)
	assert.Equal(t, 3, last.page)
	assert.ErrorIs(t, last.err, boom)

	_, navRendered := r.last("nav")
	assert.False(t, navRendered, "nav bar is left untouched on failure")

	assert.Equal(t, 3, c.CurrentPage(), "failed page stays current")
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Cached(3))
	assert.True(t, c.Cached(1), "page 1 was captured before leaving")

	// re-navigating to the failed page retries
	f.fail(3, nil)
	c.Navigate(3)
	c.Wait()

	assert.Equal(t, 2, f.requestsFor(3))
	assert.True(t, c.Cached(3))
	page, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, withHeading(rowsFor(3, 10)), page.items)
}

func TestController_FailureLeavesNoCaptureOfErrorState(t *testing.T) {
	c, f, _ := newTestController(t, tabularTarget(50, 10))
	f.fail(3, errors.New("boom"))

	c.Navigate(3)
	c.Wait()
	c.Navigate(2)
	c.Wait()

	assert.False(t, c.Cached(3))
	assert.Equal(t, 2, c.CurrentPage())
}

func TestController_StaleDiscard(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(50, 10))
	slow := f.gate(2)
	fast := f.gate(3)

	c.Navigate(2)
	c.Navigate(3)

	close(fast)
	require.Eventually(t, func() bool { return c.CurrentPage() == 3 && c.State() == StateIdle }, waitFor, tick)

	close(slow)
	c.Wait()

	assert.Equal(t, 3, c.CurrentPage())
	assert.True(t, c.Cached(2), "stale response is still cached")

	page, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, withHeading(rowsFor(3, 10)), page.items)
}

func TestController_StaleLastWins(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(50, 10), WithStalePolicy(StaleLastWins))
	slow := f.gate(2)
	fast := f.gate(3)

	c.Navigate(2)
	c.Navigate(3)

	close(fast)
	require.Eventually(t, func() bool { return c.CurrentPage() == 3 }, waitFor, tick)

	close(slow)
	c.Wait()

	assert.Equal(t, 2, c.CurrentPage(), "the last response to arrive is shown")
	page, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, withHeading(rowsFor(2, 10)), page.items)
}

func TestController_CacheHitSupersedesPendingFetch(t *testing.T) {
	c, f, _ := newTestController(t, tabularTarget(50, 10))
	gate := f.gate(4)

	c.Navigate(4)
	c.Navigate(1)
	assert.Equal(t, 1, c.CurrentPage())
	assert.Equal(t, StateIdle, c.State())

	close(gate)
	c.Wait()

	assert.Equal(t, 1, c.CurrentPage())
	assert.True(t, c.Cached(4))
}

func TestController_AdoptsServerPageSize(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(100, 10))
	f.metadata = linkheader.Metadata{LastPage: 4, PageSize: 25}

	c.Navigate(2)
	c.Wait()

	assert.Equal(t, 25, c.ItemsPerPage())
	assert.Equal(t, 4, c.TotalPages())
	assert.Equal(t, 2, c.CurrentPage())
	assert.Equal(t, 1, c.CachedPages(), "pages cut at the old size are dropped")
	assert.True(t, c.Cached(2))

	nav, ok := r.last("nav")
	require.True(t, ok)
	assert.Equal(t, 4, nav.nav.Total)

	page, ok := r.last("page")
	require.True(t, ok)
	assert.Len(t, page.items, 26)
}

func TestController_PageSizeShrinkRefetchesClampedPage(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(100, 10))
	f.metadata = linkheader.Metadata{PageSize: 50}

	c.Navigate(8)
	c.Wait()

	assert.Equal(t, 2, c.TotalPages())
	assert.Equal(t, 2, c.CurrentPage())
	assert.False(t, c.Cached(8), "page 8 does not exist at the new size")
	assert.Equal(t, 1, f.requestsFor(2))

	c.Navigate(1)
	c.Wait()
	c.Navigate(2)

	page, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, withHeading(rowsFor(2, 50)), page.items)

	for _, e := range r.all() {
		for _, item := range e.items {
			assert.NotContains(t, fmt.Sprint(item), "p8-", "items of page 8 were rendered")
		}
	}
}

func TestController_StaleResponseDoesNotChangePageSize(t *testing.T) {
	c, f, _ := newTestController(t, tabularTarget(100, 10))
	f.metadata = linkheader.Metadata{PageSize: 50}
	abandoned := f.gate(5)
	latest := f.gate(9)
	f.fail(9, errors.New("server down"))

	c.Navigate(5)
	c.Navigate(9)
	close(abandoned)
	close(latest)
	c.Wait()

	assert.Equal(t, 10, c.ItemsPerPage())
	assert.Equal(t, 10, c.TotalPages())
	assert.Equal(t, 9, c.CurrentPage())
	assert.False(t, c.Cached(5), "items cut at another size are not cached")
}

func TestController_FailureAfterPageSizeShrinkStaysInRange(t *testing.T) {
	c, f, _ := newTestController(t, tabularTarget(100, 10), WithStalePolicy(StaleLastWins))
	f.metadata = linkheader.Metadata{PageSize: 50}
	first := f.gate(5)
	second := f.gate(9)
	f.fail(9, errors.New("server down"))

	c.Navigate(5)
	c.Navigate(9)

	close(first)
	require.Eventually(t, func() bool { return c.TotalPages() == 2 }, waitFor, tick)

	close(second)
	c.Wait()

	assert.GreaterOrEqual(t, c.CurrentPage(), 1)
	assert.LessOrEqual(t, c.CurrentPage(), c.TotalPages())
}

func TestController_Preload(t *testing.T) {
	target := Target{ID: "all", CacheType: cache.TypeTabular, ItemsPerPage: 10}
	c, f, r := newTestController(t, target)

	items := withHeading(rowsFor(0, 25))
	nav := c.Preload(items)

	assert.Equal(t, []int{1, 2, 3}, nav.Pages())
	assert.Equal(t, 3, c.CachedPages())

	first, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, withHeading(rowsFor(0, 25)[:10]), first.items)

	c.Navigate(3)
	c.Wait()

	assert.Equal(t, 0, f.total())
	last, ok := r.last("page")
	require.True(t, ok)
	assert.Equal(t, withHeading(rowsFor(0, 25)[20:]), last.items)
}

func TestController_Close(t *testing.T) {
	c, f, r := newTestController(t, tabularTarget(50, 10))
	f.gate(2)

	c.Navigate(2)
	before := r.count()

	c.Close()

	assert.Equal(t, before, r.count(), "responses after close are dropped")
	assert.False(t, c.Cached(2))

	c.Navigate(3)
	assert.Equal(t, 1, f.total())
}

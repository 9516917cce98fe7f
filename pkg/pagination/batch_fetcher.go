package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/logging"
	"github.com/Sternrassler/pageview/pkg/pager"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	MaxConcurrency int

	// Timeout per page fetch.
	Timeout time.Duration

	// PageSize is requested until the server reports its own.
	PageSize int
}

// DefaultConfig returns a conservative configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		PageSize:       50,
	}
}

// BatchFetcher fetches all pages of a source.
type BatchFetcher struct {
	fetcher pager.Fetcher
	config  Config
	logger  zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher pager.Fetcher, config Config) *BatchFetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("pagination"),
	}
}

// FetchAllPages fetches every page for targetID. On failure the pages fetched
// so far are returned together with the error.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context, targetID string) (map[int]pager.Page, error) {
	start := time.Now()

	first, err := bf.fetch(ctx, targetID, 1, bf.config.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	totalPages := max(first.Metadata.LastPage, 1)
	pageSize := bf.config.PageSize
	if first.Metadata.PageSize > 0 {
		pageSize = first.Metadata.PageSize
	}

	results := map[int]pager.Page{1: first}

	if totalPages == 1 {
		bf.logger.Info().
			Str("target_id", targetID).
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return results, nil
	}

	bf.logger.Info().
		Str("target_id", targetID).
		Int("total_pages", totalPages).
		Int("page_size", pageSize).
		Msg("Starting parallel page fetch")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for page := 2; page <= totalPages; page++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			p, err := bf.fetch(gctx, targetID, page, pageSize)
			if err != nil {
				bf.logger.Warn().
					Err(err).
					Int("page", page).
					Msg("Page fetch failed")
				return fmt.Errorf("page %d: %w", page, err)
			}

			mu.Lock()
			results[page] = p
			fetched := len(results)
			mu.Unlock()

			if fetched%50 == 0 {
				bf.logger.Info().
					Int("fetched", fetched).
					Int("total", totalPages).
					Float64("progress_pct", float64(fetched)/float64(totalPages)*100).
					Msg("Fetch progress")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		bf.logger.Warn().
			Err(err).
			Int("fetched_pages", len(results)).
			Int("total_pages", totalPages).
			Msg("Returning partial results")
		return results, fmt.Errorf("partial data (%d/%d pages): %w", len(results), totalPages, err)
	}

	bf.logger.Info().
		Str("target_id", targetID).
		Int("pages", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return results, nil
}

// FetchAll fetches every page and returns the items in page order together
// with the page size the server used.
func (bf *BatchFetcher) FetchAll(ctx context.Context, targetID string) ([]cache.Item, int, error) {
	pages, err := bf.FetchAllPages(ctx, targetID)
	if err != nil {
		return nil, 0, err
	}

	pageSize := bf.config.PageSize
	if size := pages[1].Metadata.PageSize; size > 0 {
		pageSize = size
	}
	return Flatten(pages), pageSize, nil
}

// Flatten concatenates the items of pages in ascending page order.
func Flatten(pages map[int]pager.Page) []cache.Item {
	numbers := make([]int, 0, len(pages))
	total := 0
	for n, p := range pages {
		numbers = append(numbers, n)
		total += len(p.Items)
	}
	sort.Ints(numbers)

	items := make([]cache.Item, 0, total)
	for _, n := range numbers {
		items = append(items, pages[n].Items...)
	}
	return items
}

func (bf *BatchFetcher) fetch(ctx context.Context, targetID string, page, size int) (pager.Page, error) {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()

	return bf.fetcher.FetchPage(pageCtx, pager.FetchRequest{
		RequestID: uuid.NewString(),
		TargetID:  targetID,
		Page:      page,
		PageSize:  size,
	})
}

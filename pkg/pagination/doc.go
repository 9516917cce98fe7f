// Package pagination gathers every page of a paginated source in parallel.
//
// The first page is fetched alone; its Link header metadata gives the last
// page and the server's page size. The remaining pages are fetched by a
// bounded group of goroutines through the same pager.Fetcher the controllers
// use, so rate limiting, the page store and retries apply unchanged.
//
// Example usage:
//
//	bf := pagination.NewBatchFetcher(client, pagination.DefaultConfig())
//	items, perPage, err := bf.FetchAll(ctx, "changes")
//	if err != nil {
//		return err
//	}
//	nav, err := registry.InitializePreloaded(ctx, "changes", cache.TypeTabular, items, perPage, heading)
//
// The batch fetcher:
//   - Fetches the first page to determine the page count
//   - Fans the remaining pages out to at most MaxConcurrency goroutines
//   - Stops at the first failure and returns the pages fetched so far
package pagination

// Package metrics exposes the Prometheus metrics of the pageview packages.
// All metrics are defined in their respective packages (cache, pager, client,
// ratelimit) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sternrassler/pageview/pkg/logging"
)

// Registry is the default Prometheus registry used by pageview.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	logger := logging.NewLogger("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Metrics Documentation
//
// Page Cache Metrics (pkg/cache):
//   - pageview_page_cache_hits_total{cache_type} (Counter): Page reads served from a target's cache
//   - pageview_page_cache_misses_total{cache_type} (Counter): Page reads that required a fetch
//   - pageview_page_cache_captures_total{cache_type} (Counter): Pages captured from the current render
//
// Page Store Metrics (pkg/cache):
//   - pageview_store_hits_total{layer="redis"} (Counter): Fetched pages served from the shared store
//   - pageview_store_misses_total (Counter): Shared store misses
//   - pageview_store_written_bytes_total{layer="redis"} (Counter): Bytes written to the store
//   - pageview_304_responses_total (Counter): 304 Not Modified responses
//   - pageview_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - pageview_store_errors_total{operation} (Counter): Store operation errors
//
// Navigation Metrics (pkg/pager):
//   - pageview_navigations_total{result} (Counter): Navigations by result (hit, miss, noop, rejected)
//   - pageview_fetches_total{status} (Counter): Fetch completions (ok, error, stale, dropped)
//   - pageview_fetch_duration_seconds (Histogram): Fetch duration seen by the controller
//
// Request Metrics (pkg/client):
//   - pageview_requests_total{host, status} (Counter): Requests by host and HTTP status
//   - pageview_request_duration_seconds{host} (Histogram): Request duration by host
//   - pageview_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - pageview_circuit_breaker_state{name} (Gauge): 0 closed, 1 half-open, 2 open
//
// Retry Metrics (pkg/client):
//   - pageview_retries_total{error_class} (Counter): Retry attempts by error class
//   - pageview_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - pageview_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pageview_rate_limit_remaining{host} (Gauge): Requests remaining in the current window
//   - pageview_rate_limit_blocks_total{host} (Counter): Requests blocked at the critical threshold
//   - pageview_rate_limit_throttles_total{host} (Counter): Requests throttled at the warning threshold
//
// Example Prometheus Queries:
//
//   # Page Cache Hit Rate
//   sum(rate(pageview_page_cache_hits_total[5m])) /
//   (sum(rate(pageview_page_cache_hits_total[5m])) + sum(rate(pageview_page_cache_misses_total[5m])))
//
//   # Stale Fetch Ratio
//   rate(pageview_fetches_total{status="stale"}[5m]) / rate(pageview_fetches_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(pageview_request_duration_seconds_bucket[5m]))
//
//   # Low Quota
//   pageview_rate_limit_remaining < 20

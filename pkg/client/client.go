// Package client fetches pages of a JSON collection paginated with RFC 8288
// Link headers. Client implements pager.Fetcher.
//
// Each request passes the source's rate limit gate, a local token bucket and a
// circuit breaker, and is retried with exponential backoff on server, network
// and 429 errors. With Redis configured, fetched pages are kept in a shared
// page store and revalidated with conditional requests once they expire.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/Sternrassler/pageview/pkg/cache"
	"github.com/Sternrassler/pageview/pkg/linkheader"
	"github.com/Sternrassler/pageview/pkg/logging"
	"github.com/Sternrassler/pageview/pkg/pager"
	"github.com/Sternrassler/pageview/pkg/ratelimit"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageview_requests_total",
		Help: "Total page requests by host and status",
	}, []string{"host", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pageview_request_duration_seconds",
		Help:    "Page request duration in seconds by host",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageview_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pageview_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
)

// maxBodyBytes caps the size of a page body.
const maxBodyBytes = 32 << 20

// Config holds the client configuration.
type Config struct {
	// BaseURL is the collection URL. Its query parameters are sent with every page request.
	BaseURL string

	// UserAgent is sent with every request (REQUIRED).
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// ItemsPath is the gjson path of the item array in a page body.
	// Empty means the body itself is the array.
	ItemsPath string

	// PageParam and SizeParam name the pagination query parameters.
	PageParam string
	SizeParam string

	// Redis enables the shared page store and shared rate limit state. Optional.
	Redis *redis.Client

	// RequestsPerSecond paces requests; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxRetries, when positive, overrides the attempts allowed per error class.
	MaxRetries int

	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32

	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:           baseURL,
		UserAgent:         userAgent,
		PageParam:         linkheader.ParamPage,
		SizeParam:         linkheader.ParamPageSize,
		RequestsPerSecond: 10,
		Burst:             5,
		Timeout:           30 * time.Second,
		BreakerFailures:   5,
		BreakerTimeout:    30 * time.Second,
	}
}

// Client fetches pages from one paginated source.
type Client struct {
	httpClient *http.Client
	tracker    *ratelimit.Tracker
	limiter    *rate.Limiter
	store      *cache.Manager
	breaker    *gobreaker.CircuitBreaker
	retry      RetryPolicy
	config     Config
	logger     zerolog.Logger

	base   *url.URL
	source string
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, errors.New("user-agent is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.PageParam == "" {
		cfg.PageParam = linkheader.ParamPage
	}
	if cfg.SizeParam == "" {
		cfg.SizeParam = linkheader.ParamPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	logger := logging.NewLogger("client")

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	var store *cache.Manager
	if cfg.Redis != nil {
		store = cache.NewManager(cfg.Redis)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		tracker: ratelimit.NewTracker(cfg.Redis, logger),
		limiter: rate.NewLimiter(limit, burst),
		store:   store,
		config:  cfg,
		logger:  logger,
		base:    base,
		source:  base.Scheme + "://" + base.Host + base.Path,
	}

	c.retry = RetryConfigForErrorClass
	if cfg.MaxRetries > 0 {
		c.retry = func(class ErrorClass) RetryConfig {
			rc := RetryConfigForErrorClass(class)
			rc.MaxAttempts = cfg.MaxRetries
			return rc
		}
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        base.Host,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return c, nil
}

// FetchPage implements pager.Fetcher.
func (c *Client) FetchPage(ctx context.Context, req pager.FetchRequest) (pager.Page, error) {
	if req.Page < 1 {
		return pager.Page{}, fmt.Errorf("invalid page %d", req.Page)
	}

	logger := c.logger.With().
		Str("request_id", req.RequestID).
		Str("target_id", req.TargetID).
		Int("page", req.Page).
		Int("page_size", req.PageSize).
		Logger()

	key := cache.CacheKey{
		Source:      c.source,
		QueryParams: c.base.Query(),
		Page:        req.Page,
		PageSize:    req.PageSize,
	}

	var cached *cache.CacheEntry
	if c.store != nil {
		entry, err := c.store.Get(ctx, key)
		switch {
		case err == nil && !entry.IsExpired():
			logger.Debug().Dur("ttl", entry.TTL()).Msg("Page served from store")
			return pageFromEntry(entry), nil
		case err == nil:
			cached = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Page store get error")
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(req.Page, req.PageSize), nil)
	if err != nil {
		return pager.Page{}, fmt.Errorf("create request: %w", err)
	}

	if cached != nil && cache.ShouldMakeConditionalRequest(cached) {
		cache.AddConditionalHeaders(httpReq, cached)
		cache.ConditionalRequestsSent.Inc()
		logger.Debug().Str("etag", cached.ETag).Msg("Making conditional request")
	}

	resp, err := c.Do(httpReq)
	if err != nil {
		return pager.Page{}, fmt.Errorf("fetch page %d: %w", req.Page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && cached != nil {
		logger.Info().Msg("304 Not Modified - using stored page")
		fresh, _ := cache.EntryFromResponse(resp, nil)
		refreshed, err := c.store.Refresh(ctx, key, fresh.Expires)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to refresh stored page")
			return pageFromEntry(cached), nil
		}
		return pageFromEntry(refreshed), nil
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := resp.Status
		if s := strings.TrimSpace(string(snippet)); s != "" {
			msg += ": " + s
		}
		return pager.Page{}, &FetchError{
			StatusCode: resp.StatusCode,
			ErrorClass: classifyStatus(resp.StatusCode),
			Message:    msg,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return pager.Page{}, fmt.Errorf("read page %d: %w", req.Page, err)
	}

	items, err := extractItems(body, c.config.ItemsPath)
	if err != nil {
		return pager.Page{}, fmt.Errorf("decode page %d: %w", req.Page, err)
	}

	if c.store != nil {
		entry, err := cache.EntryFromResponse(resp, items)
		if err == nil {
			err = c.store.Set(ctx, key, entry)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to store page")
		} else {
			logger.Debug().Dur("ttl", entry.TTL()).Msg("Stored page")
		}
	}

	page := pager.Page{
		Items:    toItems(items),
		Metadata: linkheader.FromHeader(resp.Header).Metadata(),
	}

	logger.Debug().
		Int("items", len(page.Items)).
		Int("last_page", page.Metadata.LastPage).
		Msg("Page fetched")

	return page, nil
}

// FetchFirst fetches page 1, the response a target is initialized from.
func (c *Client) FetchFirst(ctx context.Context, targetID string, pageSize int) (pager.Page, error) {
	return c.FetchPage(ctx, pager.FetchRequest{
		RequestID: uuid.NewString(),
		TargetID:  targetID,
		Page:      1,
		PageSize:  pageSize,
	})
}

// Do performs an HTTP request through the rate limit gate, the local pacer,
// the circuit breaker and the retry loop. Responses with 4xx status are
// returned to the caller; 5xx and 429 responses are retried and, when
// retries run out, returned as errors.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	host := req.URL.Host

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	allowed, err := c.tracker.ShouldAllowRequest(ctx, host)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().Str("host", host).Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(host, "rate_limited").Inc()
		return nil, ErrRequestBlocked
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for request slot: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("host", host).
		Str("url", req.URL.String()).
		Msg("Executing request")

	var resp *http.Response
	err = retryWithBackoff(ctx, c.retry, c.logger, func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.attempt(req)
		})
		if err != nil {
			return err
		}
		resp = out.(*http.Response)
		return nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			requestsTotal.WithLabelValues(host, "circuit_open").Inc()
			return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, host)
		}
		return nil, err
	}

	return resp, nil
}

// attempt sends req once. Server and rate limit responses become errors so
// the breaker counts them.
func (c *Client) attempt(req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("host", host).Msg("HTTP request failed")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(host, "network_error").Inc()
		return nil, &FetchError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	if err := c.tracker.UpdateFromHeaders(req.Context(), host, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	requestsTotal.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()

	errClass := classifyStatus(resp.StatusCode)
	if errClass != "" {
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("host", host).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Request error")
	}

	if errClass == ErrorClassServer || errClass == ErrorClassRateLimit {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return resp, nil
}

func (c *Client) pageURL(page, size int) string {
	u := *c.base
	q := u.Query()
	q.Set(c.config.PageParam, strconv.Itoa(page))
	if size > 0 {
		q.Set(c.config.SizeParam, strconv.Itoa(size))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// parseRetryAfter reads a Retry-After value in seconds or as an HTTP date.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// Store returns the page store, or nil without Redis.
func (c *Client) Store() *cache.Manager {
	return c.store
}

// Tracker returns the rate limit tracker.
func (c *Client) Tracker() *ratelimit.Tracker {
	return c.tracker
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetRetryPolicy replaces the retry policy (for testing).
func (c *Client) SetRetryPolicy(policy RetryPolicy) {
	c.retry = policy
}

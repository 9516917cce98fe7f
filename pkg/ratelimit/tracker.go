package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	quotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pageview_rate_limit_remaining",
		Help: "Requests remaining in the current rate limit window",
	}, []string{"host"})

	rateLimitBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageview_rate_limit_blocks_total",
		Help: "Total number of requests blocked due to an exhausted quota",
	}, []string{"host"})

	rateLimitThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pageview_rate_limit_throttles_total",
		Help: "Total number of requests throttled due to a low quota",
	}, []string{"host"})
)

// DefaultThrottleDelay is how long a request waits when the quota is low.
const DefaultThrottleDelay = time.Second

// Tracker records source quotas and gates requests.
type Tracker struct {
	redis         *redis.Client
	logger        zerolog.Logger
	throttleDelay time.Duration

	mu    sync.Mutex
	local map[string]State
}

// NewTracker creates a rate limit tracker. With a nil Redis client state is
// kept in process memory.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:         redisClient,
		logger:        logger,
		throttleDelay: DefaultThrottleDelay,
		local:         make(map[string]State),
	}
}

// SetThrottleDelay changes the wait applied while the quota is low.
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

func redisKey(host string) string {
	return redisKeyPrefix + host
}

// GetState returns the quota state of host. A host without recorded state,
// or whose window has reset, reports a default healthy state.
func (t *Tracker) GetState(ctx context.Context, host string) (*State, error) {
	state, ok, err := t.load(ctx, host)
	if err != nil {
		return nil, err
	}
	if !ok || time.Now().After(state.ResetAt) {
		t.logger.Debug().Str("host", host).Msg("No current rate limit state, assuming healthy")
		return defaultState(host), nil
	}
	return state, nil
}

func (t *Tracker) load(ctx context.Context, host string) (*State, bool, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		s, ok := t.local[host]
		if !ok {
			return nil, false, nil
		}
		return &s, true, nil
	}

	fields, err := t.redis.HGetAll(ctx, redisKey(host)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("get rate limit state: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	remaining, err := strconv.Atoi(fields[fieldRemaining])
	if err != nil {
		return nil, false, fmt.Errorf("parse stored remaining: %w", err)
	}
	resetAt, err := strconv.ParseInt(fields[fieldResetAt], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse stored reset: %w", err)
	}
	lastUpdate, err := strconv.ParseInt(fields[fieldLastUpdate], 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse stored last update: %w", err)
	}

	s := &State{
		Host:       host,
		Remaining:  remaining,
		ResetAt:    time.Unix(resetAt, 0),
		LastUpdate: time.Unix(0, lastUpdate),
	}
	s.UpdateHealth()
	return s, true, nil
}

func (t *Tracker) store(ctx context.Context, s *State) error {
	if t.redis == nil {
		t.mu.Lock()
		t.local[s.Host] = *s
		t.mu.Unlock()
		return nil
	}

	key := redisKey(s.Host)
	pipe := t.redis.Pipeline()
	pipe.HSet(ctx, key,
		fieldRemaining, s.Remaining,
		fieldResetAt, s.ResetAt.Unix(),
		fieldLastUpdate, s.LastUpdate.UnixNano(),
	)
	pipe.Expire(ctx, key, s.TimeUntilReset()+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}
	return nil
}

// UpdateFromHeaders records the quota reported by a response from host.
// Responses without the remaining header are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, host string, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return errors.New(HeaderReset + " header missing")
	}

	resetValue, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	now := time.Now()
	state := &State{
		Host:       host,
		Remaining:  remain,
		ResetAt:    resetTime(now, resetValue),
		LastUpdate: now,
	}
	state.UpdateHealth()

	if err := t.store(ctx, state); err != nil {
		return err
	}

	quotaRemaining.WithLabelValues(host).Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Str("host", host).
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit CRITICAL - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Str("host", host).
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit WARNING - requests will be throttled")
	default:
		t.logger.Debug().
			Str("host", host).
			Int("remaining", remain).
			Bool("is_healthy", state.IsHealthy).
			Msg("Rate limit state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request to host may be sent now.
// It returns false while the quota is critical. In the warning range it
// waits for the throttle delay first, returning early with ctx's error if
// ctx is cancelled.
func (t *Tracker) ShouldAllowRequest(ctx context.Context, host string) (bool, error) {
	state, err := t.GetState(ctx, host)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Str("host", host).
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Rate limit critical - blocking request")

		rateLimitBlocksTotal.WithLabelValues(host).Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Str("host", host).
			Int("remaining", state.Remaining).
			Msg("Rate limit warning - throttling request")

		rateLimitThrottlesTotal.WithLabelValues(host).Inc()

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	return true, nil
}

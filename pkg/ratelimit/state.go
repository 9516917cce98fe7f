// Package ratelimit gates requests to a paginated source by the request quota
// it reports in the X-RateLimit-Remaining and X-RateLimit-Reset headers.
//
// State is kept per source host, in Redis when a client is configured so that
// several processes browsing the same source share one budget, and in memory
// otherwise.
package ratelimit

import (
	"time"
)

// Response headers carrying the quota.
const (
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// redisKeyPrefix is followed by the source host. Each key holds a hash with
// the fields below.
const (
	redisKeyPrefix   = "pageview:rate_limit:"
	fieldRemaining   = "remaining"
	fieldResetAt     = "reset_at"
	fieldLastUpdate  = "last_update"
	defaultRemaining = 100
)

// Thresholds for gating decisions.
const (
	// QuotaThresholdCritical blocks requests when fewer requests remain.
	QuotaThresholdCritical = 5

	// QuotaThresholdWarning throttles requests when fewer requests remain.
	QuotaThresholdWarning = 20

	// QuotaThresholdHealthy marks the quota as healthy at or above this value.
	QuotaThresholdHealthy = 50
)

// epochCutoff separates the two X-RateLimit-Reset dialects: values above it
// are Unix timestamps, smaller values are seconds until reset.
const epochCutoff = 1_000_000_000

// State is the last known quota of one source host.
type State struct {
	Host string `json:"host"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last read from response headers.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when Remaining >= QuotaThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// defaultState is assumed until a response reports real numbers.
func defaultState(host string) *State {
	now := time.Now()
	s := &State{
		Host:       host,
		Remaining:  defaultRemaining,
		ResetAt:    now.Add(time.Minute),
		LastUpdate: now,
	}
	s.UpdateHealth()
	return s
}

// IsStale returns true if the state is older than maxAge.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// NeedsCriticalBlock returns true if requests must be held back until reset.
func (s *State) NeedsCriticalBlock() bool {
	return s.Remaining < QuotaThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.Remaining < QuotaThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0 if it already has.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth recomputes IsHealthy from Remaining.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Remaining >= QuotaThresholdHealthy
}

// resetTime interprets an X-RateLimit-Reset value relative to now.
func resetTime(now time.Time, value int64) time.Time {
	if value > epochCutoff {
		return time.Unix(value, 0)
	}
	return now.Add(time.Duration(value) * time.Second)
}

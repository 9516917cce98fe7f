package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested page is not in the store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Manager stores fetched pages in Redis so that several processes browsing the
// same source share responses and their validators.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a page store backed by Redis.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get retrieves a stored page.
// Returns ErrCacheMiss if the key doesn't exist.
// Expired entries are still returned so their validators can be revalidated;
// callers check IsExpired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreMisses.Inc()
			return nil, ErrCacheMiss
		}
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	StoreHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set stores a page. The Redis key outlives the entry's freshness by
// revalidateWindow so a stale entry can still answer a 304.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 && !ShouldMakeConditionalRequest(entry) {
		// stale and not revalidatable
		return nil
	}
	ttl += revalidateWindow

	data, err := json.Marshal(entry)
	if err != nil {
		StoreErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		StoreErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	StoreBytes.WithLabelValues("redis").Add(float64(len(data)))

	return nil
}

// Delete removes a stored page.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Refresh extends a stored page after a 304 Not Modified response.
func (m *Manager) Refresh(ctx context.Context, key CacheKey, newExpires time.Time) (*CacheEntry, error) {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	entry.Expires = newExpires
	if err := m.Set(ctx, key, entry); err != nil {
		return nil, err
	}
	NotModifiedResponses.Inc()

	return entry, nil
}

// revalidateWindow is how long an expired entry is kept for conditional requests.
const revalidateWindow = 10 * time.Minute

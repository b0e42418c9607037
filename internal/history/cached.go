package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
)

// profileKeyPrefix namespaces profile entries in the shared cache.
const profileKeyPrefix = "profile:"

// Cached wraps a history store with a profile read cache. Appends
// invalidate the user's cached profile so the next analysis sees the
// new transaction.
type Cached struct {
	store  domain.HistoryStore
	cache  domain.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps store with cache. Cache failures are logged and
// treated as misses; the store stays authoritative.
func NewCached(store domain.HistoryStore, cache domain.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{store: store, cache: cache, ttl: ttl, logger: logger}
}

func (c *Cached) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	key := profileKeyPrefix + userID

	if data, err := c.cache.Get(ctx, key); err == nil && data != nil {
		var profile domain.UserProfile
		if err := json.Unmarshal(data, &profile); err == nil {
			metrics.ProfileCacheHits.WithLabelValues("hit").Inc()
			return &profile, nil
		}
		// Corrupt entry; fall through to the store.
		c.cache.Delete(ctx, key)
	}
	metrics.ProfileCacheHits.WithLabelValues("miss").Inc()

	profile, err := c.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(profile); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("failed to cache profile", "userId", userID, "error", err)
		}
	}
	return profile, nil
}

func (c *Cached) Append(ctx context.Context, tx *domain.Transaction, verdict *domain.Verdict) error {
	if err := c.store.Append(ctx, tx, verdict); err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, profileKeyPrefix+tx.UserID); err != nil {
		c.logger.Warn("failed to invalidate cached profile", "userId", tx.UserID, "error", err)
	}
	return nil
}

func (c *Cached) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	return c.store.GetTransaction(ctx, txID)
}

func (c *Cached) GetVerdict(ctx context.Context, verdictID string) (*domain.Verdict, error) {
	return c.store.GetVerdict(ctx, verdictID)
}

func (c *Cached) Ping(ctx context.Context) error { return c.store.Ping(ctx) }
func (c *Cached) Close() error                   { return c.store.Close() }

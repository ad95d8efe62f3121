package subscription

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/helios-erp/helios/internal/extensions"
)

// Checker answers entitlement questions per protected operation. Results
// are cached for a short TTL; on network failure a stale cached value is
// returned flagged offline, and absence of any cache denies access.
type Checker struct {
	client EntitlementClient
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time

	// Observe, when set, receives the outcome label of every verification.
	Observe func(result string)
}

// NewChecker constructs a Checker. ttl defaults to DefaultTTL.
func NewChecker(client EntitlementClient, cache *Cache, ttl time.Duration, logger *slog.Logger) *Checker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{client: client, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Verify resolves access for one extension. Free extensions always pass.
// For gated kinds it consults the cache, falls through to the remote
// service, and degrades gracefully when offline. The error is
// ErrSubscriptionRequired or ErrOfflineUnverified when access is denied.
func (c *Checker) Verify(ctx context.Context, extensionID string, kind extensions.Kind) (Result, error) {
	if !Gated(kind) {
		c.observed("free")
		return Result{ExtensionID: extensionID, HasActiveSubscription: true, Status: StatusFree, FetchedAt: c.now()}, nil
	}

	cached, found, err := c.cache.Get(ctx, extensionID)
	if err != nil {
		c.logger.Warn("entitlement cache read", slog.Any("error", err))
	}
	if found && cached.Fresh(c.now(), c.ttl) {
		return c.gate(cached)
	}

	// Concurrent verifications for the same extension share one fetch.
	fetched, err, _ := c.group.Do(extensionID, func() (any, error) {
		res, err := c.client.Fetch(ctx, extensionID)
		if err != nil {
			return Result{}, err
		}
		if putErr := c.cache.Put(ctx, res); putErr != nil {
			c.logger.Warn("entitlement cache write", slog.Any("error", putErr))
		}
		return res, nil
	})
	if err != nil {
		if found {
			c.logger.Warn("entitlement service unreachable, serving stale cache",
				slog.String("extension", extensionID), slog.Any("error", err))
			stale := cached
			stale.Status = StatusOffline
			return c.gate(stale)
		}
		c.logger.Warn("entitlement service unreachable, no cache, denying",
			slog.String("extension", extensionID), slog.Any("error", err))
		c.observed("offline_denied")
		return Result{ExtensionID: extensionID, Status: StatusOffline, FetchedAt: c.now()}, ErrOfflineUnverified
	}
	return c.gate(fetched.(Result))
}

func (c *Checker) gate(res Result) (Result, error) {
	if res.HasActiveSubscription {
		c.observed("allowed")
		return res, nil
	}
	c.observed("denied")
	return res, ErrSubscriptionRequired
}

func (c *Checker) observed(result string) {
	if c.Observe != nil {
		c.Observe(result)
	}
}

// ClearCache invalidates one extension's entry, or every entry when
// extensionID is empty.
func (c *Checker) ClearCache(ctx context.Context, extensionID string) error {
	if extensionID == "" {
		return c.cache.DeleteAll(ctx)
	}
	return c.cache.Delete(ctx, extensionID)
}

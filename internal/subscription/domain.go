// Package subscription verifies entitlements for paid extensions against
// a remote service, with short-lived caching and offline degradation.
package subscription

import (
	"errors"
	"time"

	"github.com/helios-erp/helios/internal/extensions"
)

// DefaultTTL is how long a cached entitlement counts as fresh.
const DefaultTTL = 5 * time.Minute

// ErrSubscriptionRequired is returned when a paid extension has no active
// entitlement.
var ErrSubscriptionRequired = errors.New("subscription: active subscription required")

// ErrOfflineUnverified is returned when the remote service is unreachable
// and no cached entitlement exists.
var ErrOfflineUnverified = errors.New("subscription: offline, entitlement cannot be verified")

// Status mirrors the remote entitlement state, plus the local-only
// "offline" marker for stale-cache fallbacks.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusNone    Status = "none"
	StatusOffline Status = "offline"
	StatusFree    Status = "free"
)

// Result is a point-in-time entitlement answer. It must never be trusted
// beyond its freshness window.
type Result struct {
	ExtensionID           string    `json:"extension_id"`
	HasActiveSubscription bool      `json:"has_active_subscription"`
	Status                Status    `json:"status"`
	PeriodEnd             time.Time `json:"period_end"`
	FetchedAt             time.Time `json:"fetched_at"`
}

// Fresh reports whether the result is younger than ttl.
func (r Result) Fresh(now time.Time, ttl time.Duration) bool {
	return !r.FetchedAt.IsZero() && now.Sub(r.FetchedAt) < ttl
}

// Gated reports whether a kind of extension needs entitlement checks.
func Gated(kind extensions.Kind) bool {
	return kind == extensions.KindPaid || kind == extensions.KindSubscription
}

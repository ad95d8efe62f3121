package subscription

import (
	"errors"
	"net/http"

	"github.com/helios-erp/helios/internal/extensions"
	"github.com/helios-erp/helios/internal/platform/httpx"
)

// Require gates an extension's protected routes. The check runs on every
// request so entitlement revocation takes effect within the cache TTL.
func Require(checker *Checker, extensionID string, kind extensions.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := checker.Verify(r.Context(), extensionID, kind)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ErrOfflineUnverified):
				httpx.Problem(w, http.StatusServiceUnavailable, "Offline", "entitlement cannot be verified while offline")
			case errors.Is(err, ErrSubscriptionRequired):
				httpx.Problem(w, http.StatusPaymentRequired, "Subscription Required", "an active subscription is required for "+extensionID)
			default:
				httpx.RespondError(w, err)
			}
		})
	}
}

package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// EntitlementClient fetches the remote entitlement for one extension.
type EntitlementClient interface {
	Fetch(ctx context.Context, extensionID string) (Result, error)
}

// HTTPClient talks to the entitlement service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs a client with a short timeout so a slow remote
// cannot stall protected requests beyond the cache fallback.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type entitlementResponse struct {
	HasActiveSubscription bool      `json:"has_active_subscription"`
	Status                string    `json:"status"`
	PeriodEnd             time.Time `json:"period_end"`
}

// Fetch calls GET /entitlements/{extension_id}.
func (c *HTTPClient) Fetch(ctx context.Context, extensionID string) (Result, error) {
	endpoint := c.baseURL + "/entitlements/" + url.PathEscape(extensionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("subscription: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("subscription: fetch entitlement: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Result{ExtensionID: extensionID, Status: StatusNone, FetchedAt: time.Now()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("subscription: entitlement service returned %d", resp.StatusCode)
	}

	var body entitlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("subscription: decode entitlement: %w", err)
	}
	status := Status(body.Status)
	switch status {
	case StatusActive, StatusExpired, StatusNone:
	default:
		status = StatusNone
	}
	return Result{
		ExtensionID:           extensionID,
		HasActiveSubscription: body.HasActiveSubscription,
		Status:                status,
		PeriodEnd:             body.PeriodEnd,
		FetchedAt:             time.Now(),
	}, nil
}

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/helios-erp/helios/internal/extensions"
	"github.com/helios-erp/helios/internal/subscription"
)

// WarmHandler refreshes entitlement cache entries so request-time checks
// mostly hit fresh cache.
type WarmHandler struct {
	checker *subscription.Checker
	logger  *slog.Logger
}

// NewWarmHandler constructs the handler.
func NewWarmHandler(checker *subscription.Checker, logger *slog.Logger) *WarmHandler {
	return &WarmHandler{checker: checker, logger: logger}
}

// Handle processes TaskEntitlementWarm tasks. Denials are expected output
// here, not task failures.
func (h *WarmHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload EntitlementWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	for _, id := range payload.ExtensionIDs {
		res, err := h.checker.Verify(ctx, id, extensions.KindSubscription)
		if err != nil {
			h.logger.Info("entitlement warm: not entitled",
				slog.String("extension", id), slog.String("status", string(res.Status)))
			continue
		}
		h.logger.Debug("entitlement warmed", slog.String("extension", id))
	}
	return nil
}

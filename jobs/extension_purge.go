package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PurgeHandler drops an uninstalled extension's tables and permission rows.
type PurgeHandler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPurgeHandler constructs the handler.
func NewPurgeHandler(pool *pgxpool.Pool, logger *slog.Logger) *PurgeHandler {
	return &PurgeHandler{pool: pool, logger: logger}
}

// Handle processes TaskExtensionPurge tasks. Table names outside the
// extension's namespace are skipped, never dropped.
func (h *PurgeHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ExtensionPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	for _, table := range payload.Tables {
		table = strings.ToLower(strings.TrimSpace(table))
		if table == "" || !strings.HasPrefix(table, payload.Namespace+"_") && table != payload.Namespace {
			h.logger.Warn("purge skipped out-of-namespace table",
				slog.String("extension", payload.ExtensionID), slog.String("table", table))
			continue
		}
		if _, err := h.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, table)); err != nil {
			return fmt.Errorf("jobs: drop table %s: %w", table, err)
		}
		h.logger.Info("purged extension table",
			slog.String("extension", payload.ExtensionID), slog.String("table", table))
	}
	if _, err := h.pool.Exec(ctx, `DELETE FROM extension_migrations WHERE extension_id = $1`, payload.ExtensionID); err != nil {
		return fmt.Errorf("jobs: clear migration ledger: %w", err)
	}
	if _, err := h.pool.Exec(ctx, `DELETE FROM permissions WHERE extension_id = $1`, payload.ExtensionID); err != nil {
		return fmt.Errorf("jobs: clear permissions: %w", err)
	}
	return nil
}

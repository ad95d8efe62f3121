// Package jobs defines the host's Asynq background tasks.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExtensionPurge drops an uninstalled extension's data tables.
	TaskExtensionPurge = "extensions:purge"
	// TaskEntitlementWarm refreshes entitlement cache entries ahead of expiry.
	TaskEntitlementWarm = "subscription:warm"
)

// ExtensionPurgePayload names what the purge may touch. Only tables inside
// the extension's own namespace are ever dropped.
type ExtensionPurgePayload struct {
	ExtensionID string   `json:"extension_id"`
	Namespace   string   `json:"namespace"`
	Tables      []string `json:"tables"`
}

// NewExtensionPurgeTask constructs an Asynq task.
func NewExtensionPurgeTask(payload ExtensionPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExtensionPurge, data), nil
}

// EntitlementWarmPayload lists the paid extensions to refresh.
type EntitlementWarmPayload struct {
	ExtensionIDs []string `json:"extension_ids"`
}

// NewEntitlementWarmTask constructs an Asynq task.
func NewEntitlementWarmTask(payload EntitlementWarmPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEntitlementWarm, data), nil
}

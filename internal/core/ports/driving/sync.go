package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

// SyncOrchestrator runs sync batches over connections
type SyncOrchestrator interface {
	// SyncAll syncs every active connection
	SyncAll(ctx context.Context, trigger domain.SyncTrigger) (*domain.BatchSummary, error)

	// SyncTenant syncs the active connections of one tenant
	SyncTenant(ctx context.Context, tenantID string, trigger domain.SyncTrigger) (*domain.BatchSummary, error)

	// SyncConnection syncs a single connection
	SyncConnection(ctx context.Context, connectionID string, trigger domain.SyncTrigger) (*domain.BatchSummary, error)
}

// Scheduler drives periodic sweeps from the current sync mode
type Scheduler interface {
	// Start begins the trigger loop and runs one sweep immediately
	Start(ctx context.Context) error

	// Stop stops the trigger loop
	Stop()

	// ChangeMode replaces the trigger loop with one for the new mode
	ChangeMode(ctx context.Context, mode domain.SyncMode) (bool, error)

	// Mode returns the current sync mode
	Mode() domain.SyncMode
}

// ManualSyncRequest selects what a manual sync covers.
// ConnectionID wins over TenantID; neither means every active connection.
type ManualSyncRequest struct {
	ConnectionID string `json:"connection_id,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
}

// LimiterStatus is the rate limiter view included in sync status
type LimiterStatus struct {
	GlobalTokens   int `json:"global_tokens"`
	GlobalWaiters  int `json:"global_waiters"`
	AccountBuckets int `json:"account_buckets"`
}

// SyncStatus is the response of GetSyncStatus
type SyncStatus struct {
	CurrentMode   domain.SyncMode           `json:"current_mode"`
	PeriodSeconds float64                   `json:"period_seconds"`
	Connections   []domain.ConnectionStatus `json:"connections"`
	Limiter       LimiterStatus             `json:"limiter"`
	CheckedAt     time.Time                 `json:"checked_at"`
}

// SyncService exposes the inbound sync operations
type SyncService interface {
	// TriggerManualSync runs a sync batch now and returns its summary
	TriggerManualSync(ctx context.Context, req ManualSyncRequest) (*domain.BatchSummary, error)

	// ChangeSyncMode parses and installs a new sync mode.
	// Returns true when the mode differs from the current one.
	ChangeSyncMode(ctx context.Context, raw string) (bool, error)

	// GetSyncStatus reports the current mode and per-connection state
	GetSyncStatus(ctx context.Context) (*SyncStatus, error)

	// ListAdAccounts lists the ad accounts visible to a connection's credential
	ListAdAccounts(ctx context.Context, connectionID string) ([]*domain.AdAccount, error)
}

package driven

import (
	"context"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

// SyncSettingsStore persists the process-wide sync mode
type SyncSettingsStore interface {
	// GetSyncMode returns the stored mode, or domain.ErrNotFound when unset
	GetSyncMode(ctx context.Context) (domain.SyncMode, error)

	// SaveSyncMode stores the mode
	SaveSyncMode(ctx context.Context, mode domain.SyncMode) error
}

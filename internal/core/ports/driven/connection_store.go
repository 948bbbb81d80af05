package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

// ConnectionStore handles connection persistence (PostgreSQL)
type ConnectionStore interface {
	// Save creates or updates a connection
	Save(ctx context.Context, conn *domain.Connection) error

	// Get retrieves a connection by ID
	Get(ctx context.Context, id string) (*domain.Connection, error)

	// List retrieves all connections for a platform
	List(ctx context.Context, platform domain.Platform) ([]*domain.Connection, error)

	// ListActive retrieves the active connections for a platform
	ListActive(ctx context.Context, platform domain.Platform) ([]*domain.Connection, error)

	// ListByTenant retrieves the connections of one tenant for a platform
	ListByTenant(ctx context.Context, tenantID string, platform domain.Platform) ([]*domain.Connection, error)

	// SetActive updates the active flag
	SetActive(ctx context.Context, id string, active bool) error

	// MarkSynced records a successful sync and clears the last error
	MarkSynced(ctx context.Context, id string, at time.Time) error

	// MarkFailed records the last sync error without touching LastSyncedAt
	MarkFailed(ctx context.Context, id string, message string) error
}

package driven

import (
	"context"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

// MetricStore handles metric row persistence (PostgreSQL)
type MetricStore interface {
	// SaveMetrics upserts rows keyed by connection, level, object and window
	SaveMetrics(ctx context.Context, records []*domain.MetricRecord) error

	// ListByConnection retrieves the rows written for a connection
	ListByConnection(ctx context.Context, connectionID string) ([]*domain.MetricRecord, error)
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.MetricStore = (*MetricStore)(nil)

// MetricStore implements driven.MetricStore using PostgreSQL
type MetricStore struct {
	db *DB
}

// NewMetricStore creates a new MetricStore
func NewMetricStore(db *DB) *MetricStore {
	return &MetricStore{db: db}
}

const upsertMetricQuery = `
	INSERT INTO metrics (id, connection_id, tenant_id, account_id, level, object_id, object_name,
	                     time_window, date_start, date_stop, impressions, clicks, reach,
	                     spend, ctr, cpc, cpm, conversions, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (connection_id, level, object_id, time_window) DO UPDATE SET
		object_name = EXCLUDED.object_name,
		date_start = EXCLUDED.date_start,
		date_stop = EXCLUDED.date_stop,
		impressions = EXCLUDED.impressions,
		clicks = EXCLUDED.clicks,
		reach = EXCLUDED.reach,
		spend = EXCLUDED.spend,
		ctr = EXCLUDED.ctr,
		cpc = EXCLUDED.cpc,
		cpm = EXCLUDED.cpm,
		conversions = EXCLUDED.conversions,
		fetched_at = EXCLUDED.fetched_at
`

// SaveMetrics upserts all rows in one transaction
func (s *MetricStore) SaveMetrics(ctx context.Context, records []*domain.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertMetricQuery)
		if err != nil {
			return fmt.Errorf("prepare metric upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			_, err := stmt.ExecContext(ctx,
				r.ID, r.ConnectionID, r.TenantID, r.AccountID, string(r.Level),
				r.ObjectID, r.ObjectName, r.Window, r.DateStart, r.DateStop,
				r.Impressions, r.Clicks, r.Reach,
				r.Spend, r.CTR, r.CPC, r.CPM, r.Conversions, r.FetchedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("upsert metric %s/%s: %w", r.Level, r.ObjectID, err)
			}
		}
		return nil
	})
}

// ListByConnection retrieves the rows written for a connection, newest first
func (s *MetricStore) ListByConnection(ctx context.Context, connectionID string) ([]*domain.MetricRecord, error) {
	query := `
		SELECT id, connection_id, tenant_id, account_id, level, object_id, object_name,
		       time_window, date_start, date_stop, impressions, clicks, reach,
		       spend, ctr, cpc, cpm, conversions, fetched_at
		FROM metrics
		WHERE connection_id = $1
		ORDER BY fetched_at DESC, level, object_id
	`
	rows, err := s.db.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.MetricRecord
	for rows.Next() {
		var r domain.MetricRecord
		err := rows.Scan(
			&r.ID, &r.ConnectionID, &r.TenantID, &r.AccountID, &r.Level,
			&r.ObjectID, &r.ObjectName, &r.Window, &r.DateStart, &r.DateStop,
			&r.Impressions, &r.Clicks, &r.Reach,
			&r.Spend, &r.CTR, &r.CPC, &r.CPM, &r.Conversions, &r.FetchedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

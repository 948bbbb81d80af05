package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncSettingsStore = (*SyncSettingsStore)(nil)

// SyncSettingsStore implements driven.SyncSettingsStore on a single-row table
type SyncSettingsStore struct {
	db *DB
}

// NewSyncSettingsStore creates a new SyncSettingsStore
func NewSyncSettingsStore(db *DB) *SyncSettingsStore {
	return &SyncSettingsStore{db: db}
}

// GetSyncMode returns the stored mode, or domain.ErrNotFound when unset
func (s *SyncSettingsStore) GetSyncMode(ctx context.Context) (domain.SyncMode, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT mode FROM sync_settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SyncMode{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SyncMode{}, err
	}
	return domain.ParseSyncMode(raw)
}

// SaveSyncMode stores the mode in its parseable string form
func (s *SyncSettingsStore) SaveSyncMode(ctx context.Context, mode domain.SyncMode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO sync_settings (id, mode, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			mode = EXCLUDED.mode,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, mode.String())
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

const connectionColumns = `id, tenant_id, platform, account_id, credential, is_active,
       last_synced_at, last_error, created_at, updated_at`

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
// Credentials are sealed at rest and opened on read.
type ConnectionStore struct {
	db  *DB
	enc *SecretEncryptor
}

// NewConnectionStore creates a new ConnectionStore
func NewConnectionStore(db *DB, enc *SecretEncryptor) *ConnectionStore {
	return &ConnectionStore{db: db, enc: enc}
}

// Save creates or updates a connection
func (s *ConnectionStore) Save(ctx context.Context, conn *domain.Connection) error {
	var credential []byte
	if conn.Credential != "" {
		blob, err := s.enc.Seal(conn.Credential, conn.ID)
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
		credential = blob
	}

	now := time.Now().UTC()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	query := `
		INSERT INTO connections (id, tenant_id, platform, account_id, credential, is_active,
		                         last_synced_at, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			platform = EXCLUDED.platform,
			account_id = EXCLUDED.account_id,
			credential = EXCLUDED.credential,
			is_active = EXCLUDED.is_active,
			last_synced_at = EXCLUDED.last_synced_at,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		conn.ID,
		conn.TenantID,
		string(conn.Platform),
		conn.AccountID,
		credential,
		conn.IsActive,
		nullTime(conn.LastSyncedAt),
		conn.LastError,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	return err
}

// Get retrieves a connection by ID
func (s *ConnectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	conn, err := s.scan(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// List retrieves all connections for a platform
func (s *ConnectionStore) List(ctx context.Context, platform domain.Platform) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE platform = $1 ORDER BY id`
	return s.query(ctx, query, string(platform))
}

// ListActive retrieves the active connections for a platform
func (s *ConnectionStore) ListActive(ctx context.Context, platform domain.Platform) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE platform = $1 AND is_active
		ORDER BY id`
	return s.query(ctx, query, string(platform))
}

// ListByTenant retrieves the connections of one tenant for a platform
func (s *ConnectionStore) ListByTenant(ctx context.Context, tenantID string, platform domain.Platform) ([]*domain.Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE tenant_id = $1 AND platform = $2
		ORDER BY id`
	return s.query(ctx, query, tenantID, string(platform))
}

// SetActive updates the active flag
func (s *ConnectionStore) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE connections SET is_active = $2, updated_at = NOW() WHERE id = $1`
	return s.execOne(ctx, query, id, active)
}

// MarkSynced records a successful sync and clears the last error
func (s *ConnectionStore) MarkSynced(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE connections SET last_synced_at = $2, last_error = '', updated_at = NOW() WHERE id = $1`
	return s.execOne(ctx, query, id, at.UTC())
}

// MarkFailed records the last sync error without touching last_synced_at
func (s *ConnectionStore) MarkFailed(ctx context.Context, id string, message string) error {
	query := `UPDATE connections SET last_error = $2, updated_at = NOW() WHERE id = $1`
	return s.execOne(ctx, query, id, message)
}

func (s *ConnectionStore) execOne(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ConnectionStore) query(ctx context.Context, query string, args ...any) ([]*domain.Connection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []*domain.Connection
	for rows.Next() {
		conn, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *ConnectionStore) scan(row rowScanner) (*domain.Connection, error) {
	var conn domain.Connection
	var credential []byte
	var lastSynced sql.NullTime

	err := row.Scan(
		&conn.ID,
		&conn.TenantID,
		&conn.Platform,
		&conn.AccountID,
		&credential,
		&conn.IsActive,
		&lastSynced,
		&conn.LastError,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(credential) > 0 {
		plain, err := s.enc.Open(credential, conn.ID)
		if err != nil {
			return nil, fmt.Errorf("open credential for connection %s: %w", conn.ID, err)
		}
		conn.Credential = plain
	}
	conn.LastSyncedAt = timePtr(lastSynced)
	return &conn, nil
}

package domain

import "time"

// Platform identifies the external ad platform a connection pulls from
type Platform string

const (
	// PlatformMetaAds is the only platform the sync engine talks to
	PlatformMetaAds Platform = "meta_ads"
)

// Connection binds one tenant to one ad account on the platform.
// The sync engine only reads IsActive, Credential and AccountID, and writes
// back IsActive=false on irrecoverable credential failure plus LastSyncedAt.
type Connection struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	Platform     Platform   `json:"platform"`
	AccountID    string     `json:"account_id"`
	Credential   string     `json:"-"` // Never serialized
	IsActive     bool       `json:"is_active"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasCredential reports whether a credential is stored for the connection
func (c *Connection) HasCredential() bool {
	return c.Credential != ""
}

// ConnectionStatus is the per-connection view returned by sync status queries
type ConnectionStatus struct {
	ConnectionID string     `json:"connection_id"`
	TenantID     string     `json:"tenant_id"`
	AccountID    string     `json:"account_id"`
	IsActive     bool       `json:"is_active"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Status builds the status view of the connection
func (c *Connection) Status() ConnectionStatus {
	return ConnectionStatus{
		ConnectionID: c.ID,
		TenantID:     c.TenantID,
		AccountID:    c.AccountID,
		IsActive:     c.IsActive,
		LastSyncedAt: c.LastSyncedAt,
		LastError:    c.LastError,
	}
}

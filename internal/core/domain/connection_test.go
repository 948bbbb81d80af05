package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestConnection_HasCredential(t *testing.T) {
	conn := &Connection{ID: "conn-1"}
	if conn.HasCredential() {
		t.Error("expected no credential")
	}

	conn.Credential = "token-abc"
	if !conn.HasCredential() {
		t.Error("expected credential to be present")
	}
}

func TestConnection_CredentialNotSerialized(t *testing.T) {
	conn := &Connection{
		ID:         "conn-1",
		TenantID:   "tenant-1",
		AccountID:  "123",
		Credential: "super-secret-token",
		IsActive:   true,
	}

	data, err := json.Marshal(conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(data), "super-secret-token") {
		t.Errorf("credential leaked into JSON: %s", data)
	}
}

func TestConnection_Status(t *testing.T) {
	synced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conn := &Connection{
		ID:           "conn-1",
		TenantID:     "tenant-1",
		AccountID:    "123",
		IsActive:     false,
		LastSyncedAt: &synced,
		LastError:    "credential invalid",
	}

	status := conn.Status()
	if status.ConnectionID != "conn-1" || status.TenantID != "tenant-1" || status.AccountID != "123" {
		t.Errorf("unexpected identity fields: %+v", status)
	}
	if status.IsActive {
		t.Error("expected inactive status")
	}
	if status.LastSyncedAt == nil || !status.LastSyncedAt.Equal(synced) {
		t.Errorf("expected last synced %v, got %v", synced, status.LastSyncedAt)
	}
	if status.LastError != "credential invalid" {
		t.Errorf("unexpected last error %q", status.LastError)
	}
}

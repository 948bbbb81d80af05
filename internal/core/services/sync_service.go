package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/adsync-core/internal/clock"
	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driving"
	"github.com/custodia-labs/adsync-core/internal/ratelimit"
)

// Ensure syncService implements driving.SyncService
var _ driving.SyncService = (*syncService)(nil)

// LimiterStats reports the rate limiter state for status queries
type LimiterStats interface {
	Stats() ratelimit.Snapshot
}

// SyncServiceConfig holds dependencies for the sync service
type SyncServiceConfig struct {
	Orchestrator driving.SyncOrchestrator
	Scheduler    driving.Scheduler
	Connections  driven.ConnectionStore
	Platform     driven.AdPlatform
	Limiter      LimiterStats // Optional
	Clock        clock.Clock
	Logger       *slog.Logger
}

// syncService implements driving.SyncService
type syncService struct {
	orchestrator driving.SyncOrchestrator
	scheduler    driving.Scheduler
	connections  driven.ConnectionStore
	platform     driven.AdPlatform
	limiter      LimiterStats
	clock        clock.Clock
	logger       *slog.Logger
}

// NewSyncService creates a new SyncService
func NewSyncService(cfg SyncServiceConfig) driving.SyncService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	return &syncService{
		orchestrator: cfg.Orchestrator,
		scheduler:    cfg.Scheduler,
		connections:  cfg.Connections,
		platform:     cfg.Platform,
		limiter:      cfg.Limiter,
		clock:        c,
		logger:       logger,
	}
}

// TriggerManualSync runs a batch for one connection, one tenant, or
// everything active when neither is given.
func (s *syncService) TriggerManualSync(ctx context.Context, req driving.ManualSyncRequest) (*domain.BatchSummary, error) {
	s.logger.Info("manual sync requested",
		"connection_id", req.ConnectionID,
		"tenant_id", req.TenantID,
	)

	switch {
	case req.ConnectionID != "":
		return s.orchestrator.SyncConnection(ctx, req.ConnectionID, domain.SyncTriggerManual)
	case req.TenantID != "":
		return s.orchestrator.SyncTenant(ctx, req.TenantID, domain.SyncTriggerManual)
	default:
		return s.orchestrator.SyncAll(ctx, domain.SyncTriggerManual)
	}
}

// ChangeSyncMode parses "realtime" or a number of minutes and installs it
func (s *syncService) ChangeSyncMode(ctx context.Context, raw string) (bool, error) {
	mode, err := domain.ParseSyncMode(raw)
	if err != nil {
		return false, err
	}
	return s.scheduler.ChangeMode(ctx, mode)
}

// GetSyncStatus reports the mode, every connection's last sync and the limiter
func (s *syncService) GetSyncStatus(ctx context.Context) (*driving.SyncStatus, error) {
	conns, err := s.connections.List(ctx, domain.PlatformMetaAds)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	mode := s.scheduler.Mode()
	status := &driving.SyncStatus{
		CurrentMode:   mode,
		PeriodSeconds: mode.Period().Seconds(),
		Connections:   make([]domain.ConnectionStatus, 0, len(conns)),
		CheckedAt:     s.clock.Now().UTC(),
	}
	for _, conn := range conns {
		status.Connections = append(status.Connections, conn.Status())
	}
	if s.limiter != nil {
		snap := s.limiter.Stats()
		status.Limiter = driving.LimiterStatus{
			GlobalTokens:   snap.GlobalTokens,
			GlobalWaiters:  snap.GlobalWaiters,
			AccountBuckets: snap.AccountBuckets,
		}
	}
	return status, nil
}

// ListAdAccounts lists the ad accounts visible to a connection's credential
func (s *syncService) ListAdAccounts(ctx context.Context, connectionID string) ([]*domain.AdAccount, error) {
	conn, err := s.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.HasCredential() {
		return nil, domain.ErrCredentialMissing
	}
	return s.platform.ListAdAccounts(ctx, conn.Credential)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/adsync-core/internal/clock"
	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driving"
	"github.com/custodia-labs/adsync-core/internal/metrics"
)

// Ensure SyncOrchestrator implements driving.SyncOrchestrator
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// DefaultConnectionDelay is the pause between two connections of a batch
const DefaultConnectionDelay = 30 * time.Second

// SyncOrchestrator pulls campaign and ad set insights for connections and
// writes them to the metric store. Connections run strictly one after
// another so every tenant draws from the same global quota in turn.
//
// Per connection:
//  1. Validate the credential (deactivate on failure, no retry)
//  2. List campaigns
//  3. For each active campaign read insights and ad sets
//  4. Save the metric rows and stamp LastSyncedAt
type SyncOrchestrator struct {
	connections driven.ConnectionStore
	metricStore driven.MetricStore
	platform    driven.AdPlatform
	window      string
	delay       time.Duration
	clock       clock.Clock
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// SyncOrchestratorConfig holds dependencies for SyncOrchestrator.
type SyncOrchestratorConfig struct {
	Connections driven.ConnectionStore
	Metrics     driven.MetricStore
	Platform    driven.AdPlatform

	// Window is the insights date preset (default: last_30d)
	Window string

	// ConnectionDelay is slept between connections. Zero uses
	// DefaultConnectionDelay, a negative value disables the pause.
	ConnectionDelay time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(cfg SyncOrchestratorConfig) *SyncOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	window := cfg.Window
	if window == "" {
		window = domain.InsightsWindowLast30Days
	}
	delay := cfg.ConnectionDelay
	if delay == 0 {
		delay = DefaultConnectionDelay
	}

	return &SyncOrchestrator{
		connections: cfg.Connections,
		metricStore: cfg.Metrics,
		platform:    cfg.Platform,
		window:      window,
		delay:       delay,
		clock:       c,
		logger:      logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			return clock.Sleep(ctx, c, d)
		},
		inFlight: make(map[string]struct{}),
	}
}

// SyncAll syncs every active connection
func (o *SyncOrchestrator) SyncAll(ctx context.Context, trigger domain.SyncTrigger) (*domain.BatchSummary, error) {
	conns, err := o.connections.ListActive(ctx, domain.PlatformMetaAds)
	if err != nil {
		return nil, fmt.Errorf("list active connections: %w", err)
	}
	return o.runBatch(ctx, trigger, conns), nil
}

// SyncTenant syncs the active connections of one tenant
func (o *SyncOrchestrator) SyncTenant(ctx context.Context, tenantID string, trigger domain.SyncTrigger) (*domain.BatchSummary, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrInvalidInput)
	}
	conns, err := o.connections.ListByTenant(ctx, tenantID, domain.PlatformMetaAds)
	if err != nil {
		return nil, fmt.Errorf("list tenant connections: %w", err)
	}

	active := make([]*domain.Connection, 0, len(conns))
	for _, conn := range conns {
		if conn.IsActive {
			active = append(active, conn)
		}
	}
	return o.runBatch(ctx, trigger, active), nil
}

// SyncConnection syncs a single connection. An inactive connection is
// reported as a failed result rather than attempted.
func (o *SyncOrchestrator) SyncConnection(ctx context.Context, connectionID string, trigger domain.SyncTrigger) (*domain.BatchSummary, error) {
	if connectionID == "" {
		return nil, fmt.Errorf("%w: connection id is required", domain.ErrInvalidInput)
	}
	conn, err := o.connections.Get(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", connectionID, err)
	}
	return o.runBatch(ctx, trigger, []*domain.Connection{conn}), nil
}

// runBatch syncs conns in order, pausing between them. Cancellation is
// honoured between connections; the current one always finishes.
func (o *SyncOrchestrator) runBatch(ctx context.Context, trigger domain.SyncTrigger, conns []*domain.Connection) *domain.BatchSummary {
	summary := domain.NewBatchSummary(trigger, o.clock.Now())
	o.logger.Info("sync batch starting",
		"run_id", summary.RunID,
		"trigger", trigger,
		"connections", len(conns),
	)

	for i, conn := range conns {
		if i > 0 && o.delay > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		summary.Add(o.syncOne(ctx, conn))
	}

	summary.Finish(o.clock.Now())
	elapsed := summary.CompletedAt.Sub(summary.StartedAt)
	metrics.RecordSyncBatch(string(trigger), elapsed, summary.Failed)

	if skipped := len(conns) - summary.Total; skipped > 0 {
		o.logger.Warn("sync batch cancelled", "run_id", summary.RunID, "skipped", skipped)
	}
	o.logger.Info("sync batch completed",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration", elapsed,
	)
	return summary
}

func (o *SyncOrchestrator) syncOne(ctx context.Context, conn *domain.Connection) *domain.SyncResult {
	start := o.clock.Now()
	result := &domain.SyncResult{
		ConnectionID: conn.ID,
		TenantID:     conn.TenantID,
		AccountID:    conn.AccountID,
	}
	defer func() {
		result.Duration = o.clock.Now().Sub(start).Seconds()
		metrics.RecordSyncResult(result.Success, result.Deactivated, result.MetricsWritten)
	}()

	if !conn.IsActive {
		result.Error = domain.ErrConnectionInactive.Error()
		return result
	}
	if !o.claim(conn.ID) {
		result.Error = domain.ErrSyncInProgress.Error()
		return result
	}
	defer o.release(conn.ID)

	logger := o.logger.With("connection_id", conn.ID, "account_id", conn.AccountID)

	if err := o.validate(ctx, conn); err != nil {
		o.fail(ctx, logger, conn, result, err)
		return result
	}

	campaigns, err := o.platform.ListCampaigns(ctx, conn.Credential, conn.AccountID)
	if err != nil {
		o.fail(ctx, logger, conn, result, fmt.Errorf("list campaigns: %w", err))
		return result
	}

	fetchedAt := o.clock.Now().UTC()
	var records []*domain.MetricRecord
	for _, campaign := range campaigns {
		if !campaign.IsActive() {
			continue
		}
		rows, err := o.syncCampaign(ctx, conn, campaign, fetchedAt)
		if err != nil {
			if domain.IsCredentialFailure(err) || ctx.Err() != nil {
				o.fail(ctx, logger, conn, result, fmt.Errorf("campaign %s: %w", campaign.ID, err))
				return result
			}
			result.CampaignsFailed++
			logger.Warn("campaign sync failed, skipping",
				"campaign_id", campaign.ID,
				"kind", domain.KindOf(err),
				"error", err,
			)
			continue
		}
		records = append(records, rows...)
		result.CampaignsProcessed++
	}

	if err := o.metricStore.SaveMetrics(ctx, records); err != nil {
		o.fail(ctx, logger, conn, result, fmt.Errorf("save metrics: %w", err))
		return result
	}
	result.MetricsWritten = len(records)

	if err := o.connections.MarkSynced(ctx, conn.ID, fetchedAt); err != nil {
		logger.Warn("failed to stamp last sync time", "error", err)
	}
	result.Success = true

	logger.Info("connection synced",
		"campaigns", result.CampaignsProcessed,
		"campaigns_failed", result.CampaignsFailed,
		"metrics", result.MetricsWritten,
	)
	return result
}

// validate checks the stored credential with the platform. Transport and
// rate-limit failures come back unchanged so they do not deactivate.
func (o *SyncOrchestrator) validate(ctx context.Context, conn *domain.Connection) error {
	if !conn.HasCredential() {
		return domain.ErrCredentialMissing
	}
	info, err := o.platform.ValidateToken(ctx, conn.Credential)
	if err != nil {
		return fmt.Errorf("validate credential: %w", err)
	}
	if !info.IsValid {
		return domain.ErrCredentialInvalid
	}
	return nil
}

func (o *SyncOrchestrator) syncCampaign(ctx context.Context, conn *domain.Connection, campaign *domain.Campaign, fetchedAt time.Time) ([]*domain.MetricRecord, error) {
	insights, err := o.platform.GetCampaignInsights(ctx, conn.Credential, conn.AccountID, campaign.ID, o.window)
	if err != nil {
		return nil, fmt.Errorf("insights: %w", err)
	}
	adSets, err := o.platform.ListAdSets(ctx, conn.Credential, conn.AccountID, campaign.ID, o.window)
	if err != nil {
		return nil, fmt.Errorf("ad sets: %w", err)
	}

	var rows []*domain.MetricRecord
	if insights != nil {
		rows = append(rows, domain.NewMetricRecord(conn, domain.MetricLevelCampaign, campaign.ID, campaign.Name, o.window, insights, fetchedAt))
	}
	for _, adSet := range adSets {
		if adSet.Insights == nil {
			continue
		}
		rows = append(rows, domain.NewMetricRecord(conn, domain.MetricLevelAdSet, adSet.ID, adSet.Name, o.window, adSet.Insights, fetchedAt))
	}
	return rows, nil
}

// fail records a failed result. Credential failures also deactivate the
// connection until a human re-authorizes it.
func (o *SyncOrchestrator) fail(ctx context.Context, logger *slog.Logger, conn *domain.Connection, result *domain.SyncResult, err error) {
	result.Error = err.Error()
	bg := context.WithoutCancel(ctx)

	if domain.IsCredentialFailure(err) {
		result.Deactivated = true
		if serr := o.connections.SetActive(bg, conn.ID, false); serr != nil {
			logger.Error("failed to deactivate connection", "error", serr)
		}
		logger.Warn("credential rejected, connection deactivated", "error", err)
	} else {
		logger.Error("connection sync failed", "kind", domain.KindOf(err), "error", err)
	}

	if merr := o.connections.MarkFailed(bg, conn.ID, err.Error()); merr != nil && !errors.Is(merr, domain.ErrNotFound) {
		logger.Warn("failed to record sync error", "error", merr)
	}
}

func (o *SyncOrchestrator) claim(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[id]; busy {
		return false
	}
	o.inFlight[id] = struct{}{}
	return true
}

func (o *SyncOrchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inFlight, id)
	o.mu.Unlock()
}

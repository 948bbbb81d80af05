package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncTrigger records what started a sync batch
type SyncTrigger string

const (
	SyncTriggerScheduled SyncTrigger = "scheduled"
	SyncTriggerManual    SyncTrigger = "manual"
)

// SyncResult is the outcome of syncing one connection within a batch.
// It is not persisted; batches aggregate results into a BatchSummary.
type SyncResult struct {
	ConnectionID       string  `json:"connection_id"`
	TenantID           string  `json:"tenant_id"`
	AccountID          string  `json:"account_id"`
	Success            bool    `json:"success"`
	CampaignsProcessed int     `json:"campaigns_processed"`
	CampaignsFailed    int     `json:"campaigns_failed"`
	MetricsWritten     int     `json:"metrics_written"`
	Deactivated        bool    `json:"deactivated,omitempty"`
	Error              string  `json:"error,omitempty"`
	Duration           float64 `json:"duration_seconds"`
}

// BatchSummary aggregates the results of one orchestrator pass
type BatchSummary struct {
	RunID       string        `json:"run_id"`
	Trigger     SyncTrigger   `json:"trigger"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Results     []*SyncResult `json:"results"`
}

// NewBatchSummary starts an empty summary for a batch run
func NewBatchSummary(trigger SyncTrigger, startedAt time.Time) *BatchSummary {
	return &BatchSummary{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: startedAt,
		Results:   []*SyncResult{},
	}
}

// Add records one connection result and updates the counters
func (b *BatchSummary) Add(result *SyncResult) {
	b.Results = append(b.Results, result)
	b.Total++
	if result.Success {
		b.Succeeded++
	} else {
		b.Failed++
	}
}

// Finish stamps the completion time
func (b *BatchSummary) Finish(completedAt time.Time) {
	b.CompletedAt = completedAt
}

// Result looks up the result for a connection, nil when absent
func (b *BatchSummary) Result(connectionID string) *SyncResult {
	for _, r := range b.Results {
		if r.ConnectionID == connectionID {
			return r
		}
	}
	return nil
}

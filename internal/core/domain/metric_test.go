package domain

import (
	"testing"
	"time"
)

func TestNewMetricRecord(t *testing.T) {
	conn := &Connection{ID: "conn-1", TenantID: "tenant-1", AccountID: "act-9"}
	fetched := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	in := &Insights{
		DateStart:   "2026-03-03",
		DateStop:    "2026-04-01",
		Impressions: 1200,
		Clicks:      48,
		Spend:       31.5,
		CTR:         4.0,
		CPC:         0.66,
		Conversions: 3,
	}

	rec := NewMetricRecord(conn, MetricLevelCampaign, "cmp-1", "Spring", InsightsWindowLast30Days, in, fetched)

	if rec.ID == "" {
		t.Error("expected generated ID")
	}
	if rec.ConnectionID != "conn-1" || rec.TenantID != "tenant-1" || rec.AccountID != "act-9" {
		t.Errorf("unexpected ownership fields: %+v", rec)
	}
	if rec.Level != MetricLevelCampaign || rec.ObjectID != "cmp-1" || rec.Window != "last_30d" {
		t.Errorf("unexpected object fields: %+v", rec)
	}
	if rec.Impressions != 1200 || rec.Clicks != 48 || rec.Spend != 31.5 || rec.Conversions != 3 {
		t.Errorf("unexpected numeric fields: %+v", rec)
	}
	if !rec.FetchedAt.Equal(fetched) {
		t.Errorf("expected fetched at %v, got %v", fetched, rec.FetchedAt)
	}
}

func TestNewMetricRecord_NilInsights(t *testing.T) {
	conn := &Connection{ID: "conn-1"}
	rec := NewMetricRecord(conn, MetricLevelAdSet, "as-1", "Lookalike", InsightsWindowLast30Days, nil, time.Now())

	if rec.Impressions != 0 || rec.Spend != 0 {
		t.Errorf("expected zero metrics, got %+v", rec)
	}
	if rec.Level != MetricLevelAdSet {
		t.Errorf("expected adset level, got %s", rec.Level)
	}
}

func TestCampaign_IsActive(t *testing.T) {
	if !(&Campaign{Status: StatusActive}).IsActive() {
		t.Error("ACTIVE campaign should be active")
	}
	if (&Campaign{Status: StatusPaused}).IsActive() {
		t.Error("PAUSED campaign should not be active")
	}
}

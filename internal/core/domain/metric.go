package domain

import (
	"time"

	"github.com/google/uuid"
)

// MetricLevel is the object level a metric row describes
type MetricLevel string

const (
	MetricLevelCampaign MetricLevel = "campaign"
	MetricLevelAdSet    MetricLevel = "adset"
	MetricLevelAd       MetricLevel = "ad"
)

// MetricRecord is one row written to the metric store.
// Rows are unique per (ConnectionID, Level, ObjectID, Window).
type MetricRecord struct {
	ID           string      `json:"id"`
	ConnectionID string      `json:"connection_id"`
	TenantID     string      `json:"tenant_id"`
	AccountID    string      `json:"account_id"`
	Level        MetricLevel `json:"level"`
	ObjectID     string      `json:"object_id"`
	ObjectName   string      `json:"object_name"`
	Window       string      `json:"window"`
	DateStart    string      `json:"date_start"`
	DateStop     string      `json:"date_stop"`
	Impressions  int64       `json:"impressions"`
	Clicks       int64       `json:"clicks"`
	Reach        int64       `json:"reach"`
	Spend        float64     `json:"spend"`
	CTR          float64     `json:"ctr"`
	CPC          float64     `json:"cpc"`
	CPM          float64     `json:"cpm"`
	Conversions  float64     `json:"conversions"`
	FetchedAt    time.Time   `json:"fetched_at"`
}

// NewMetricRecord builds a metric row for an object from its insights
func NewMetricRecord(conn *Connection, level MetricLevel, objectID, objectName, window string, in *Insights, fetchedAt time.Time) *MetricRecord {
	rec := &MetricRecord{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		TenantID:     conn.TenantID,
		AccountID:    conn.AccountID,
		Level:        level,
		ObjectID:     objectID,
		ObjectName:   objectName,
		Window:       window,
		FetchedAt:    fetchedAt,
	}
	if in != nil {
		rec.DateStart = in.DateStart
		rec.DateStop = in.DateStop
		rec.Impressions = in.Impressions
		rec.Clicks = in.Clicks
		rec.Reach = in.Reach
		rec.Spend = in.Spend
		rec.CTR = in.CTR
		rec.CPC = in.CPC
		rec.CPM = in.CPM
		rec.Conversions = in.Conversions
	}
	return rec
}

package domain

import "time"

// InsightsWindowLast30Days is the rolling window the sync engine reads
const InsightsWindowLast30Days = "last_30d"

// Campaign and ad set statuses reported by the platform
const (
	StatusActive = "ACTIVE"
	StatusPaused = "PAUSED"
)

// AdAccount is an ad account visible to a credential
type AdAccount struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	Status    int    `json:"account_status"`
}

// Campaign is a campaign of an ad account
type Campaign struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Objective string    `json:"objective,omitempty"`
	CreatedAt time.Time `json:"created_time,omitempty"`
}

// IsActive reports whether the campaign is currently delivering
func (c *Campaign) IsActive() bool {
	return c.Status == StatusActive
}

// AdSet is an ad set of a campaign, optionally carrying inline insights
type AdSet struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Insights   *Insights `json:"insights,omitempty"`
}

// Insights holds the numeric performance fields for one object and window
type Insights struct {
	DateStart   string  `json:"date_start"`
	DateStop    string  `json:"date_stop"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Reach       int64   `json:"reach"`
	Spend       float64 `json:"spend"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CPM         float64 `json:"cpm"`
	Conversions float64 `json:"conversions"`
}

// TokenInfo is the result of a token debug/validate call
type TokenInfo struct {
	AppID     string    `json:"app_id"`
	UserID    string    `json:"user_id"`
	IsValid   bool      `json:"is_valid"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
}

// TokenExchange is the result of exchanging a short-lived credential
type TokenExchange struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

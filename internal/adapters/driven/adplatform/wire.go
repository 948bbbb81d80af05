package adplatform

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

// Wire shapes of Graph API responses. Numeric insight fields arrive as strings.

type errorEnvelope struct {
	Error *domain.PlatformError `json:"error"`
}

type paging struct {
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

type listPage struct {
	Data   json.RawMessage `json:"data"`
	Paging *paging         `json:"paging"`
}

type debugTokenResponse struct {
	Data struct {
		AppID     string   `json:"app_id"`
		UserID    string   `json:"user_id"`
		IsValid   bool     `json:"is_valid"`
		ExpiresAt int64    `json:"expires_at"`
		Scopes    []string `json:"scopes"`
		Error     *struct {
			Code    int    `json:"code"`
			Subcode int    `json:"subcode"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"data"`
}

type meResponse struct {
	ID string `json:"id"`
}

type rawCampaign struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Objective   string `json:"objective"`
	CreatedTime string `json:"created_time"`
}

type rawAdSet struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Insights   *struct {
		Data []rawInsights `json:"data"`
	} `json:"insights"`
}

type rawAction struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

type rawInsights struct {
	DateStart   string      `json:"date_start"`
	DateStop    string      `json:"date_stop"`
	Impressions string      `json:"impressions"`
	Clicks      string      `json:"clicks"`
	Reach       string      `json:"reach"`
	Spend       string      `json:"spend"`
	CTR         string      `json:"ctr"`
	CPC         string      `json:"cpc"`
	CPM         string      `json:"cpm"`
	Actions     []rawAction `json:"actions"`
}

// conversionActions are the action types counted as conversions
var conversionActions = map[string]bool{
	"offsite_conversion":    true,
	"lead":                  true,
	"purchase":              true,
	"complete_registration": true,
	"onsite_conversion":     true,
}

const graphTimeLayout = "2006-01-02T15:04:05-0700"

func (r rawCampaign) toDomain() *domain.Campaign {
	c := &domain.Campaign{
		ID:        r.ID,
		Name:      r.Name,
		Status:    r.Status,
		Objective: r.Objective,
	}
	if t, err := time.Parse(graphTimeLayout, r.CreatedTime); err == nil {
		c.CreatedAt = t.UTC()
	}
	return c
}

func (r rawAdSet) toDomain() *domain.AdSet {
	a := &domain.AdSet{
		ID:         r.ID,
		CampaignID: r.CampaignID,
		Name:       r.Name,
		Status:     r.Status,
	}
	if r.Insights != nil && len(r.Insights.Data) > 0 {
		a.Insights = r.Insights.Data[0].toDomain()
	}
	return a
}

func (r rawInsights) toDomain() *domain.Insights {
	in := &domain.Insights{
		DateStart:   r.DateStart,
		DateStop:    r.DateStop,
		Impressions: parseInt(r.Impressions),
		Clicks:      parseInt(r.Clicks),
		Reach:       parseInt(r.Reach),
		Spend:       parseFloat(r.Spend),
		CTR:         parseFloat(r.CTR),
		CPC:         parseFloat(r.CPC),
		CPM:         parseFloat(r.CPM),
	}
	for _, a := range r.Actions {
		if isConversion(a.ActionType) {
			in.Conversions += parseFloat(a.Value)
		}
	}
	return in
}

func isConversion(actionType string) bool {
	if conversionActions[actionType] {
		return true
	}
	// e.g. offsite_conversion.fb_pixel_purchase
	return strings.HasPrefix(actionType, "offsite_conversion.")
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// usagePercent returns the highest utilisation figure in a usage header
// such as {"call_count":28,"total_cputime":25,"total_time":25} or
// {"acc_id_util_pct":9.67}. ok is false when the header is absent or malformed.
func usagePercent(header string) (float64, bool) {
	if header == "" {
		return 0, false
	}
	var fields map[string]any
	dec := json.NewDecoder(strings.NewReader(header))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return 0, false
	}

	max, found := 0.0, false
	for key, value := range fields {
		switch key {
		case "call_count", "total_cputime", "total_time", "acc_id_util_pct":
		default:
			continue
		}
		num, ok := value.(json.Number)
		if !ok {
			continue
		}
		f, err := num.Float64()
		if err != nil {
			continue
		}
		if !found || f > max {
			max, found = f, true
		}
	}
	return max, found
}

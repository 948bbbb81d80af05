// Package adplatform is the Graph-style REST client for the ad platform.
// Idempotent reads go through the response cache first; every HTTP round
// trip runs under the backoff controller, which holds a rate limiter token.
package adplatform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/adsync-core/internal/backoff"
	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
	"github.com/custodia-labs/adsync-core/internal/metrics"
)

// Verify interface compliance
var _ driven.AdPlatform = (*Client)(nil)

// maxBodyBytes bounds how much of a response body is read
const maxBodyBytes = 8 << 20

const (
	campaignFields = "id,name,status,objective,created_time"
	insightFields  = "impressions,clicks,reach,spend,ctr,cpc,cpm,actions,date_start,date_stop"
	accountFields  = "id,account_id,name,currency,account_status"
)

// Guard runs one platform call under the rate budget
type Guard interface {
	Run(ctx context.Context, req backoff.Request, op func(ctx context.Context) error) (backoff.Outcome, error)
	ObserveUsage(accountID string, percent float64)
}

// Client provides ad platform API operations.
type Client struct {
	cfg        *Config
	guard      Guard
	cache      driven.ResponseCache
	httpClient *http.Client
	breaker    *breaker
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a new ad platform client. cache may be nil to disable caching.
func NewClient(cfg *Config, guard Guard, cache driven.ResponseCache, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaults.MaxPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaults.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.APIVersion != "" {
		base += "/" + strings.Trim(cfg.APIVersion, "/")
	}

	return &Client{
		cfg:        cfg,
		guard:      guard,
		cache:      cache,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    newBreaker(cfg.BreakerFailures, cfg.BreakerTimeout, logger),
		baseURL:    base,
		logger:     logger,
	}
}

// ExchangeToken trades a short-lived user token for a long-lived one. Never cached.
func (c *Client) ExchangeToken(ctx context.Context, shortLived string) (*domain.TokenExchange, error) {
	if c.cfg.AppID == "" || c.cfg.AppSecret == "" {
		return nil, fmt.Errorf("%w: app credentials are not configured", domain.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", c.cfg.AppID)
	q.Set("client_secret", c.cfg.AppSecret)
	q.Set("fb_exchange_token", shortLived)

	var out domain.TokenExchange
	if err := c.get(ctx, "", "oauth_access_token", "/oauth/access_token", q, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateToken debugs the token with the app credentials, or probes /me
// when none are configured. Never cached.
func (c *Client) ValidateToken(ctx context.Context, token string) (*domain.TokenInfo, error) {
	if token == "" {
		return nil, domain.ErrCredentialMissing
	}

	if c.cfg.AppID == "" || c.cfg.AppSecret == "" {
		var me meResponse
		q := url.Values{}
		q.Set("fields", "id")
		if err := c.get(ctx, "", "me", "/me", q, token, &me); err != nil {
			return nil, err
		}
		return &domain.TokenInfo{UserID: me.ID, IsValid: me.ID != ""}, nil
	}

	q := url.Values{}
	q.Set("input_token", token)
	q.Set("access_token", c.cfg.AppID+"|"+c.cfg.AppSecret)

	var resp debugTokenResponse
	if err := c.get(ctx, "", "debug_token", "/debug_token", q, "", &resp); err != nil {
		return nil, err
	}

	info := &domain.TokenInfo{
		AppID:   resp.Data.AppID,
		UserID:  resp.Data.UserID,
		IsValid: resp.Data.IsValid,
		Scopes:  resp.Data.Scopes,
	}
	if resp.Data.ExpiresAt > 0 {
		info.ExpiresAt = time.Unix(resp.Data.ExpiresAt, 0).UTC()
	}
	if resp.Data.Error != nil {
		c.logger.Info("token debug reported an error",
			"code", resp.Data.Error.Code, "subcode", resp.Data.Error.Subcode, "message", resp.Data.Error.Message)
	}
	return info, nil
}

// ListAdAccounts lists the ad accounts the token can read
func (c *Client) ListAdAccounts(ctx context.Context, token string) ([]*domain.AdAccount, error) {
	params := map[string]string{"credential": credentialKey(token)}
	var accounts []*domain.AdAccount
	if c.cached(ctx, domain.EndpointAdAccounts, params, &accounts) {
		return accounts, nil
	}

	q := url.Values{}
	q.Set("fields", accountFields)
	err := c.list(ctx, "", "adaccounts", "/me/adaccounts", q, token, func(data json.RawMessage) error {
		var page []*domain.AdAccount
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		accounts = append(accounts, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.store(ctx, domain.EndpointAdAccounts, params, accounts)
	return accounts, nil
}

// ListCampaigns lists the campaigns of an ad account
func (c *Client) ListCampaigns(ctx context.Context, token, accountID string) ([]*domain.Campaign, error) {
	account := bareAccountID(accountID)
	params := map[string]string{"account_id": account, "credential": credentialKey(token)}
	var campaigns []*domain.Campaign
	if c.cached(ctx, domain.EndpointCampaigns, params, &campaigns) {
		return campaigns, nil
	}

	q := url.Values{}
	q.Set("fields", campaignFields)
	err := c.list(ctx, account, "campaigns", "/act_"+account+"/campaigns", q, token, func(data json.RawMessage) error {
		var page []rawCampaign
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		for _, r := range page {
			campaigns = append(campaigns, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.store(ctx, domain.EndpointCampaigns, params, campaigns)
	return campaigns, nil
}

// ListAdSets lists the ad sets of a campaign with their insights for the window
// fetched inline in the same request
func (c *Client) ListAdSets(ctx context.Context, token, accountID, campaignID, window string) ([]*domain.AdSet, error) {
	window = windowOrDefault(window)
	params := map[string]string{"campaign_id": campaignID, "date_preset": window, "credential": credentialKey(token)}
	var adSets []*domain.AdSet
	if c.cached(ctx, domain.EndpointAdSets, params, &adSets) {
		return adSets, nil
	}

	q := url.Values{}
	q.Set("fields", fmt.Sprintf("id,name,status,campaign_id,insights.date_preset(%s){%s}", window, insightFields))
	account := bareAccountID(accountID)
	err := c.list(ctx, account, "adsets", "/"+url.PathEscape(campaignID)+"/adsets", q, token, func(data json.RawMessage) error {
		var page []rawAdSet
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		for _, r := range page {
			adSets = append(adSets, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.store(ctx, domain.EndpointAdSets, params, adSets)
	return adSets, nil
}

// GetCampaignInsights reads campaign-level insights for the window.
// Returns nil insights when the campaign had no delivery.
func (c *Client) GetCampaignInsights(ctx context.Context, token, accountID, campaignID, window string) (*domain.Insights, error) {
	window = windowOrDefault(window)
	params := map[string]string{"campaign_id": campaignID, "date_preset": window, "credential": credentialKey(token)}
	var insights *domain.Insights
	if c.cached(ctx, domain.EndpointInsights, params, &insights) {
		return insights, nil
	}

	q := url.Values{}
	q.Set("date_preset", window)
	q.Set("fields", insightFields)

	var resp struct {
		Data []rawInsights `json:"data"`
	}
	path := "/" + url.PathEscape(campaignID) + "/insights"
	if err := c.get(ctx, bareAccountID(accountID), "insights", path, q, token, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) > 0 {
		insights = resp.Data[0].toDomain()
	}

	c.store(ctx, domain.EndpointInsights, params, insights)
	return insights, nil
}

// list walks cursor pages until the platform stops returning a next page
// or MaxPages is reached
func (c *Client) list(ctx context.Context, accountID, endpoint, path string, q url.Values, token string, handle func(json.RawMessage) error) error {
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	for page := 0; page < c.cfg.MaxPages; page++ {
		var resp listPage
		if err := c.get(ctx, accountID, endpoint, path, q, token, &resp); err != nil {
			return err
		}
		if len(resp.Data) > 0 {
			if err := handle(resp.Data); err != nil {
				return fmt.Errorf("decode %s page: %w", endpoint, err)
			}
		}
		if resp.Paging == nil || resp.Paging.Next == "" || resp.Paging.Cursors.After == "" {
			return nil
		}
		q.Set("after", resp.Paging.Cursors.After)
	}
	c.logger.Warn("page cap reached", "endpoint", endpoint, "max_pages", c.cfg.MaxPages)
	return nil
}

// get performs one guarded GET and decodes the JSON body into out.
// An open circuit, or a half-open one already probing, fails fast without
// spending a rate limit token.
func (c *Client) get(ctx context.Context, accountID, endpoint, path string, q url.Values, token string, out any) error {
	release, ok := c.breaker.admit()
	if !ok {
		return fmt.Errorf("%s: %w", endpoint, domain.ErrPlatformUnavailable)
	}
	defer release()
	req := backoff.Request{
		AccountID:    accountID,
		MaxRetries:   c.cfg.MaxRetries,
		InitialDelay: c.cfg.InitialDelay,
	}
	_, err := c.guard.Run(ctx, req, func(ctx context.Context) error {
		return c.breaker.run(func() error {
			return c.do(ctx, accountID, endpoint, path, q, token, out)
		})
	})
	return err
}

func (c *Client) do(ctx context.Context, accountID, endpoint, path string, q url.Values, token string, out any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordPlatformRequest(endpoint, "error", time.Since(start))
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordPlatformRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	c.observeUsage(resp.Header, accountID)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) observeUsage(h http.Header, accountID string) {
	if pct, ok := usagePercent(h.Get("X-App-Usage")); ok {
		c.guard.ObserveUsage("", pct)
	}
	if accountID == "" {
		return
	}
	if pct, ok := usagePercent(h.Get("X-Ad-Account-Usage")); ok {
		c.guard.ObserveUsage(accountID, pct)
	}
}

// cached decodes a fresh cache entry into out
func (c *Client) cached(ctx context.Context, class domain.EndpointClass, params map[string]string, out any) bool {
	if c.cache == nil {
		return false
	}
	payload, ok := c.cache.Get(ctx, class, params)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		c.logger.Warn("dropping undecodable cache entry", "class", class, "error", err)
		_ = c.cache.Clear(ctx, class, params)
		return false
	}
	return true
}

func (c *Client) store(ctx context.Context, class domain.EndpointClass, params map[string]string, value any) {
	if c.cache == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", "class", class, "error", err)
		return
	}
	if err := c.cache.Set(ctx, class, params, payload); err != nil {
		c.logger.Warn("cache write failed", "class", class, "error", err)
	}
}

// parseError builds a PlatformError from an error response body
func parseError(status int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		env.Error.HTTPStatus = status
		return env.Error
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &domain.PlatformError{HTTPStatus: status, Message: msg}
}

// bareAccountID strips the act_ prefix so buckets and cache keys agree
func bareAccountID(accountID string) string {
	return strings.TrimPrefix(strings.TrimSpace(accountID), "act_")
}

// credentialKey scopes cache entries to a credential without storing it
func credentialKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func windowOrDefault(window string) string {
	if window == "" {
		return domain.InsightsWindowLast30Days
	}
	return window
}

package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

var _ driven.AdPlatform = (*MockAdPlatform)(nil)

// MockAdPlatform is a mock implementation of AdPlatform for testing.
// Data is served from the exported maps unless a hook overrides the call.
type MockAdPlatform struct {
	mu    sync.Mutex
	calls map[string]int

	Accounts  []*domain.AdAccount
	Campaigns map[string][]*domain.Campaign // by account ID
	AdSets    map[string][]*domain.AdSet    // by campaign ID
	Insights  map[string]*domain.Insights   // by campaign ID

	// Custom behavior hooks (optional)
	ExchangeTokenFn       func(shortLived string) (*domain.TokenExchange, error)
	ValidateTokenFn       func(token string) (*domain.TokenInfo, error)
	ListCampaignsFn       func(token, accountID string) ([]*domain.Campaign, error)
	ListAdSetsFn          func(token, accountID, campaignID string) ([]*domain.AdSet, error)
	GetCampaignInsightsFn func(token, accountID, campaignID string) (*domain.Insights, error)
}

// NewMockAdPlatform creates a new MockAdPlatform
func NewMockAdPlatform() *MockAdPlatform {
	return &MockAdPlatform{
		calls:     make(map[string]int),
		Campaigns: make(map[string][]*domain.Campaign),
		AdSets:    make(map[string][]*domain.AdSet),
		Insights:  make(map[string]*domain.Insights),
	}
}

func (m *MockAdPlatform) record(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

// Calls returns how many times the named method was called
func (m *MockAdPlatform) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockAdPlatform) ExchangeToken(ctx context.Context, shortLived string) (*domain.TokenExchange, error) {
	m.record("ExchangeToken")
	if m.ExchangeTokenFn != nil {
		return m.ExchangeTokenFn(shortLived)
	}
	return &domain.TokenExchange{AccessToken: "long-" + shortLived, TokenType: "bearer"}, nil
}

func (m *MockAdPlatform) ValidateToken(ctx context.Context, token string) (*domain.TokenInfo, error) {
	m.record("ValidateToken")
	if m.ValidateTokenFn != nil {
		return m.ValidateTokenFn(token)
	}
	return &domain.TokenInfo{IsValid: true}, nil
}

func (m *MockAdPlatform) ListAdAccounts(ctx context.Context, token string) ([]*domain.AdAccount, error) {
	m.record("ListAdAccounts")
	return m.Accounts, nil
}

func (m *MockAdPlatform) ListCampaigns(ctx context.Context, token, accountID string) ([]*domain.Campaign, error) {
	m.record("ListCampaigns")
	if m.ListCampaignsFn != nil {
		return m.ListCampaignsFn(token, accountID)
	}
	return m.Campaigns[accountID], nil
}

func (m *MockAdPlatform) ListAdSets(ctx context.Context, token, accountID, campaignID, window string) ([]*domain.AdSet, error) {
	m.record("ListAdSets")
	if m.ListAdSetsFn != nil {
		return m.ListAdSetsFn(token, accountID, campaignID)
	}
	return m.AdSets[campaignID], nil
}

func (m *MockAdPlatform) GetCampaignInsights(ctx context.Context, token, accountID, campaignID, window string) (*domain.Insights, error) {
	m.record("GetCampaignInsights")
	if m.GetCampaignInsightsFn != nil {
		return m.GetCampaignInsightsFn(token, accountID, campaignID)
	}
	return m.Insights[campaignID], nil
}

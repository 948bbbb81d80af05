package driven

import (
	"context"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

// AdPlatform is the call surface of the external ad platform used by the
// sync engine. Implementations gate every call through the rate limiter and
// backoff controller and consult the response cache for reads.
type AdPlatform interface {
	// ExchangeToken trades a short-lived credential for a long-lived one
	ExchangeToken(ctx context.Context, shortLived string) (*domain.TokenExchange, error)

	// ValidateToken debugs a credential and reports its validity
	ValidateToken(ctx context.Context, token string) (*domain.TokenInfo, error)

	// ListAdAccounts lists the ad accounts visible to the credential
	ListAdAccounts(ctx context.Context, token string) ([]*domain.AdAccount, error)

	// ListCampaigns lists the campaigns of an ad account
	ListCampaigns(ctx context.Context, token, accountID string) ([]*domain.Campaign, error)

	// ListAdSets lists the ad sets of a campaign with inline insights for the window
	ListAdSets(ctx context.Context, token, accountID, campaignID, window string) ([]*domain.AdSet, error)

	// GetCampaignInsights reads the insights of a campaign for the window
	GetCampaignInsights(ctx context.Context, token, accountID, campaignID, window string) (*domain.Insights, error)
}

package driving

import (
	"context"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

// AuthService validates bearer tokens on inbound calls
type AuthService interface {
	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// IssueToken signs a token for an operator or service account
	IssueToken(ctx context.Context, auth domain.AuthContext) (string, error)
}

package driven

import "github.com/custodia-labs/adsync-core/internal/core/domain"

// AuthAdapter handles bearer token cryptographic operations for the sync API.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}

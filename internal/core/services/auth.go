package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/adsync-core/internal/clock"
	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// DefaultTokenTTL is the lifetime of issued tokens
const DefaultTokenTTL = 24 * time.Hour

// authService implements the AuthService interface
type authService struct {
	authAdapter driven.AuthAdapter
	tokenTTL    time.Duration
	clock       clock.Clock
}

// NewAuthService creates a new AuthService. A non-positive ttl uses DefaultTokenTTL.
func NewAuthService(authAdapter driven.AuthAdapter, ttl time.Duration, c clock.Clock) driving.AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if c == nil {
		c = clock.Real()
	}
	return &authService{
		authAdapter: authAdapter,
		tokenTTL:    ttl,
		clock:       c,
	}
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	if s.clock.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}
	if claims.UserID == "" || !validRole(claims.Role) {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AuthContext{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Role:     claims.Role,
		TenantID: claims.TenantID,
	}, nil
}

// IssueToken signs a token for an operator or service account
func (s *authService) IssueToken(ctx context.Context, auth domain.AuthContext) (string, error) {
	if auth.UserID == "" || !validRole(auth.Role) {
		return "", domain.ErrInvalidInput
	}
	if auth.Role == domain.RoleMember && auth.TenantID == "" {
		return "", domain.ErrInvalidInput
	}

	now := s.clock.Now()
	return s.authAdapter.GenerateToken(&domain.TokenClaims{
		UserID:    auth.UserID,
		Email:     auth.Email,
		Role:      auth.Role,
		TenantID:  auth.TenantID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.tokenTTL).Unix(),
	})
}

func validRole(r domain.Role) bool {
	return r == domain.RoleAdmin || r == domain.RoleMember
}

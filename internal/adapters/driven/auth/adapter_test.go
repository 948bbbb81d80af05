package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

func validClaims() *domain.TokenClaims {
	now := time.Now()
	return &domain.TokenClaims{
		UserID:    "user-1",
		Email:     "ops@example.com",
		Role:      domain.RoleAdmin,
		TenantID:  "tenant-1",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
}

func TestNewAdapter(t *testing.T) {
	adapter := NewAdapter("test-secret")
	if adapter == nil {
		t.Fatal("expected non-nil adapter")
	}
	if string(adapter.jwtSecret) != "test-secret" {
		t.Error("expected jwt secret to be set")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	adapter := NewAdapter("secret")
	claims := validClaims()

	token, err := adapter.GenerateToken(claims)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	parsed, err := adapter.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed.UserID != claims.UserID {
		t.Errorf("UserID: got %q, want %q", parsed.UserID, claims.UserID)
	}
	if parsed.Email != claims.Email {
		t.Errorf("Email: got %q, want %q", parsed.Email, claims.Email)
	}
	if parsed.Role != claims.Role {
		t.Errorf("Role: got %q, want %q", parsed.Role, claims.Role)
	}
	if parsed.TenantID != claims.TenantID {
		t.Errorf("TenantID: got %q, want %q", parsed.TenantID, claims.TenantID)
	}
	if parsed.ExpiresAt != claims.ExpiresAt {
		t.Errorf("ExpiresAt: got %d, want %d", parsed.ExpiresAt, claims.ExpiresAt)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, _ := NewAdapter("secret1").GenerateToken(validClaims())

	_, err := NewAdapter("secret2").ParseToken(token)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("got %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_Expired(t *testing.T) {
	adapter := NewAdapter("secret")
	claims := validClaims()
	claims.IssuedAt = time.Now().Add(-2 * time.Hour).Unix()
	claims.ExpiresAt = time.Now().Add(-time.Hour).Unix()

	token, _ := adapter.GenerateToken(claims)
	_, err := adapter.ParseToken(token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("got %v, want ErrTokenExpired", err)
	}
}

func TestParseToken_Malformed(t *testing.T) {
	adapter := NewAdapter("secret")
	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("ParseToken(%q): got %v, want ErrTokenInvalid", token, err)
		}
	}
}

func TestParseToken_RejectsForeignIssuer(t *testing.T) {
	secret := []byte("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		UserID: "user-1",
		Role:   domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := NewAdapter("secret").ParseToken(signed); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("got %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwtClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if _, err := NewAdapter("secret").ParseToken(signed); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("got %v, want ErrTokenInvalid", err)
	}
}

package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"valid bearer token", "Bearer abc123", "abc123"},
		{"bearer with extra spaces", "Bearer   token-with-spaces   ", "token-with-spaces"},
		{"lowercase bearer", "bearer token123", "token123"},
		{"empty header", "", ""},
		{"no bearer prefix", "token123", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			if result := extractBearerToken(req); result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestGetAuthContext(t *testing.T) {
	if GetAuthContext(context.Background()) != nil {
		t.Error("expected nil for context without auth")
	}

	authCtx := &domain.AuthContext{UserID: "user-123", Role: domain.RoleAdmin}
	ctx := context.WithValue(context.Background(), authContextKey, authCtx)
	result := GetAuthContext(ctx)
	if result == nil || result.UserID != "user-123" || result.Role != domain.RoleAdmin {
		t.Errorf("unexpected auth context: %+v", result)
	}
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected int
		called   bool
	}{
		{"missing token", "", http.StatusUnauthorized, false},
		{"valid token", "Bearer admin-token", http.StatusOK, true},
		{"expired token", "Bearer expired-token", http.StatusUnauthorized, false},
		{"unknown token", "Bearer forged", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewAuthMiddleware(tokenAuth())

			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if GetAuthContext(r.Context()) == nil {
					t.Error("expected auth context to be set")
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			middleware.Authenticate(handler).ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rr.Code)
			}
			if called != tt.called {
				t.Errorf("expected handler called=%v, got %v", tt.called, called)
			}
		})
	}
}

func TestAuthMiddleware_Authenticate_ExpiredMessage(t *testing.T) {
	middleware := NewAuthMiddleware(tokenAuth())
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rr := httptest.NewRecorder()

	middleware.Authenticate(handler).ServeHTTP(rr, req)

	if msg := decodeError(t, rr); msg != "token expired" {
		t.Errorf("expected 'token expired', got %q", msg)
	}
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		auth     *domain.AuthContext
		expected int
	}{
		{"no auth context", nil, http.StatusUnauthorized},
		{"member", &domain.AuthContext{UserID: "u", Role: domain.RoleMember, TenantID: "t"}, http.StatusForbidden},
		{"admin", &domain.AuthContext{UserID: "u", Role: domain.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewAuthMiddleware(tokenAuth())
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.auth != nil {
				req = req.WithContext(context.WithValue(req.Context(), authContextKey, tt.auth))
			}
			rr := httptest.NewRecorder()

			middleware.RequireAdmin(handler).ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rr.Code)
			}
		})
	}
}

func TestRateLimitMiddleware_PerCaller(t *testing.T) {
	middleware := NewRateLimitMiddleware(60, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	middleware.now = func() time.Time { return now }

	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/v1/sync/status", nil)
		req = req.WithContext(context.WithValue(req.Context(), authContextKey,
			&domain.AuthContext{UserID: userID, Role: domain.RoleAdmin}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	// Burst of two, then refused
	for i := 0; i < 2; i++ {
		if rr := request("alice"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, rr.Code)
		}
	}
	rr := request("alice")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}
	if ra := rr.Header().Get("Retry-After"); ra != "1" {
		t.Errorf("expected Retry-After 1, got %q", ra)
	}

	// Other callers have their own budget
	if rr := request("bob"); rr.Code != http.StatusOK {
		t.Errorf("bob: expected status 200, got %d", rr.Code)
	}

	// 60 per minute refills one token per second
	now = now.Add(time.Second)
	if rr := request("alice"); rr.Code != http.StatusOK {
		t.Errorf("after refill: expected status 200, got %d", rr.Code)
	}
}

func TestRateLimitMiddleware_Cleanup(t *testing.T) {
	middleware := NewRateLimitMiddleware(60, 1)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	middleware.now = func() time.Time { return now }

	middleware.allow("user:old")
	now = now.Add(2 * time.Hour)
	middleware.allow("user:new")

	if removed := middleware.cleanup(time.Hour); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, ok := middleware.limiters["user:new"]; !ok {
		t.Error("expected recent caller to be kept")
	}
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	if key := callerKey(req); key != "ip:203.0.113.7" {
		t.Errorf("expected ip key, got %q", key)
	}

	req = req.WithContext(context.WithValue(req.Context(), authContextKey, &domain.AuthContext{UserID: "u-1"}))
	if key := callerKey(req); key != "user:u-1" {
		t.Errorf("expected user key, got %q", key)
	}
}

func TestServer_RateLimitsAPIRoutes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestsPerMinute = 1
	cfg.RequestBurst = 1
	cfg.Logger = testLogger()
	s := NewServer(cfg, tokenAuth(), &mockSyncService{}, nil, nil)

	if rr := do(t, s, "POST", "/api/v1/sync", "admin-token", ""); rr.Code != http.StatusOK {
		t.Fatalf("first request: expected status 200, got %d", rr.Code)
	}
	if rr := do(t, s, "POST", "/api/v1/sync", "admin-token", ""); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second request: expected status 429, got %d", rr.Code)
	}
	// Health routes are not budgeted
	for i := 0; i < 3; i++ {
		if rr := do(t, s, "GET", "/health", "", ""); rr.Code != http.StatusOK {
			t.Errorf("health %d: expected status 200, got %d", i, rr.Code)
		}
	}
}

func TestLoggingMiddleware(t *testing.T) {
	middleware := NewLoggingMiddleware(testLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	middleware.Handler(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", rr.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	middleware := NewRecoveryMiddleware(testLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	middleware.Handler(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	middleware := NewCORSMiddleware([]string{"https://example.com"})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	middleware.Handler(handler).ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Errorf("expected CORS origin header to be set")
	}

	req = httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "https://example.com")
	rr = httptest.NewRecorder()
	middleware.Handler(handler).ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for preflight, got %d", rr.Code)
	}

	req = httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr = httptest.NewRecorder()
	middleware.Handler(handler).ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS header for disallowed origin")
	}
}

func TestResponseWriter(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rw.statusCode)
	}
}

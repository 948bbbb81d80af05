package domain

// Role defines the caller's permission level on the sync API
type Role string

const (
	RoleAdmin  Role = "admin"  // Trigger syncs, change sync mode
	RoleMember Role = "member" // Read sync status
)

// AuthContext contains authenticated caller info for request context
type AuthContext struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenant_id"`
}

// IsAdmin checks if the authenticated caller is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccessTenant reports whether the caller may act on a tenant.
// Admins reach every tenant, members only their own.
func (a *AuthContext) CanAccessTenant(tenantID string) bool {
	return a.IsAdmin() || (tenantID != "" && a.TenantID == tenantID)
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	TenantID  string `json:"tenant_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

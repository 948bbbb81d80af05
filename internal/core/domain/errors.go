package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrSyncInProgress indicates a sync is already running for the connection
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrInvalidSyncMode indicates a sync mode value could not be parsed
	ErrInvalidSyncMode = errors.New("invalid sync mode")

	// ErrCredentialMissing indicates a connection has no stored credential
	ErrCredentialMissing = errors.New("credential missing")

	// ErrCredentialInvalid indicates the platform rejected the credential
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrConnectionInactive indicates the connection has been deactivated
	ErrConnectionInactive = errors.New("connection inactive")

	// ErrDailyQuotaExhausted indicates the account used up its daily request ceiling
	ErrDailyQuotaExhausted = errors.New("daily request quota exhausted")

	// ErrPlatformUnavailable indicates the ad platform circuit is open
	ErrPlatformUnavailable = errors.New("ad platform unavailable")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")
)

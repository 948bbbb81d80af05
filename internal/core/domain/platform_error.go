package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies failures for retry and deactivation decisions
type ErrorKind string

const (
	KindUnknown    ErrorKind = "unknown"
	KindRateLimit  ErrorKind = "rate_limit"
	KindDailyQuota ErrorKind = "daily_quota"
	KindCredential ErrorKind = "credential"
	KindTransient  ErrorKind = "transient"
)

// PlatformError is an error response returned by the ad platform
type PlatformError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode,omitempty"`
	Type       string `json:"type,omitempty"`
	Message    string `json:"message"`
	TraceID    string `json:"fbtrace_id,omitempty"`
}

func (e *PlatformError) Error() string {
	if e.Subcode != 0 {
		return fmt.Sprintf("platform error %d/%d (http %d): %s", e.Code, e.Subcode, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("platform error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// Kind classifies the error, codes first, then HTTP status, then message
func (e *PlatformError) Kind() ErrorKind {
	if kind, ok := subcodeKinds[e.Subcode]; ok && e.Subcode != 0 {
		return kind
	}
	if kind, ok := codeKinds[e.Code]; ok {
		return kind
	}
	if e.Code >= 80000 && e.Code <= 80014 {
		// Business use case rate limits
		return KindRateLimit
	}
	switch {
	case e.HTTPStatus == http.StatusTooManyRequests:
		return KindRateLimit
	case e.HTTPStatus == http.StatusUnauthorized:
		return KindCredential
	}
	if kind, ok := kindFromMessage(e.Message); ok {
		return kind
	}
	if e.HTTPStatus >= 500 {
		return KindTransient
	}
	return KindUnknown
}

// codeKinds maps documented top-level platform error codes
var codeKinds = map[int]ErrorKind{
	4:   KindRateLimit, // application request limit
	17:  KindRateLimit, // user request limit
	32:  KindRateLimit, // page request limit
	613: KindRateLimit, // calls within one hour exceeded
	102: KindCredential,
	190: KindCredential, // invalid or expired access token
}

// subcodeKinds maps subcodes that override the top-level code
var subcodeKinds = map[int]ErrorKind{
	2446079: KindRateLimit, // ads api too many calls
	1487742: KindRateLimit, // ad account too many calls
	1504022: KindRateLimit, // ads insights throttled
	1487225: KindRateLimit,
	458:     KindCredential, // app not installed
	459:     KindCredential, // user checkpointed
	460:     KindCredential, // password changed
	463:     KindCredential, // token expired
	464:     KindCredential, // unconfirmed user
	467:     KindCredential, // invalid token
}

var rateLimitPhrases = []string{
	"rate limit",
	"too many calls",
	"request limit reached",
	"user request limit",
	"application request limit",
	"too many requests",
}

var credentialPhrases = []string{
	"error validating access token",
	"session has expired",
	"invalid oauth access token",
}

func kindFromMessage(msg string) (ErrorKind, bool) {
	lower := strings.ToLower(msg)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return KindRateLimit, true
		}
	}
	for _, phrase := range credentialPhrases {
		if strings.Contains(lower, phrase) {
			return KindCredential, true
		}
	}
	return "", false
}

// KindOf classifies any error returned along the sync path
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Kind()
	}

	switch {
	case errors.Is(err, ErrDailyQuotaExhausted):
		return KindDailyQuota
	case errors.Is(err, ErrCredentialInvalid), errors.Is(err, ErrCredentialMissing):
		return KindCredential
	case errors.Is(err, ErrPlatformUnavailable):
		return KindTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindUnknown
	}

	if kind, ok := kindFromMessage(err.Error()); ok {
		return kind
	}
	return KindTransient
}

// IsRateLimited reports whether the error should be retried with backoff
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimit
}

// IsCredentialFailure reports whether the error means the credential is dead
func IsCredentialFailure(err error) bool {
	return KindOf(err) == KindCredential
}

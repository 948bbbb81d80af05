package adplatform

import "time"

// Config contains configuration for the ad platform client.
type Config struct {
	// BaseURL is the Graph API host.
	// Defaults to https://graph.facebook.com
	BaseURL string

	// APIVersion is the versioned path prefix, e.g. v21.0
	APIVersion string

	// AppID and AppSecret authenticate token exchange and debug calls.
	// Without them ValidateToken falls back to a /me probe.
	AppID     string
	AppSecret string

	// PageSize is the limit requested per listing page.
	PageSize int

	// MaxPages caps cursor paging per listing.
	MaxPages int

	// MaxRetries is the number of rate-limit retries per call.
	MaxRetries int

	// InitialDelay is the delay before the first rate-limit retry.
	InitialDelay time.Duration

	// Timeout bounds each HTTP round trip.
	Timeout time.Duration

	// BreakerFailures is the run of transport or 5xx failures that opens
	// the circuit. Negative disables the breaker.
	BreakerFailures int

	// BreakerTimeout is how long the circuit stays open before one probe.
	BreakerTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://graph.facebook.com",
		APIVersion:   "v21.0",
		PageSize:     100,
		MaxPages:     50,
		MaxRetries:   3,
		InitialDelay: 5 * time.Second,
		Timeout:      30 * time.Second,

		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
	}
}

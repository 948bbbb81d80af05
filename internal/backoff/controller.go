// Package backoff wraps single platform calls with token acquisition,
// inter-call spacing and steep exponential retry on rate-limit errors.
package backoff

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/custodia-labs/adsync-core/internal/clock"
	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/metrics"
)

// Limiter is the rate limiter surface the controller needs
type Limiter interface {
	Acquire(ctx context.Context, accountID string) (bool, error)
	Throttle(accountID string)
	DailyResetIn(accountID string) time.Duration
}

// Config holds configuration for the Controller
type Config struct {
	// MaxRetries is the default number of retries after the first attempt
	MaxRetries int

	// InitialDelay is the default delay before the first retry
	InitialDelay time.Duration

	// Multiplier grows the delay per retry
	Multiplier float64

	// Spacing is slept after every acquired token, before the call
	Spacing time.Duration

	// Jitter is the +/- fraction applied to spacing and delays
	Jitter float64

	// DailyRecheck caps the wait when an account's daily ceiling is reached
	DailyRecheck time.Duration

	// UsageThrottlePercent throttles a bucket once reported usage reaches it
	UsageThrottlePercent float64

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultConfig returns default backoff settings
func DefaultConfig() Config {
	return Config{
		MaxRetries:           3,
		InitialDelay:         5 * time.Second,
		Multiplier:           4,
		Spacing:              2 * time.Second,
		Jitter:               0.15,
		DailyRecheck:         time.Hour,
		UsageThrottlePercent: 95,
	}
}

// Request describes one guarded call.
// Zero MaxRetries or InitialDelay use the controller defaults;
// a negative MaxRetries disables retries.
type Request struct {
	AccountID    string
	MaxRetries   int
	InitialDelay time.Duration
}

// Outcome reports what Run spent on a call
type Outcome struct {
	Retries int
	Waited  time.Duration
}

// Controller guards platform calls
type Controller struct {
	cfg     Config
	limiter Limiter
	logger  *slog.Logger
	random  func() float64
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Controller. Zero-valued fields fall back to DefaultConfig,
// except Spacing which may be zero.
func New(limiter Limiter, cfg Config) *Controller {
	defaults := DefaultConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaults.InitialDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		cfg.Jitter = defaults.Jitter
	}
	if cfg.DailyRecheck <= 0 {
		cfg.DailyRecheck = defaults.DailyRecheck
	}
	if cfg.UsageThrottlePercent <= 0 {
		cfg.UsageThrottlePercent = defaults.UsageThrottlePercent
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
		random:  rand.Float64,
	}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		return clock.Sleep(ctx, cfg.Clock, d)
	}
	return c
}

// Run performs op under the rate limiter. Rate-limit errors are retried
// with InitialDelay * Multiplier^k; any other error, or a rate-limit error
// after the last retry, is returned unchanged.
func (c *Controller) Run(ctx context.Context, req Request, op func(ctx context.Context) error) (Outcome, error) {
	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = c.cfg.MaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	initial := req.InitialDelay
	if initial <= 0 {
		initial = c.cfg.InitialDelay
	}

	var out Outcome
	for attempt := 0; ; attempt++ {
		if err := c.acquire(ctx, req.AccountID, &out); err != nil {
			return out, err
		}
		if err := c.wait(ctx, c.jitter(c.cfg.Spacing), &out); err != nil {
			return out, err
		}

		err := op(ctx)
		if err == nil {
			return out, nil
		}
		if domain.KindOf(err) != domain.KindRateLimit {
			return out, err
		}

		c.limiter.Throttle(req.AccountID)
		if attempt >= maxRetries {
			metrics.BackoffExhausted.Inc()
			c.logger.Warn("rate limit retries exhausted",
				"account_id", req.AccountID, "retries", out.Retries, "error", err)
			return out, err
		}

		delay := c.Delay(initial, attempt)
		c.logger.Info("rate limited, backing off",
			"account_id", req.AccountID, "attempt", attempt+1, "delay", delay, "error", err)
		metrics.RecordRetry(delay)
		if werr := c.wait(ctx, delay, &out); werr != nil {
			return out, werr
		}
		out.Retries++
	}
}

// acquire obtains a token, re-checking on a capped interval while the
// account's daily ceiling is exhausted. These waits are not retries.
func (c *Controller) acquire(ctx context.Context, accountID string, out *Outcome) error {
	for {
		ok, err := c.limiter.Acquire(ctx, accountID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		wait := c.limiter.DailyResetIn(accountID)
		if wait > c.cfg.DailyRecheck || wait <= 0 {
			wait = c.cfg.DailyRecheck
		}
		c.logger.Warn("daily call ceiling reached, waiting", "account_id", accountID, "wait", wait)
		if err := c.wait(ctx, wait, out); err != nil {
			return fmt.Errorf("%w: account %s: %v", domain.ErrDailyQuotaExhausted, accountID, err)
		}
	}
}

// Delay returns the unjittered-then-jittered delay before retry k (0-indexed)
func (c *Controller) Delay(initial time.Duration, k int) time.Duration {
	base := float64(initial) * math.Pow(c.cfg.Multiplier, float64(k))
	return c.jitter(time.Duration(base))
}

// ObserveUsage feeds a platform usage hint (0-100) for an account, or for
// the app when accountID is empty. At or above the threshold the bucket is
// throttled ahead of an actual rate-limit error.
func (c *Controller) ObserveUsage(accountID string, percent float64) {
	scope := "app"
	if accountID != "" {
		scope = "account"
	}
	metrics.PlatformUsage.WithLabelValues(scope).Set(percent)

	if percent >= c.cfg.UsageThrottlePercent {
		c.logger.Warn("platform usage near limit, throttling", "account_id", accountID, "usage_percent", percent)
		c.limiter.Throttle(accountID)
	}
}

func (c *Controller) jitter(d time.Duration) time.Duration {
	if d <= 0 || c.cfg.Jitter == 0 {
		return d
	}
	factor := 1 - c.cfg.Jitter + c.random()*2*c.cfg.Jitter
	return time.Duration(float64(d) * factor)
}

func (c *Controller) wait(ctx context.Context, d time.Duration, out *Outcome) error {
	if d <= 0 {
		return nil
	}
	if err := c.sleep(ctx, d); err != nil {
		return err
	}
	out.Waited += d
	return nil
}

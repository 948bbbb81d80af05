// Package ratelimit implements the two-tier request budget for the ad platform:
// one global token bucket shared by every call, one bucket per ad account,
// and a per-account daily call ceiling that resets at UTC midnight.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/adsync-core/internal/clock"
	"github.com/custodia-labs/adsync-core/internal/metrics"
)

// Config holds configuration for the Limiter
type Config struct {
	GlobalMaxTokens     int
	GlobalRefillPeriod  time.Duration
	AccountMaxTokens    int
	AccountRefillPeriod time.Duration
	DailyLimit          int
	Clock               clock.Clock
	Logger              *slog.Logger
}

// DefaultConfig returns the platform's standard-tier budget
func DefaultConfig() Config {
	return Config{
		GlobalMaxTokens:     20,
		GlobalRefillPeriod:  90 * time.Second,
		AccountMaxTokens:    5,
		AccountRefillPeriod: 5 * time.Minute,
		DailyLimit:          4800,
	}
}

// Snapshot is a point-in-time view of the limiter
type Snapshot struct {
	GlobalTokens   int `json:"global_tokens"`
	GlobalMax      int `json:"global_max"`
	GlobalWaiters  int `json:"global_waiters"`
	AccountBuckets int `json:"account_buckets"`
}

// Limiter gates outbound platform calls. Waiters on each bucket are served
// strictly in arrival order. One mutex guards every bucket.
type Limiter struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	logger   *slog.Logger
	global   *bucket
	accounts map[string]*bucket
}

// New creates a Limiter. Zero-valued fields fall back to DefaultConfig.
func New(cfg Config) *Limiter {
	defaults := DefaultConfig()
	if cfg.GlobalMaxTokens <= 0 {
		cfg.GlobalMaxTokens = defaults.GlobalMaxTokens
	}
	if cfg.GlobalRefillPeriod <= 0 {
		cfg.GlobalRefillPeriod = defaults.GlobalRefillPeriod
	}
	if cfg.AccountMaxTokens <= 0 {
		cfg.AccountMaxTokens = defaults.AccountMaxTokens
	}
	if cfg.AccountRefillPeriod <= 0 {
		cfg.AccountRefillPeriod = defaults.AccountRefillPeriod
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = defaults.DailyLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Limiter{
		cfg:      cfg,
		clock:    cfg.Clock,
		logger:   logger,
		global:   newBucket(cfg.GlobalMaxTokens, cfg.GlobalRefillPeriod, cfg.Clock.Now()),
		accounts: make(map[string]*bucket),
	}
}

// Acquire blocks until the caller holds one account token (when accountID is
// set) and one global token. It returns false with a nil error when the
// account has used its daily ceiling; no token is consumed in that case.
// On cancellation the caller leaves the queue, any token already taken is
// returned and the daily slot is released.
func (l *Limiter) Acquire(ctx context.Context, accountID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	start := l.clock.Now()
	l.mu.Lock()

	var ab *bucket
	var reservedDay time.Time
	if accountID != "" {
		ab = l.account(accountID, start)
		ab.rollDay(start)
		if ab.daily >= l.cfg.DailyLimit {
			l.mu.Unlock()
			l.logger.Warn("daily call ceiling reached", "account_id", accountID, "limit", l.cfg.DailyLimit)
			metrics.RecordAcquire("daily_exhausted", 0)
			return false, nil
		}
		ab.daily++
		reservedDay = ab.dayStart

		if err := l.take(ctx, ab, accountID); err != nil {
			l.releaseDaily(ab, reservedDay)
			l.mu.Unlock()
			metrics.RecordAcquire("cancelled", l.clock.Now().Sub(start))
			return false, err
		}
	}

	if err := l.take(ctx, l.global, ""); err != nil {
		if ab != nil {
			ab.giveBack()
			l.arm(ab)
			l.releaseDaily(ab, reservedDay)
		}
		l.mu.Unlock()
		metrics.RecordAcquire("cancelled", l.clock.Now().Sub(start))
		return false, err
	}

	l.mu.Unlock()
	metrics.RecordAcquire("granted", l.clock.Now().Sub(start))
	return true, nil
}

// take removes one token from b, queueing behind earlier waiters when the
// bucket is empty. Called and returns with l.mu held.
func (l *Limiter) take(ctx context.Context, b *bucket, accountID string) error {
	b.refill(l.clock.Now())
	b.dispatch()
	if len(b.waiters) == 0 && b.tokens > 0 {
		b.tokens--
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	b.waiters = append(b.waiters, w)
	l.arm(b)
	l.logger.Debug("waiting for rate limit token", "account_id", accountID, "queued", len(b.waiters))
	l.mu.Unlock()

	select {
	case <-w.ready:
		l.mu.Lock()
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		if w.granted {
			b.giveBack()
		} else {
			b.remove(w)
		}
		l.arm(b)
		return ctx.Err()
	}
}

// arm schedules a refill for the next token arrival while waiters are queued.
// Called with l.mu held.
func (l *Limiter) arm(b *bucket) {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.waiters) == 0 {
		return
	}
	b.timer = l.clock.AfterFunc(b.nextRefillIn(l.clock.Now()), func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		b.refill(l.clock.Now())
		b.dispatch()
		l.arm(b)
	})
}

// releaseDaily gives back a reserved daily slot if the day has not rolled
func (l *Limiter) releaseDaily(b *bucket, reservedDay time.Time) {
	if b.dayStart.Equal(reservedDay) && b.daily > 0 {
		b.daily--
	}
}

// account returns the bucket for accountID, creating it on first use
func (l *Limiter) account(accountID string, now time.Time) *bucket {
	b, ok := l.accounts[accountID]
	if !ok {
		b = newBucket(l.cfg.AccountMaxTokens, l.cfg.AccountRefillPeriod, now)
		l.accounts[accountID] = b
	}
	return b
}

// Throttle empties the account bucket, or the global bucket when accountID
// is empty, and restarts its refill from now. Used after the platform
// reports a rate limit.
func (l *Limiter) Throttle(accountID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b := l.global
	if accountID != "" {
		b = l.account(accountID, now)
	}
	b.tokens = 0
	b.lastRefill = now
	l.arm(b)

	l.logger.Info("rate limit bucket throttled", "account_id", accountID)
	metrics.RecordThrottle(accountID != "")
}

// DailyResetIn returns the time left until the account's daily counter resets
func (l *Limiter) DailyResetIn(accountID string) time.Duration {
	now := l.clock.Now()
	return utcDay(now).Add(24 * time.Hour).Sub(now)
}

// DailyUsed returns how many daily slots the account has used today
func (l *Limiter) DailyUsed(accountID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.accounts[accountID]
	if !ok {
		return 0
	}
	b.rollDay(l.clock.Now())
	return b.daily
}

// QueueLen returns the number of callers waiting on the account bucket,
// or on the global bucket when accountID is empty
func (l *Limiter) QueueLen(accountID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if accountID == "" {
		return len(l.global.waiters)
	}
	if b, ok := l.accounts[accountID]; ok {
		return len(b.waiters)
	}
	return 0
}

// Stats returns the current limiter snapshot
func (l *Limiter) Stats() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.global.refill(l.clock.Now())
	l.global.dispatch()
	return Snapshot{
		GlobalTokens:   l.global.tokens,
		GlobalMax:      l.global.max,
		GlobalWaiters:  len(l.global.waiters),
		AccountBuckets: len(l.accounts),
	}
}

package ratelimit

import (
	"time"

	"github.com/custodia-labs/adsync-core/internal/clock"
)

// waiter is one caller queued on a bucket
type waiter struct {
	ready   chan struct{}
	granted bool
}

// bucket is a token bucket with lazy proportional refill and a FIFO queue.
// All fields are guarded by the owning Limiter's mutex.
type bucket struct {
	tokens     int
	max        int
	period     time.Duration
	lastRefill time.Time
	waiters    []*waiter
	timer      clock.Timer

	// Daily ceiling, account buckets only
	daily    int
	dayStart time.Time
}

func newBucket(max int, period time.Duration, now time.Time) *bucket {
	return &bucket{
		tokens:     max,
		max:        max,
		period:     period,
		lastRefill: now,
		dayStart:   utcDay(now),
	}
}

// refill adds floor(elapsed/period*max) tokens once at least period/10 has
// passed. The reference time advances by exactly the time the added tokens
// account for, so leftover elapsed time carries into the next refill.
func (b *bucket) refill(now time.Time) {
	if b.tokens >= b.max {
		b.lastRefill = now
		return
	}
	elapsed := now.Sub(b.lastRefill)
	if elapsed < b.period/10 {
		return
	}
	added := int(int64(elapsed) * int64(b.max) / int64(b.period))
	if added <= 0 {
		return
	}
	b.tokens += added
	if b.tokens >= b.max {
		b.tokens = b.max
		b.lastRefill = now
		return
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(int64(added) * int64(b.period) / int64(b.max)))
}

// nextRefillIn is how long until refill adds at least one token
func (b *bucket) nextRefillIn(now time.Time) time.Duration {
	perToken := time.Duration((int64(b.period) + int64(b.max) - 1) / int64(b.max))
	wait := b.period / 10
	if perToken > wait {
		wait = perToken
	}
	d := b.lastRefill.Add(wait).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// dispatch hands available tokens to queued waiters in arrival order
func (b *bucket) dispatch() {
	for b.tokens > 0 && len(b.waiters) > 0 {
		w := b.waiters[0]
		b.waiters[0] = nil
		b.waiters = b.waiters[1:]
		b.tokens--
		w.granted = true
		close(w.ready)
	}
}

// remove drops a waiter from the queue, reporting whether it was queued
func (b *bucket) remove(w *waiter) bool {
	for i, other := range b.waiters {
		if other == w {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// giveBack returns an unused token to the bucket
func (b *bucket) giveBack() {
	if b.tokens < b.max {
		b.tokens++
	}
	b.dispatch()
}

// rollDay resets the daily counter when now is on a later UTC day
func (b *bucket) rollDay(now time.Time) {
	day := utcDay(now)
	if day.After(b.dayStart) {
		b.dayStart = day
		b.daily = 0
	}
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

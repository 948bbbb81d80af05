package adplatform

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/metrics"
)

const breakerName = "ad-platform"

// breaker opens after consecutive transport or 5xx failures. Error replies
// the platform actually sent (rate limits, bad tokens, bad params) count as
// successes so the circuit only reflects reachability.
type breaker struct {
	cb      *gobreaker.CircuitBreaker[struct{}]
	probing atomic.Bool
}

func newBreaker(failures int, timeout time.Duration, logger *slog.Logger) *breaker {
	if failures < 0 {
		return nil
	}
	threshold := uint32(failures)

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: platformAnswered,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ad platform circuit changed state", "from", from.String(), "to", to.String())
			metrics.RecordBreakerTransition(name, from.String(), to.String(), stateValue(to))
		},
	})
	return &breaker{cb: cb}
}

// run executes op unless the circuit is open
func (b *breaker) run(op func() error) error {
	if b == nil {
		return op()
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, op()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrPlatformUnavailable, err)
	}
	return err
}

// open reports whether calls are currently refused
func (b *breaker) open() bool {
	return b != nil && b.cb.State() == gobreaker.StateOpen
}

// admit decides, before any token is spent, whether a call may go out.
// Half-open lets exactly one caller through until it calls release.
func (b *breaker) admit() (release func(), ok bool) {
	noop := func() {}
	if b == nil {
		return noop, true
	}
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return noop, false
	case gobreaker.StateHalfOpen:
		if !b.probing.CompareAndSwap(false, true) {
			return noop, false
		}
		return func() { b.probing.Store(false) }, true
	default:
		return noop, true
	}
}

func platformAnswered(err error) bool {
	if err == nil {
		return true
	}
	var pe *domain.PlatformError
	if errors.As(err, &pe) {
		return pe.HTTPStatus < 500
	}
	// Caller cancellation says nothing about the platform
	return domain.KindOf(err) == domain.KindUnknown
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

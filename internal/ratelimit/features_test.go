package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/custodia-labs/adsync-core/internal/clock"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeQuotaScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

type quotaWorld struct {
	clock   *clock.Manual
	limiter *Limiter

	cancel    context.CancelFunc
	immediate int
	queued    []chan struct{}
}

func initializeQuotaScenario(sc *godog.ScenarioContext) {
	w := &quotaWorld{}

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		w.clock = clock.NewManual(epoch)
		w.limiter = nil
		w.immediate = 0
		w.queued = nil
		return ctx, nil
	})
	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		if w.cancel != nil {
			w.cancel()
			w.cancel = nil
		}
		return ctx, nil
	})

	sc.Step(`^a global bucket of (\d+) tokens refilling every (\d+) seconds$`, w.globalBucket)
	sc.Step(`^(\d+) callers acquire a global token at once$`, w.burst)
	sc.Step(`^(\d+) callers are granted immediately$`, w.grantedImmediately)
	sc.Step(`^(\d+) callers are queued$`, w.callersQueued)
	sc.Step(`^(\d+) seconds pass$`, w.secondsPass)
	sc.Step(`^the first (\d+) queued callers are granted in order$`, w.grantedInOrder)

	sc.Step(`^an account daily ceiling of (\d+) calls$`, w.dailyCeiling)
	sc.Step(`^account "([^"]*)" makes (\d+) calls$`, w.makeCalls)
	sc.Step(`^the next call for account "([^"]*)" is refused$`, w.nextRefused)
	sc.Step(`^the next call for account "([^"]*)" is granted$`, w.nextGranted)
	sc.Step(`^the clock reaches the next UTC midnight$`, w.nextMidnight)
}

func (w *quotaWorld) globalBucket(tokens, seconds int) error {
	w.limiter = New(Config{
		GlobalMaxTokens:    tokens,
		GlobalRefillPeriod: time.Duration(seconds) * time.Second,
		Clock:              w.clock,
		Logger:             testLogger(),
	})
	return nil
}

func (w *quotaWorld) burst(n int) error {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for i := 0; i < n; i++ {
		if w.limiter.Stats().GlobalTokens > 0 {
			if ok, err := w.limiter.Acquire(ctx, ""); !ok || err != nil {
				return fmt.Errorf("acquire %d: ok=%v err=%v", i, ok, err)
			}
			w.immediate++
			continue
		}

		// Queue one caller at a time so arrival order is fixed
		before := w.limiter.QueueLen("")
		done := make(chan struct{})
		go func() {
			if ok, err := w.limiter.Acquire(ctx, ""); ok && err == nil {
				close(done)
			}
		}()
		if err := waitFor(func() bool { return w.limiter.QueueLen("") == before+1 }); err != nil {
			return err
		}
		w.queued = append(w.queued, done)
	}
	return nil
}

func (w *quotaWorld) grantedImmediately(n int) error {
	if w.immediate != n {
		return fmt.Errorf("%d callers were granted immediately", w.immediate)
	}
	return nil
}

func (w *quotaWorld) callersQueued(n int) error {
	if got := w.limiter.QueueLen(""); got != n {
		return fmt.Errorf("%d callers are queued", got)
	}
	return nil
}

func (w *quotaWorld) secondsPass(n int) error {
	w.clock.Advance(time.Duration(n) * time.Second)
	return nil
}

func (w *quotaWorld) grantedInOrder(n int) error {
	for i := 0; i < n; i++ {
		select {
		case <-w.queued[i]:
		case <-time.After(2 * time.Second):
			return fmt.Errorf("queued caller %d was not granted", i)
		}
	}
	time.Sleep(20 * time.Millisecond)
	for i := n; i < len(w.queued); i++ {
		select {
		case <-w.queued[i]:
			return fmt.Errorf("queued caller %d was granted ahead of its turn", i)
		default:
		}
	}
	return nil
}

func (w *quotaWorld) dailyCeiling(n int) error {
	w.limiter = New(Config{
		GlobalMaxTokens:  100,
		AccountMaxTokens: 100,
		DailyLimit:       n,
		Clock:            w.clock,
		Logger:           testLogger(),
	})
	return nil
}

func (w *quotaWorld) makeCalls(account string, n int) error {
	for i := 0; i < n; i++ {
		if ok, err := w.limiter.Acquire(context.Background(), account); !ok || err != nil {
			return fmt.Errorf("call %d: ok=%v err=%v", i, ok, err)
		}
	}
	return nil
}

func (w *quotaWorld) nextRefused(account string) error {
	ok, err := w.limiter.Acquire(context.Background(), account)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("call for %s was granted", account)
	}
	return nil
}

func (w *quotaWorld) nextGranted(account string) error {
	ok, err := w.limiter.Acquire(context.Background(), account)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("call for %s was refused", account)
	}
	return nil
}

func (w *quotaWorld) nextMidnight() error {
	now := w.clock.Now().UTC()
	w.clock.Set(time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC))
	return nil
}

func waitFor(cond func() bool) error {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return fmt.Errorf("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven/mocks"
)

// fakeTicker is a manually fired Ticker
type fakeTicker struct {
	period  time.Duration
	c       chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// tickerFactory records every ticker the scheduler creates
type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (f *tickerFactory) New(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{period: d, c: make(chan time.Time)}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) all() []*fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeTicker(nil), f.tickers...)
}

func (f *tickerFactory) live() []*fakeTicker {
	var out []*fakeTicker
	for _, t := range f.all() {
		if !t.stopped.Load() {
			out = append(out, t)
		}
	}
	return out
}

// fakeOrchestrator counts sweeps and can hold one open
type fakeOrchestrator struct {
	mu      sync.Mutex
	calls   int
	active  int32
	maxSeen int32
	block   chan struct{}
	started chan struct{}
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{started: make(chan struct{}, 16)}
}

func (f *fakeOrchestrator) SyncAll(ctx context.Context, trigger domain.SyncTrigger) (*domain.BatchSummary, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)

	f.mu.Lock()
	f.calls++
	if n > f.maxSeen {
		f.maxSeen = n
	}
	block := f.block
	f.mu.Unlock()

	f.started <- struct{}{}
	if block != nil {
		<-block
	}
	return domain.NewBatchSummary(trigger, time.Now()), nil
}

func (f *fakeOrchestrator) SyncTenant(ctx context.Context, tenantID string, trigger domain.SyncTrigger) (*domain.BatchSummary, error) {
	return domain.NewBatchSummary(trigger, time.Now()), nil
}

func (f *fakeOrchestrator) SyncConnection(ctx context.Context, connectionID string, trigger domain.SyncTrigger) (*domain.BatchSummary, error) {
	return domain.NewBatchSummary(trigger, time.Now()), nil
}

func (f *fakeOrchestrator) sweeps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitSweep(t *testing.T, orch *fakeOrchestrator) {
	t.Helper()
	select {
	case <-orch.started:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not start")
	}
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.sweeping.Load() {
		if time.Now().After(deadline) {
			t.Fatal("sweep did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}

func fire(t *testing.T, tk *fakeTicker) {
	t.Helper()
	select {
	case tk.c <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("trigger loop is not receiving ticks")
	}
}

func newTestScheduler(orch *fakeOrchestrator, factory *tickerFactory, cfg SchedulerConfig) *Scheduler {
	cfg.Orchestrator = orch
	cfg.NewTicker = factory.New
	cfg.Logger = testLogger()
	return NewScheduler(cfg)
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	if s.Mode() != domain.RealtimeMode() {
		t.Errorf("mode: got %v, want realtime", s.Mode())
	}
	if s.lockTTL != 2*time.Minute {
		t.Errorf("lock TTL: got %v", s.lockTTL)
	}

	bad := NewScheduler(SchedulerConfig{Mode: domain.IntervalMode(0)})
	if bad.Mode() != domain.RealtimeMode() {
		t.Errorf("invalid startup mode must fall back to realtime, got %v", bad.Mode())
	}
}

func TestScheduler_StartSweepsImmediatelyThenPerTick(t *testing.T) {
	orch := newFakeOrchestrator()
	factory := &tickerFactory{}
	s := newTestScheduler(orch, factory, SchedulerConfig{})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitSweep(t, orch)
	waitIdle(t, s)

	tickers := factory.all()
	if len(tickers) != 1 || tickers[0].period != time.Minute {
		t.Fatalf("expected one 1m ticker, got %d", len(tickers))
	}

	fire(t, tickers[0])
	waitSweep(t, orch)
	waitIdle(t, s)

	if orch.sweeps() != 2 {
		t.Errorf("sweeps: got %d, want 2", orch.sweeps())
	}

	// Start twice is a no-op
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if len(factory.all()) != 1 {
		t.Error("second Start must not install another loop")
	}
}

func TestScheduler_RealtimeToFiveMinutes(t *testing.T) {
	orch := newFakeOrchestrator()
	factory := &tickerFactory{}
	s := newTestScheduler(orch, factory, SchedulerConfig{Mode: domain.IntervalMode(15)})
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	waitSweep(t, orch)
	waitIdle(t, s)

	changed, err := s.ChangeMode(ctx, domain.RealtimeMode())
	if err != nil || !changed {
		t.Fatalf("ChangeMode(realtime): changed=%v err=%v", changed, err)
	}
	live := factory.live()
	if len(live) != 1 || live[0].period != time.Minute {
		t.Fatalf("expected a single 1m loop after realtime, got %d live", len(live))
	}

	changed, err = s.ChangeMode(ctx, domain.IntervalMode(5))
	if err != nil || !changed {
		t.Fatalf("ChangeMode(5): changed=%v err=%v", changed, err)
	}
	live = factory.live()
	if len(live) != 1 || live[0].period != 5*time.Minute {
		t.Fatalf("expected a single 5m loop, got %d live", len(live))
	}
	if s.Mode() != domain.IntervalMode(5) {
		t.Errorf("mode: got %v", s.Mode())
	}

	before := orch.sweeps()
	fire(t, live[0])
	waitSweep(t, orch)
	waitIdle(t, s)
	if orch.sweeps() != before+1 {
		t.Errorf("new loop tick: got %d sweeps, want %d", orch.sweeps(), before+1)
	}

	// Neither previous loop is listening any more
	for _, old := range factory.all()[:2] {
		select {
		case old.c <- time.Now():
			t.Error("a replaced loop is still receiving ticks")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestScheduler_ChangeModeSameModeIsNoop(t *testing.T) {
	factory := &tickerFactory{}
	s := newTestScheduler(newFakeOrchestrator(), factory, SchedulerConfig{})
	_ = s.Start(context.Background())
	defer s.Stop()

	changed, err := s.ChangeMode(context.Background(), domain.RealtimeMode())
	if err != nil || changed {
		t.Errorf("changed=%v err=%v, want false, nil", changed, err)
	}
	if len(factory.all()) != 1 {
		t.Error("no new loop may be installed")
	}
}

func TestScheduler_ChangeModeRejectsInvalid(t *testing.T) {
	settings := mocks.NewMockSyncSettingsStore()
	factory := &tickerFactory{}
	s := newTestScheduler(newFakeOrchestrator(), factory, SchedulerConfig{Settings: settings})
	_ = s.Start(context.Background())
	defer s.Stop()

	for _, mode := range []domain.SyncMode{domain.IntervalMode(0), domain.IntervalMode(domain.MaxIntervalMinutes + 1), {Kind: "hourly"}} {
		changed, err := s.ChangeMode(context.Background(), mode)
		if !errors.Is(err, domain.ErrInvalidSyncMode) || changed {
			t.Errorf("ChangeMode(%v): changed=%v err=%v", mode, changed, err)
		}
	}
	if s.Mode() != domain.RealtimeMode() {
		t.Errorf("mode changed to %v", s.Mode())
	}
	if len(factory.all()) != 1 {
		t.Error("rejected modes must not touch the loop")
	}
	if _, err := settings.GetSyncMode(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Error("rejected modes must not be persisted")
	}
}

func TestScheduler_ChangeModePersistFailureHasNoEffect(t *testing.T) {
	settings := mocks.NewMockSyncSettingsStore()
	settings.SaveSyncModeFn = func(mode domain.SyncMode) error { return errors.New("read-only") }
	factory := &tickerFactory{}
	s := newTestScheduler(newFakeOrchestrator(), factory, SchedulerConfig{Settings: settings})
	_ = s.Start(context.Background())
	defer s.Stop()

	if _, err := s.ChangeMode(context.Background(), domain.IntervalMode(5)); err == nil {
		t.Fatal("expected persist error")
	}
	if s.Mode() != domain.RealtimeMode() || len(factory.all()) != 1 {
		t.Error("a failed persist must leave the schedule untouched")
	}
}

func TestScheduler_StartUsesPersistedMode(t *testing.T) {
	settings := mocks.NewMockSyncSettingsStore()
	_ = settings.SaveSyncMode(context.Background(), domain.IntervalMode(30))
	factory := &tickerFactory{}
	s := newTestScheduler(newFakeOrchestrator(), factory, SchedulerConfig{Settings: settings})

	_ = s.Start(context.Background())
	defer s.Stop()

	if s.Mode() != domain.IntervalMode(30) {
		t.Errorf("mode: got %v, want 30", s.Mode())
	}
	if tk := factory.all(); len(tk) != 1 || tk[0].period != 30*time.Minute {
		t.Error("expected a 30m ticker")
	}
}

func TestScheduler_ChangeModeBeforeStart(t *testing.T) {
	settings := mocks.NewMockSyncSettingsStore()
	factory := &tickerFactory{}
	s := newTestScheduler(newFakeOrchestrator(), factory, SchedulerConfig{Settings: settings})

	changed, err := s.ChangeMode(context.Background(), domain.IntervalMode(10))
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if len(factory.all()) != 0 {
		t.Error("no loop may run before Start")
	}
	stored, _ := settings.GetSyncMode(context.Background())
	if stored != domain.IntervalMode(10) {
		t.Errorf("persisted: got %v", stored)
	}
}

func TestScheduler_TicksDuringSweepAreSkipped(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.block = make(chan struct{})
	factory := &tickerFactory{}
	s := newTestScheduler(orch, factory, SchedulerConfig{})

	_ = s.Start(context.Background())
	waitSweep(t, orch)

	tk := factory.all()[0]
	fire(t, tk)
	fire(t, tk)

	// The mode change does not interrupt the running sweep
	if _, err := s.ChangeMode(context.Background(), domain.IntervalMode(5)); err != nil {
		t.Fatalf("ChangeMode: %v", err)
	}
	fire(t, factory.live()[0])

	close(orch.block)
	waitIdle(t, s)
	s.Stop()

	if orch.sweeps() != 1 {
		t.Errorf("sweeps: got %d, want 1", orch.sweeps())
	}
	if orch.maxSeen != 1 {
		t.Errorf("concurrent sweeps: %d", orch.maxSeen)
	}
}

func TestScheduler_StopWaitsForSweep(t *testing.T) {
	orch := newFakeOrchestrator()
	orch.block = make(chan struct{})
	s := newTestScheduler(orch, &tickerFactory{}, SchedulerConfig{})

	_ = s.Start(context.Background())
	waitSweep(t, orch)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a sweep was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(orch.block)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestScheduler_DistributedLock(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	orch := newFakeOrchestrator()
	s := newTestScheduler(orch, &tickerFactory{}, SchedulerConfig{Lock: lock})

	_ = s.Start(context.Background())
	waitSweep(t, orch)
	waitIdle(t, s)
	s.Stop()

	acquires, _, releases := lock.Counts()
	if acquires != 1 || releases != 1 {
		t.Errorf("acquires/releases: got %d/%d, want 1/1", acquires, releases)
	}
	if lock.IsHeld(sweepLockName) {
		t.Error("lock must be released after the sweep")
	}
}

func TestScheduler_LockHeldElsewhereSkipsSweep(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	lock.HoldElsewhere(sweepLockName, time.Hour)
	orch := newFakeOrchestrator()
	s := newTestScheduler(orch, &tickerFactory{}, SchedulerConfig{Lock: lock})

	_ = s.Start(context.Background())
	waitIdle(t, s)
	s.Stop()

	if orch.sweeps() != 0 {
		t.Errorf("sweeps: got %d, want 0", orch.sweeps())
	}
}

func TestScheduler_LockErrorSkipsSweep(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	lock.AcquireErr = errors.New("redis down")
	orch := newFakeOrchestrator()
	s := newTestScheduler(orch, &tickerFactory{}, SchedulerConfig{Lock: lock})

	_ = s.Start(context.Background())
	waitIdle(t, s)
	s.Stop()

	if orch.sweeps() != 0 {
		t.Errorf("sweeps: got %d, want 0", orch.sweeps())
	}
	if _, _, releases := lock.Counts(); releases != 0 {
		t.Errorf("releases: got %d, want 0", releases)
	}
}

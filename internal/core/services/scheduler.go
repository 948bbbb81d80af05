package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driving"
	"github.com/custodia-labs/adsync-core/internal/metrics"
)

// Ensure Scheduler implements driving.Scheduler
var _ driving.Scheduler = (*Scheduler)(nil)

// sweepLockName is the distributed lock taken around each scheduled sweep
const sweepLockName = "sync-sweep"

// Ticker is the part of time.Ticker the scheduler uses
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Scheduler triggers a full sweep of active connections once per sync mode
// period. Sweeps run on the context passed to Start, so swapping the
// trigger loop never interrupts a sweep in flight. At most one sweep runs
// per process; ticks that land during a sweep are dropped.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance sweeps per tick.
type Scheduler struct {
	orchestrator driving.SyncOrchestrator
	settings     driven.SyncSettingsStore
	lock         driven.DistributedLock
	logger       *slog.Logger
	newTicker    func(time.Duration) Ticker
	lockTTL      time.Duration

	mu      sync.Mutex
	mode    domain.SyncMode
	running bool
	rootCtx context.Context
	loop    *triggerLoop

	sweeping atomic.Bool
	sweeps   sync.WaitGroup
}

// triggerLoop is one installed ticker goroutine
type triggerLoop struct {
	stop chan struct{}
	done chan struct{}
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Orchestrator driving.SyncOrchestrator
	Settings     driven.SyncSettingsStore // Optional: persists mode changes across restarts
	Lock         driven.DistributedLock   // Optional: multi-instance coordination
	Logger       *slog.Logger

	// Mode is the startup mode, overridden by a persisted one (default: realtime)
	Mode domain.SyncMode

	// LockTTL is the sweep lock TTL, extended while a sweep runs (default: 2m)
	LockTTL time.Duration

	// NewTicker builds the trigger ticker (default: time.NewTicker)
	NewTicker func(time.Duration) Ticker
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mode := cfg.Mode
	if mode.Validate() != nil {
		mode = domain.RealtimeMode()
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	newTicker := cfg.NewTicker
	if newTicker == nil {
		newTicker = newStdTicker
	}

	return &Scheduler{
		orchestrator: cfg.Orchestrator,
		settings:     cfg.Settings,
		lock:         cfg.Lock,
		logger:       logger,
		newTicker:    newTicker,
		lockTTL:      lockTTL,
		mode:         mode,
	}
}

// Start loads the persisted mode, runs one sweep immediately and then one
// per period until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.settings != nil {
		stored, err := s.settings.GetSyncMode(ctx)
		switch {
		case err == nil:
			s.mode = stored
		case errors.Is(err, domain.ErrNotFound):
		default:
			s.logger.Warn("failed to load persisted sync mode, using configured mode",
				"mode", s.mode.String(), "error", err)
		}
	}

	s.running = true
	s.rootCtx = ctx
	s.logger.Info("scheduler starting", "mode", s.mode.String(), "period", s.mode.Period())

	s.trigger()
	s.install()
	return nil
}

// Stop stops the trigger loop and waits for a sweep in flight to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.uninstall()
	s.running = false
	s.mu.Unlock()

	s.sweeps.Wait()
	s.logger.Info("scheduler stopped")
}

// ChangeMode swaps the trigger loop for one with the new mode's period.
// Invalid modes are rejected with nothing changed; setting the current
// mode again is a no-op that reports false.
func (s *Scheduler) ChangeMode(ctx context.Context, mode domain.SyncMode) (bool, error) {
	if err := mode.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == s.mode {
		return false, nil
	}
	if s.settings != nil {
		if err := s.settings.SaveSyncMode(ctx, mode); err != nil {
			return false, fmt.Errorf("persist sync mode: %w", err)
		}
	}

	previous := s.mode
	s.mode = mode
	if s.running {
		s.uninstall()
		s.install()
	}

	s.logger.Info("sync mode changed",
		"from", previous.String(),
		"to", mode.String(),
		"period", mode.Period(),
	)
	return true, nil
}

// Mode returns the current sync mode
func (s *Scheduler) Mode() domain.SyncMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// install starts a trigger loop for the current mode. Callers hold s.mu.
func (s *Scheduler) install() {
	period := s.mode.Period()
	metrics.SyncModePeriod.Set(period.Seconds())

	loop := &triggerLoop{stop: make(chan struct{}), done: make(chan struct{})}
	ticker := s.newTicker(period)
	ctx := s.rootCtx
	s.loop = loop

	go func() {
		defer close(loop.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-loop.stop:
				return
			case <-ticker.C():
				s.trigger()
			}
		}
	}()
}

// uninstall stops the current trigger loop and waits for it to exit.
// A sweep it started keeps running. Callers hold s.mu.
func (s *Scheduler) uninstall() {
	if s.loop == nil {
		return
	}
	close(s.loop.stop)
	<-s.loop.done
	s.loop = nil
}

// trigger starts a sweep unless one is already running
func (s *Scheduler) trigger() {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("sweep still running, skipping tick")
		return
	}
	ctx := s.rootCtx
	s.sweeps.Add(1)
	go func() {
		defer s.sweeps.Done()
		defer s.sweeping.Store(false)
		s.sweep(ctx)
	}()
}

// sweep runs one full sync, under the distributed lock when configured
func (s *Scheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire sweep lock, skipping cycle", "error", err)
			return
		}
		if !acquired {
			s.logger.Debug("sweep lock held by another instance, skipping cycle")
			return
		}

		stopExtend := s.keepLock(ctx)
		defer func() {
			stopExtend()
			if err := s.lock.Release(context.WithoutCancel(ctx), sweepLockName); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	summary, err := s.orchestrator.SyncAll(ctx, domain.SyncTriggerScheduled)
	if err != nil {
		s.logger.Error("scheduled sweep failed", "error", err)
		return
	}
	s.logger.Info("scheduled sweep finished",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
}

// keepLock extends the sweep lock every half TTL until the returned func is called
func (s *Scheduler) keepLock(ctx context.Context) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		t := time.NewTicker(s.lockTTL / 2)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := s.lock.Extend(ctx, sweepLockName, s.lockTTL); err != nil {
					s.logger.Warn("failed to extend sweep lock", "error", err)
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

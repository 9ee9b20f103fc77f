// Package guardian runs the background consistency loop: a frequent
// cheap sweep over the highest-priority checks and a slower
// comprehensive sweep over the full suite, with sandbox-verified
// repairs, throttled alerts, and an immediate-sweep escape hatch.
package guardian

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/questlog/mechanicum/internal/config"
	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/mission"
	"github.com/questlog/mechanicum/internal/notify"
	"github.com/questlog/mechanicum/internal/store"
	"github.com/questlog/mechanicum/internal/types"
)

// sweepTimeout bounds a single sweep so a wedged store cannot hold the
// in-flight gate forever.
const sweepTimeout = 30 * time.Second

// Stats are the scheduler's lifetime counters.
type Stats struct {
	LocalSweeps         int                `json:"local_sweeps"`
	ComprehensiveSweeps int                `json:"comprehensive_sweeps"`
	SkippedTicks        int                `json:"skipped_ticks"`
	IssuesFound         int                `json:"issues_found"`
	RepairsApplied      int                `json:"repairs_applied"`
	SuggestionsQueued   int                `json:"suggestions_queued"`
	AlertsShown         int                `json:"alerts_shown"`
	LastSweep           time.Time          `json:"last_sweep"`
	LastStatus          types.HealthStatus `json:"last_status"`
}

// Deps holds scheduler dependencies. Coordinator is required. Store,
// when set, carries the event feed across restarts.
type Deps struct {
	Coordinator *mission.Coordinator
	Config      *config.GuardianConfig
	Notifier    notify.Notifier
	Bus         *events.Bus
	Store       store.Store
	Logger      *zap.Logger
}

// Scheduler drives the guardian loop. It is either stopped or running;
// Start and Stop transition between the two, and PerformImmediate works
// in both states.
type Scheduler struct {
	mu sync.RWMutex

	coordinator *mission.Coordinator
	config      *config.GuardianConfig
	alerter     *Alerter
	bus         *events.Bus
	store       store.Store
	feedOnce    sync.Once
	logger      *zap.Logger

	// inFlight serializes sweeps. A tick that fires while a sweep is
	// still running is dropped, not queued.
	inFlight *semaphore.Weighted

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	// appActive mirrors whether the embedding application is in the
	// foreground. Local sweeps pause while inactive; comprehensive
	// sweeps keep running.
	appActive bool

	stats Stats
}

// New creates a scheduler from its dependencies.
func New(deps *Deps) (*Scheduler, error) {
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	cfg := deps.Config
	if cfg == nil {
		def := config.DefaultGuardianConfig()
		cfg = &def
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid guardian config: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		coordinator: deps.Coordinator,
		config:      cfg,
		alerter:     NewAlerter(deps.Notifier, cfg.AlertCooldown, logger),
		bus:         deps.Bus,
		store:       deps.Store,
		logger:      logger,
		inFlight:    semaphore.NewWeighted(1),
		appActive:   true,
		stats:       Stats{LastStatus: types.HealthHealthy},
	}, nil
}

// seedFeed primes the bus's recent window from the persisted feed. Runs
// once per process, before anything new is emitted.
func (s *Scheduler) seedFeed(ctx context.Context) {
	if s.store == nil || s.bus == nil {
		return
	}
	s.feedOnce.Do(func() {
		feed, err := events.LoadFeed(ctx, s.store)
		if err != nil {
			s.logger.Warn("dropping persisted event feed", zap.Error(err))
			return
		}
		if len(feed) > 0 {
			s.bus.SeedRecent(feed)
		}
	})
}

// persistFeed writes the bus's recent window back to storage. Failures
// are logged; the in-memory feed stays authoritative.
func (s *Scheduler) persistFeed(ctx context.Context) {
	if s.store == nil || s.bus == nil {
		return
	}
	if err := events.SaveFeed(ctx, s.store, s.bus.Recent()); err != nil {
		s.logger.Warn("failed to persist event feed", zap.Error(err))
	}
}

// Start begins the guardian loop. Starting a running scheduler is an
// error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("guardian already running")
	}
	s.seedFeed(ctx)
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.run()

	s.logger.Info("guardian started",
		zap.Duration("local_interval", s.config.LocalInterval),
		zap.Duration("comprehensive_interval", s.config.ComprehensiveInterval),
		zap.Bool("auto_repair", s.config.AutoRepair))
	return nil
}

// Stop halts the loop and waits for any in-flight sweep to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("guardian stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SetActive tells the scheduler whether the embedding application is in
// the foreground. While inactive, local sweeps are skipped.
func (s *Scheduler) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appActive != active {
		s.logger.Info("application activity changed", zap.Bool("active", active))
	}
	s.appActive = active
	if s.bus != nil {
		s.bus.EmitActivity(active)
	}
}

// Active reports the application activity flag.
func (s *Scheduler) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appActive
}

// Stats returns a copy of the lifetime counters.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// run is the guardian loop: two tickers, one select.
func (s *Scheduler) run() {
	defer s.wg.Done()

	local := time.NewTicker(s.config.LocalInterval)
	defer local.Stop()
	comprehensive := time.NewTicker(s.config.ComprehensiveInterval)
	defer comprehensive.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-local.C:
			if !s.Active() {
				continue
			}
			s.launchSweep(SweepLocal)
		case <-comprehensive.C:
			s.launchSweep(SweepComprehensive)
		}
	}
}

// launchSweep runs a sweep in its own goroutine so the loop keeps
// ticking. A tick landing while another sweep holds the gate is dropped
// and counted.
func (s *Scheduler) launchSweep(kind SweepKind) {
	if !s.inFlight.TryAcquire(1) {
		s.mu.Lock()
		s.stats.SkippedTicks++
		s.mu.Unlock()
		s.logger.Debug("sweep already in flight, dropping tick",
			zap.String("kind", string(kind)))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Release(1)

		sweepCtx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
		defer cancel()
		if _, err := s.sweep(sweepCtx, kind); err != nil {
			s.logger.Warn("sweep failed",
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}()
}

// PerformImmediate runs one sweep synchronously. It works whether or
// not the loop is running, but still respects the in-flight gate: a
// sweep in progress means an immediate request fails rather than
// overlapping it.
func (s *Scheduler) PerformImmediate(ctx context.Context, kind SweepKind) (*SweepSummary, error) {
	if !s.inFlight.TryAcquire(1) {
		return nil, fmt.Errorf("a sweep is already in flight")
	}
	defer s.inFlight.Release(1)

	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	return s.sweep(sweepCtx, kind)
}

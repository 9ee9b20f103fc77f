package guardian

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/questlog/mechanicum/internal/config"
	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/frequency"
	"github.com/questlog/mechanicum/internal/mission"
	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/repairlog"
	"github.com/questlog/mechanicum/internal/store"
	"github.com/questlog/mechanicum/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingNotifier captures delivered alerts.
type recordingNotifier struct {
	mu    sync.Mutex
	shown []string
}

func (r *recordingNotifier) Show(_ context.Context, title, _ string, _ types.Priority) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, title)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown)
}

func newTestScheduler(t *testing.T, mutate func(*config.GuardianConfig)) (*Scheduler, *mission.Coordinator, *recordingNotifier) {
	t.Helper()
	return newTestSchedulerOn(t, store.NewMemory(), mutate)
}

func newTestSchedulerOn(t *testing.T, st store.Store, mutate func(*config.GuardianConfig)) (*Scheduler, *mission.Coordinator, *recordingNotifier) {
	t.Helper()
	ctx := context.Background()

	checks, err := registry.NewCheckRegistry(ctx, registry.CheckRegistryConfig{Store: st})
	if err != nil {
		t.Fatalf("failed to build check registry: %v", err)
	}
	repairs, err := registry.NewRepairRegistry(ctx, registry.RepairRegistryConfig{Store: st})
	if err != nil {
		t.Fatalf("failed to build repair registry: %v", err)
	}
	rlog, err := repairlog.New(ctx, &repairlog.Config{Store: st})
	if err != nil {
		t.Fatalf("failed to build repair log: %v", err)
	}
	tracker, err := frequency.New(ctx, &frequency.Config{Store: st})
	if err != nil {
		t.Fatalf("failed to build frequency tracker: %v", err)
	}
	bus := events.NewBus(50)
	t.Cleanup(bus.Close)

	coord, err := mission.NewCoordinator(ctx, &mission.Config{
		Store:     st,
		Checks:    checks,
		Repairs:   repairs,
		RepairLog: rlog,
		Frequency: tracker,
		Bus:       bus,
	})
	if err != nil {
		t.Fatalf("failed to build coordinator: %v", err)
	}

	cfg := config.DefaultGuardianConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	notifier := &recordingNotifier{}
	sched, err := New(&Deps{
		Coordinator: coord,
		Config:      &cfg,
		Notifier:    notifier,
		Bus:         bus,
		Store:       st,
	})
	if err != nil {
		t.Fatalf("failed to build scheduler: %v", err)
	}
	return sched, coord, notifier
}

func seedDuplicates(t *testing.T, coord *mission.Coordinator) {
	t.Helper()
	created := time.Now().Add(-time.Hour)
	snap := types.NewSnapshot()
	for _, id := range []string{"m-1", "m-2"} {
		snap.Active = append(snap.Active, &types.MissionRecord{
			ID:             id,
			NotificationID: 42,
			Title:          "Mission " + id,
			Kind:           types.KindDaily,
			CreatedAt:      &created,
		})
	}
	if err := coord.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestNewValidatesDeps(t *testing.T) {
	if _, err := New(&Deps{}); err == nil {
		t.Fatal("scheduler built without a coordinator")
	}

	_, coord, _ := newTestScheduler(t, nil)
	bad := config.DefaultGuardianConfig()
	bad.LocalInterval = time.Millisecond
	if _, err := New(&Deps{Coordinator: coord, Config: &bad}); err == nil {
		t.Fatal("scheduler accepted an invalid config")
	}
}

// TestStartStopLifecycle verifies the stopped/running transitions and
// that Stop waits out the loop goroutine.
func TestStartStopLifecycle(t *testing.T) {
	sched, _, _ := newTestScheduler(t, nil)
	ctx := context.Background()

	if sched.Running() {
		t.Fatal("scheduler running before Start")
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !sched.Running() {
		t.Fatal("scheduler not running after Start")
	}
	if err := sched.Start(ctx); err == nil {
		t.Error("second Start succeeded")
	}

	sched.Stop()
	if sched.Running() {
		t.Error("scheduler running after Stop")
	}
	sched.Stop() // stopping again is a no-op
}

// TestPerformImmediateRepairsWhileStopped verifies an immediate
// comprehensive sweep works without the loop running and auto-repairs
// what it finds.
func TestPerformImmediateRepairsWhileStopped(t *testing.T) {
	sched, coord, _ := newTestScheduler(t, nil)
	ctx := context.Background()
	seedDuplicates(t, coord)

	summary, err := sched.PerformImmediate(ctx, SweepComprehensive)
	if err != nil {
		t.Fatalf("immediate sweep failed: %v", err)
	}
	if summary.ChecksRun != coord.Checks().Len() {
		t.Errorf("checks run = %d, want %d", summary.ChecksRun, coord.Checks().Len())
	}
	if len(summary.IssuesFound) == 0 {
		t.Fatal("duplicate not detected")
	}
	if summary.RepairsApplied == 0 {
		t.Fatal("duplicate not repaired")
	}
	if summary.Status != types.HealthWarning {
		t.Errorf("status = %s, want warning", summary.Status)
	}

	snap, err := coord.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	keepers := 0
	for _, m := range snap.All() {
		if m.NotificationID == 42 {
			keepers++
		}
	}
	if keepers != 1 {
		t.Errorf("%d records still hold notification id 42", keepers)
	}

	backedUp, _, err := coord.BackupInfo(ctx)
	if err != nil {
		t.Fatalf("backup info failed: %v", err)
	}
	if !backedUp {
		t.Error("structural repair ran without taking a backup first")
	}

	stats := sched.Stats()
	if stats.ComprehensiveSweeps != 1 {
		t.Errorf("comprehensive sweeps = %d, want 1", stats.ComprehensiveSweeps)
	}
	if stats.LastSweep.IsZero() {
		t.Error("last sweep time not recorded")
	}
}

// TestLocalSweepRunsSubsetOnly verifies the local cadence runs at most
// the configured number of top-priority checks.
func TestLocalSweepRunsSubsetOnly(t *testing.T) {
	sched, coord, _ := newTestScheduler(t, nil)

	summary, err := sched.PerformImmediate(context.Background(), SweepLocal)
	if err != nil {
		t.Fatalf("local sweep failed: %v", err)
	}
	if summary.ChecksRun > sched.config.SubsetLimit {
		t.Errorf("local sweep ran %d checks, limit %d", summary.ChecksRun, sched.config.SubsetLimit)
	}
	if summary.ChecksRun >= coord.Checks().Len() {
		t.Errorf("local sweep ran the full suite (%d checks)", summary.ChecksRun)
	}
	if summary.Status != types.HealthHealthy {
		t.Errorf("clean state reported %s", summary.Status)
	}
}

// TestAutoRepairDisabledQueuesSuggestions verifies issues become
// pending suggestions instead of repairs when auto-repair is off.
func TestAutoRepairDisabledQueuesSuggestions(t *testing.T) {
	sched, coord, _ := newTestScheduler(t, func(c *config.GuardianConfig) {
		c.AutoRepair = false
	})
	ctx := context.Background()
	seedDuplicates(t, coord)

	summary, err := sched.PerformImmediate(ctx, SweepComprehensive)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if summary.RepairsApplied != 0 {
		t.Errorf("repairs applied with auto-repair off: %d", summary.RepairsApplied)
	}
	if summary.SuggestionsQueued == 0 {
		t.Fatal("no suggestion queued")
	}

	snap, _ := coord.LoadSnapshot(ctx)
	dups := 0
	for _, m := range snap.All() {
		if m.NotificationID == 42 {
			dups++
		}
	}
	if dups != 2 {
		t.Error("state modified with auto-repair off")
	}

	list, err := coord.Suggestions(ctx)
	if err != nil {
		t.Fatalf("suggestions failed: %v", err)
	}
	pending := 0
	for _, s := range list {
		if s.Status == mission.SuggestionPending {
			pending++
		}
	}
	if pending == 0 {
		t.Error("no pending suggestion on file")
	}
}

// TestInFlightGateRejectsOverlap verifies a second sweep cannot start
// while one is running.
func TestInFlightGateRejectsOverlap(t *testing.T) {
	sched, coord, _ := newTestScheduler(t, nil)
	ctx := context.Background()

	// Low priority keeps the blocking check out of the local subset, so
	// the probe sweep below cannot get stuck on it.
	started := make(chan struct{})
	release := make(chan struct{})
	if !coord.Checks().Learn(ctx, "slow_check", "blocks until released", types.PriorityLow,
		func(context.Context, *types.Snapshot) (bool, error) {
			close(started)
			<-release
			return false, nil
		}) {
		t.Fatal("failed to learn the blocking check")
	}

	done := make(chan error, 1)
	go func() {
		_, err := sched.PerformImmediate(ctx, SweepComprehensive)
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatal("comprehensive sweep never reached the blocking check")
	}

	if _, err := sched.PerformImmediate(ctx, SweepLocal); err == nil {
		t.Error("overlapping sweep was not rejected")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
}

// TestAlertsAreThrottledPerCategory verifies repeated findings of the
// same issue alert once per cooldown window.
func TestAlertsAreThrottledPerCategory(t *testing.T) {
	sched, coord, notifier := newTestScheduler(t, func(c *config.GuardianConfig) {
		c.AutoRepair = false
	})
	ctx := context.Background()
	seedDuplicates(t, coord)

	if _, err := sched.PerformImmediate(ctx, SweepComprehensive); err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	first := notifier.count()
	if first == 0 {
		t.Fatal("critical issue produced no alert")
	}

	if _, err := sched.PerformImmediate(ctx, SweepComprehensive); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if notifier.count() != first {
		t.Errorf("repeat finding re-alerted inside the cooldown window: %d -> %d", first, notifier.count())
	}
}

// TestEventFeedSurvivesRestart verifies the sweep trail is persisted
// and seeds the bus of a freshly built scheduler.
func TestEventFeedSurvivesRestart(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	sched, coord, _ := newTestSchedulerOn(t, st, nil)
	seedDuplicates(t, coord)
	if _, err := sched.PerformImmediate(ctx, SweepComprehensive); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	feed, err := events.LoadFeed(ctx, st)
	if err != nil {
		t.Fatalf("load feed failed: %v", err)
	}
	if len(feed) == 0 {
		t.Fatal("sweep left no persisted events")
	}
	kinds := make(map[events.EventType]bool)
	for _, ev := range feed {
		kinds[ev.Type] = true
	}
	if !kinds[events.EventTypeSweepStarted] || !kinds[events.EventTypeSweepCompleted] {
		t.Errorf("feed missing sweep lifecycle events: %v", kinds)
	}
	if !kinds[events.EventTypeRepairApplied] {
		t.Errorf("feed missing the repair event: %v", kinds)
	}

	fresh, _, _ := newTestSchedulerOn(t, st, nil)
	fresh.seedFeed(ctx)
	if len(fresh.bus.Recent()) != len(feed) {
		t.Errorf("restarted bus holds %d events, want %d", len(fresh.bus.Recent()), len(feed))
	}
}

// TestSetActiveToggles verifies the activity side-channel.
func TestSetActiveToggles(t *testing.T) {
	sched, _, _ := newTestScheduler(t, nil)

	if !sched.Active() {
		t.Fatal("scheduler starts inactive")
	}
	sched.SetActive(false)
	if sched.Active() {
		t.Error("SetActive(false) ignored")
	}
	sched.SetActive(true)
	if !sched.Active() {
		t.Error("SetActive(true) ignored")
	}
}

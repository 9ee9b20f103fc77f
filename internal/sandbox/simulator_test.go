package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/store"
	"github.com/questlog/mechanicum/internal/types"
)

// setupSimulator builds a simulator over fresh registries and returns
// a pointer that captures whatever snapshot gets committed.
func setupSimulator(t *testing.T) (*Simulator, **types.Snapshot) {
	t.Helper()

	ctx := context.Background()
	st := store.NewMemory()
	checks, err := registry.NewCheckRegistry(ctx, registry.CheckRegistryConfig{Store: st})
	if err != nil {
		t.Fatalf("failed to build check registry: %v", err)
	}
	repairs, err := registry.NewRepairRegistry(ctx, registry.RepairRegistryConfig{Store: st})
	if err != nil {
		t.Fatalf("failed to build repair registry: %v", err)
	}

	var committed *types.Snapshot
	sim, err := New(ctx, Config{
		Checks:  checks,
		Repairs: repairs,
		Commit: func(_ context.Context, snap *types.Snapshot) error {
			committed = snap
			return nil
		},
	})
	if err != nil {
		t.Fatalf("failed to build simulator: %v", err)
	}
	return sim, &committed
}

func brokenSnapshot(t *testing.T) *types.Snapshot {
	t.Helper()
	created := time.Now().Add(-time.Hour)
	snap := types.NewSnapshot()
	for i, notif := range []int32{42, 42} {
		snap.Active = append(snap.Active, &types.MissionRecord{
			ID:             fmt.Sprintf("m-%d", i+1),
			NotificationID: notif,
			Title:          fmt.Sprintf("Mission %d", i+1),
			Kind:           types.KindDaily,
			CreatedAt:      &created,
		})
	}
	return snap
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}, wantErr: false},
		{name: "missing checks", mutate: func(c *Config) { c.Checks = nil }, wantErr: true},
		{name: "missing repairs", mutate: func(c *Config) { c.Repairs = nil }, wantErr: true},
		{name: "missing commit", mutate: func(c *Config) { c.Commit = nil }, wantErr: true},
	}

	ctx := context.Background()
	st := store.NewMemory()
	checks, _ := registry.NewCheckRegistry(ctx, registry.CheckRegistryConfig{Store: st})
	repairs, _ := registry.NewRepairRegistry(ctx, registry.RepairRegistryConfig{Store: st})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Checks:  checks,
				Repairs: repairs,
				Commit:  func(context.Context, *types.Snapshot) error { return nil },
			}
			tt.mutate(&cfg)
			_, err := New(ctx, cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestSimulateLeavesInputUntouched verifies simulation works on a clone:
// the input snapshot is byte-identical before and after, and nothing is
// committed.
func TestSimulateLeavesInputUntouched(t *testing.T) {
	sim, committed := setupSimulator(t)
	snap := brokenSnapshot(t)

	before, err := snap.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	report, err := sim.Simulate(context.Background(), snap, registry.RepairNameFor(registry.CheckDuplicateNotificationIDs))
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}

	after, err := snap.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("simulation modified the input snapshot")
	}
	if *committed != nil {
		t.Error("simulation committed without being asked")
	}
	if !report.Success {
		t.Errorf("expected successful simulation, got: %s", report.Summary)
	}
	if report.ResultingState == nil || report.ResultingState == snap {
		t.Error("resulting state must be a distinct snapshot")
	}
}

// TestSimulateVerifiesOwnCheck verifies the repaired clone passes the
// repair's own check and the answer lands in TestResults.
func TestSimulateVerifiesOwnCheck(t *testing.T) {
	sim, _ := setupSimulator(t)

	report, err := sim.Simulate(context.Background(), brokenSnapshot(t), registry.RepairNameFor(registry.CheckDuplicateNotificationIDs))
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if len(report.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d: %v", len(report.Changes), report.Changes)
	}
	passed, ok := report.TestResults[registry.CheckDuplicateNotificationIDs]
	if !ok || !passed {
		t.Errorf("own check not verified: present=%v passed=%v", ok, passed)
	}
}

// TestSimulateCapturesException verifies a panicking repair produces a
// failed report with the exception in the summary, not a crash.
func TestSimulateCapturesException(t *testing.T) {
	sim, _ := setupSimulator(t)
	sim.repairs.LearnRepair(context.Background(), "fix_explosive", "always panics", types.PriorityLow,
		func(context.Context, *types.Snapshot) ([]string, error) { panic("boom") })

	report, err := sim.Simulate(context.Background(), brokenSnapshot(t), "fix_explosive")
	if err != nil {
		t.Fatalf("simulate returned error instead of failed report: %v", err)
	}
	if report.Success {
		t.Error("exception-raising repair reported success")
	}
	if !strings.HasPrefix(report.Summary, "Exception:") {
		t.Errorf("summary does not carry the exception: %s", report.Summary)
	}
}

// TestSimulateDetectsRegression verifies a repair that breaks a
// previously passing check fails the simulation.
func TestSimulateDetectsRegression(t *testing.T) {
	sim, _ := setupSimulator(t)
	sim.repairs.LearnRepair(context.Background(), "fix_backfire", "introduces a duplicate", types.PriorityLow,
		func(_ context.Context, snap *types.Snapshot) ([]string, error) {
			if len(snap.Active) > 0 {
				dup := snap.Active[0].Clone()
				snap.Active = append(snap.Active, dup)
			}
			return []string{"duplicated first mission"}, nil
		})

	created := time.Now().Add(-time.Hour)
	snap := types.NewSnapshot()
	snap.Active = append(snap.Active, &types.MissionRecord{
		ID: "m-1", NotificationID: 100, Title: "Mission 1",
		Kind: types.KindDaily, CreatedAt: &created,
	})

	report, err := sim.Simulate(context.Background(), snap, "fix_backfire")
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}
	if report.Success {
		t.Error("regression-introducing repair reported success")
	}
	if !strings.Contains(report.Summary, "regression") {
		t.Errorf("summary does not name the regression: %s", report.Summary)
	}
}

// TestCommitAppliesResultingState verifies commit hands the repaired
// snapshot to the commit function exactly once and drops the report.
func TestCommitAppliesResultingState(t *testing.T) {
	sim, committed := setupSimulator(t)

	report, err := sim.Simulate(context.Background(), brokenSnapshot(t), registry.RepairNameFor(registry.CheckDuplicateNotificationIDs))
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}

	if err := sim.Commit(context.Background(), report.ID); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if *committed != report.ResultingState {
		t.Error("commit did not hand over the resulting state")
	}
	if err := sim.Commit(context.Background(), report.ID); err == nil {
		t.Error("second commit of the same report succeeded")
	}
}

// TestCommitRefusesFailedReport verifies failed simulations cannot be
// committed.
func TestCommitRefusesFailedReport(t *testing.T) {
	sim, committed := setupSimulator(t)
	sim.repairs.LearnRepair(context.Background(), "fix_explosive", "always panics", types.PriorityLow,
		func(context.Context, *types.Snapshot) ([]string, error) { panic("boom") })

	report, _ := sim.Simulate(context.Background(), brokenSnapshot(t), "fix_explosive")
	if err := sim.Commit(context.Background(), report.ID); err == nil {
		t.Fatal("commit of failed simulation succeeded")
	}
	if *committed != nil {
		t.Error("failed simulation reached the commit function")
	}
}

// TestDiscardDropsPending verifies discarded reports disappear without
// touching live state.
func TestDiscardDropsPending(t *testing.T) {
	sim, committed := setupSimulator(t)

	report, _ := sim.Simulate(context.Background(), brokenSnapshot(t), registry.RepairNameFor(registry.CheckDuplicateNotificationIDs))
	if len(sim.Pending()) != 1 {
		t.Fatalf("expected 1 pending report, got %d", len(sim.Pending()))
	}
	if !sim.Discard(context.Background(), report.ID) {
		t.Fatal("discard of pending report failed")
	}
	if len(sim.Pending()) != 0 {
		t.Error("report still pending after discard")
	}
	if sim.Discard(context.Background(), report.ID) {
		t.Error("second discard succeeded")
	}
	if *committed != nil {
		t.Error("discard touched live state")
	}
}

// TestStagedReportsSurviveRestart verifies a store-backed simulator
// reloads reports staged by an earlier instance, can still commit
// them, and clears storage once they resolve.
func TestStagedReportsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	checks, err := registry.NewCheckRegistry(ctx, registry.CheckRegistryConfig{Store: st})
	if err != nil {
		t.Fatalf("failed to build check registry: %v", err)
	}
	repairs, err := registry.NewRepairRegistry(ctx, registry.RepairRegistryConfig{Store: st})
	if err != nil {
		t.Fatalf("failed to build repair registry: %v", err)
	}

	var committed *types.Snapshot
	cfg := Config{
		Checks:  checks,
		Repairs: repairs,
		Store:   st,
		Commit: func(_ context.Context, snap *types.Snapshot) error {
			committed = snap
			return nil
		},
	}

	first, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to build simulator: %v", err)
	}
	report, err := first.Simulate(ctx, brokenSnapshot(t), registry.RepairNameFor(registry.CheckDuplicateNotificationIDs))
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}

	second, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to rebuild simulator: %v", err)
	}
	if _, ok := second.Get(report.ID); !ok {
		t.Fatal("staged report lost across restart")
	}
	if err := second.Commit(ctx, report.ID); err != nil {
		t.Fatalf("commit of reloaded report failed: %v", err)
	}
	if committed == nil {
		t.Fatal("reloaded report committed nothing")
	}
	keepers := 0
	for _, m := range committed.All() {
		if m.NotificationID == 42 {
			keepers++
		}
	}
	if keepers != 1 {
		t.Errorf("committed state holds %d records with notification id 42, want 1", keepers)
	}

	third, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to rebuild simulator: %v", err)
	}
	if n := len(third.Pending()); n != 0 {
		t.Errorf("%d reports still staged after commit", n)
	}
}

package mission

import (
	"context"
	"testing"

	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/types"
)

func seedDuplicateNotifs(t *testing.T, c *Coordinator) {
	t.Helper()
	snap := types.NewSnapshot()
	snap.Active = append(snap.Active, validMission("m-1", 42), validMission("m-2", 42))
	if err := c.SaveSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}
}

// TestSuggestDeduplicatesPending verifies a second suggestion for the
// same issue reuses the pending one.
func TestSuggestDeduplicatesPending(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	first, created, err := c.Suggest(ctx, registry.CheckDuplicateNotificationIDs,
		"two missions share notification id 42",
		registry.RepairNameFor(registry.CheckDuplicateNotificationIDs), "m-2")
	if err != nil || !created {
		t.Fatalf("first suggest: created=%v err=%v", created, err)
	}

	second, created, err := c.Suggest(ctx, registry.CheckDuplicateNotificationIDs,
		"seen again", registry.RepairNameFor(registry.CheckDuplicateNotificationIDs), "")
	if err != nil {
		t.Fatalf("second suggest failed: %v", err)
	}
	if created {
		t.Error("duplicate pending suggestion created")
	}
	if second.ID != first.ID {
		t.Errorf("expected reuse of %s, got %s", first.ID, second.ID)
	}
}

// TestApproveAppliesSuggestedRepair verifies approval simulates the
// repair, commits the verified result, and resolves the suggestion.
func TestApproveAppliesSuggestedRepair(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedDuplicateNotifs(t, c)

	s, _, err := c.Suggest(ctx, registry.CheckDuplicateNotificationIDs,
		"two missions share notification id 42",
		registry.RepairNameFor(registry.CheckDuplicateNotificationIDs), "m-2")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}

	resolved, err := c.Approve(ctx, s.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if resolved.Status != SuggestionApproved {
		t.Errorf("status = %s, want approved", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolved time missing")
	}

	repaired, err := c.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	keepers := 0
	for _, m := range repaired.All() {
		if m.NotificationID == 42 {
			keepers++
		}
	}
	if keepers != 1 {
		t.Errorf("repair not applied, %d records still hold id 42", keepers)
	}
	if c.RepairLog().Len() == 0 {
		t.Error("approved repair left no audit entries")
	}
}

// TestApproveFailedSimulationStaysPending verifies a repair that fails
// verification leaves the suggestion pending and live state untouched.
func TestApproveFailedSimulationStaysPending(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedDuplicateNotifs(t, c)

	c.Repairs().LearnRepair(ctx, "fix_broken", "always panics", types.PriorityLow,
		func(context.Context, *types.Snapshot) ([]string, error) { panic("boom") })

	s, _, err := c.Suggest(ctx, "broken", "needs the broken repair", "fix_broken", "")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if _, err := c.Approve(ctx, s.ID); err == nil {
		t.Fatal("approval of unverifiable repair succeeded")
	}

	list, err := c.Suggestions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, got := range list {
		if got.ID == s.ID && got.Status != SuggestionPending {
			t.Errorf("suggestion left in state %s, want pending", got.Status)
		}
	}

	snap, _ := c.LoadSnapshot(ctx)
	dups := 0
	for _, m := range snap.All() {
		if m.NotificationID == 42 {
			dups++
		}
	}
	if dups != 2 {
		t.Error("failed approval modified live state")
	}
}

// TestRejectLeavesStateUntouched verifies rejection resolves the
// suggestion without running anything.
func TestRejectLeavesStateUntouched(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedDuplicateNotifs(t, c)

	s, _, err := c.Suggest(ctx, registry.CheckDuplicateNotificationIDs,
		"two missions share notification id 42",
		registry.RepairNameFor(registry.CheckDuplicateNotificationIDs), "")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}

	rejected, err := c.Reject(ctx, s.ID, "user wants to review manually")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != SuggestionRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	if rejected.Resolution != "user wants to review manually" {
		t.Errorf("resolution = %q", rejected.Resolution)
	}

	snap, _ := c.LoadSnapshot(ctx)
	dups := 0
	for _, m := range snap.All() {
		if m.NotificationID == 42 {
			dups++
		}
	}
	if dups != 2 {
		t.Error("rejection modified live state")
	}

	if _, err := c.Reject(ctx, s.ID, "again"); err == nil {
		t.Error("second rejection succeeded")
	}
}

// TestApproveUnknownSuggestion verifies unknown ids are rejected.
func TestApproveUnknownSuggestion(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	if _, err := c.Approve(context.Background(), "nope"); err == nil {
		t.Fatal("approval of unknown suggestion succeeded")
	}
}

// TestSuggestionStatistics verifies the queue rollup and approval rate.
func TestSuggestionStatistics(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	seedDuplicateNotifs(t, c)

	approve, _, err := c.Suggest(ctx, registry.CheckDuplicateNotificationIDs,
		"duplicate notification ids",
		registry.RepairNameFor(registry.CheckDuplicateNotificationIDs), "")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	reject, _, err := c.Suggest(ctx, registry.CheckCounterOverflow,
		"counter overshoot",
		registry.RepairNameFor(registry.CheckCounterOverflow), "")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if _, _, err := c.Suggest(ctx, registry.CheckNegativeCounters,
		"negative counter",
		registry.RepairNameFor(registry.CheckNegativeCounters), ""); err != nil {
		t.Fatalf("suggest failed: %v", err)
	}

	if _, err := c.Approve(ctx, approve.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := c.Reject(ctx, reject.ID, "not now"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	stats, err := c.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Approved != 1 || stats.Rejected != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ApprovalRate != 0.5 {
		t.Errorf("approval rate = %g, want 0.5", stats.ApprovalRate)
	}
}

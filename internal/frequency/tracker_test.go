package frequency

import (
	"context"
	"testing"

	"github.com/questlog/mechanicum/internal/store"
)

func newTestTracker(t *testing.T, st store.Store) *Tracker {
	t.Helper()
	tracker, err := New(context.Background(), &Config{Store: st})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return tracker
}

// TestEscalationCandidateAtThreshold verifies candidacy flips exactly on
// the third occurrence, not before
func TestEscalationCandidateAtThreshold(t *testing.T) {
	tracker := newTestTracker(t, store.NewMemory())
	ctx := context.Background()
	const issue = "Duplicate notification ID"

	tracker.Record(ctx, issue)
	if tracker.EscalationCandidate(issue) {
		t.Error("candidate after 1 occurrence, want false")
	}
	tracker.Record(ctx, issue)
	if tracker.EscalationCandidate(issue) {
		t.Error("candidate after 2 occurrences, want false")
	}
	if got := tracker.Record(ctx, issue); got != 3 {
		t.Errorf("Record() = %d, want 3", got)
	}
	if !tracker.EscalationCandidate(issue) {
		t.Error("not a candidate after 3 occurrences, want true")
	}
}

// TestCountsAreIndependent verifies issue names do not share counters
func TestCountsAreIndependent(t *testing.T) {
	tracker := newTestTracker(t, store.NewMemory())
	ctx := context.Background()

	tracker.Record(ctx, "issue-a")
	tracker.Record(ctx, "issue-a")
	tracker.Record(ctx, "issue-b")

	if got := tracker.Count("issue-a"); got != 2 {
		t.Errorf("Count(issue-a) = %d, want 2", got)
	}
	if got := tracker.Count("issue-b"); got != 1 {
		t.Errorf("Count(issue-b) = %d, want 1", got)
	}
	if got := tracker.Count("issue-c"); got != 0 {
		t.Errorf("Count(issue-c) = %d, want 0", got)
	}
}

// TestCountsPersistAcrossInstances verifies the table survives a restart
func TestCountsPersistAcrossInstances(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	first := newTestTracker(t, st)
	first.Record(ctx, "orphaned subtask")
	first.Record(ctx, "orphaned subtask")

	second := newTestTracker(t, st)
	if got := second.Count("orphaned subtask"); got != 2 {
		t.Errorf("Count() after reload = %d, want 2", got)
	}
	second.Record(ctx, "orphaned subtask")
	if !second.EscalationCandidate("orphaned subtask") {
		t.Error("candidacy lost across restart")
	}
}

// TestCorruptTableStartsFresh verifies a malformed persisted table is
// discarded instead of aborting startup
func TestCorruptTableStartsFresh(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	if err := st.SetString(ctx, store.KeyIssueFrequency, "{not json"); err != nil {
		t.Fatalf("SetString() failed: %v", err)
	}

	tracker := newTestTracker(t, st)
	if got := tracker.Count("anything"); got != 0 {
		t.Errorf("Count() = %d after corrupt load, want 0", got)
	}
	tracker.Record(ctx, "anything")
	if got := tracker.Count("anything"); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

// TestSnapshotIsACopy verifies callers cannot mutate internal counts
func TestSnapshotIsACopy(t *testing.T) {
	tracker := newTestTracker(t, store.NewMemory())
	ctx := context.Background()
	tracker.Record(ctx, "issue-a")

	snap := tracker.Snapshot()
	snap["issue-a"] = 99
	if got := tracker.Count("issue-a"); got != 1 {
		t.Errorf("Count() = %d after snapshot mutation, want 1", got)
	}
}

package repairlog

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/questlog/mechanicum/internal/store"
)

func newTestLog(t *testing.T, st store.Store, capacity int) *Log {
	t.Helper()
	l, err := New(context.Background(), &Config{Store: st, Capacity: capacity})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return l
}

// TestAppendAndEntries verifies basic append ordering
func TestAppendAndEntries(t *testing.T) {
	l := newTestLog(t, store.NewMemory(), 10)
	ctx := context.Background()

	l.Append(ctx, "Duplicate mission ID", "regenerated id", "m-2")
	l.Append(ctx, "Empty title", "set placeholder title", "m-5")

	entries := l.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() returned %d, want 2", len(entries))
	}
	if entries[0].Issue != "Duplicate mission ID" {
		t.Errorf("entries[0].Issue = %q", entries[0].Issue)
	}
	if entries[1].RecordID != "m-5" {
		t.Errorf("entries[1].RecordID = %q, want m-5", entries[1].RecordID)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("entry timestamp not set")
	}
}

// TestRingEvictsOldestFirst verifies the capacity bound drops the oldest
// entries
func TestRingEvictsOldestFirst(t *testing.T) {
	l := newTestLog(t, store.NewMemory(), 10)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		l.Append(ctx, fmt.Sprintf("issue-%d", i), "fixed", "")
	}

	entries := l.Entries()
	if len(entries) != 10 {
		t.Fatalf("Entries() returned %d, want capacity 10", len(entries))
	}
	if entries[0].Issue != "issue-5" {
		t.Errorf("oldest retained = %q, want issue-5", entries[0].Issue)
	}
	if entries[9].Issue != "issue-14" {
		t.Errorf("newest retained = %q, want issue-14", entries[9].Issue)
	}
}

// TestLogPersistsAcrossInstances verifies the ring survives a restart,
// including the capacity bound
func TestLogPersistsAcrossInstances(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	first := newTestLog(t, st, 10)
	first.Append(ctx, "Duplicate notification ID", "assigned fresh id", "m-1")
	first.Append(ctx, "Duplicate notification ID", "assigned fresh id", "m-3")

	second := newTestLog(t, st, 10)
	entries := second.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() after reload = %d, want 2", len(entries))
	}
	if entries[1].RecordID != "m-3" {
		t.Errorf("entries[1].RecordID = %q, want m-3", entries[1].RecordID)
	}

	// A smaller capacity on reload keeps only the newest
	third := newTestLog(t, st, 10)
	for i := 0; i < 12; i++ {
		third.Append(ctx, "filler", "fixed", "")
	}
	reloaded := newTestLog(t, st, 10)
	if reloaded.Len() != 10 {
		t.Errorf("Len() after reload = %d, want 10", reloaded.Len())
	}
}

// TestSummaryAggregatesByIssue verifies the per-issue rollup
func TestSummaryAggregatesByIssue(t *testing.T) {
	l := newTestLog(t, store.NewMemory(), 20)
	ctx := context.Background()

	if got := l.Summary(); got != "no repairs recorded" {
		t.Errorf("empty Summary() = %q", got)
	}

	l.Append(ctx, "Duplicate mission ID", "regenerated id", "m-1")
	l.Append(ctx, "Duplicate mission ID", "regenerated id", "m-2")
	l.Append(ctx, "Empty title", "set placeholder title", "m-3")

	summary := l.Summary()
	if !strings.Contains(summary, "3 repairs across 2 issue kinds") {
		t.Errorf("Summary() = %q, missing totals", summary)
	}
	if !strings.Contains(summary, "Duplicate mission ID: 2") {
		t.Errorf("Summary() = %q, missing per-issue count", summary)
	}
}

// TestCorruptEntriesSkipped verifies unreadable persisted entries are
// dropped without failing the load
func TestCorruptEntriesSkipped(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	seed := []string{
		`{"timestamp":"2025-03-01T08:00:00Z","issue":"ok","action":"fixed"}`,
		`{broken`,
		`{"timestamp":"2025-03-01T09:00:00Z","issue":"also ok","action":"fixed"}`,
	}
	if err := st.SetStringList(ctx, store.KeyRepairLog, seed); err != nil {
		t.Fatalf("SetStringList() failed: %v", err)
	}

	l := newTestLog(t, st, 10)
	entries := l.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() = %d, want 2 readable", len(entries))
	}
	if entries[0].Issue != "ok" || entries[1].Issue != "also ok" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

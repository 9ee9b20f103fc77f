package types

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleSnapshot() *Snapshot {
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return &Snapshot{
		Active: []*MissionRecord{
			{
				ID:             "m-active",
				NotificationID: 100,
				Title:          "Stretch",
				Kind:           KindDaily,
				CreatedAt:      &created,
				Subtasks: []*SubtaskRecord{
					{Name: "warmup", RequiredCompletions: 1},
				},
			},
		},
		Completed: []*MissionRecord{
			{ID: "m-done", NotificationID: 101, Title: "Read", Kind: KindSimple, IsCompleted: true},
		},
		Deleted: []*MissionRecord{
			{ID: "m-gone", NotificationID: 102, Title: "Old", Kind: KindWeekly},
		},
	}
}

// TestSnapshotCloneIsDeep verifies that mutating a clone is never
// observable through the source snapshot
func TestSnapshotCloneIsDeep(t *testing.T) {
	src := sampleSnapshot()
	before, err := src.Marshal()
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	clone := src.Clone()
	if diff := cmp.Diff(src, clone); diff != "" {
		t.Fatalf("clone differs from source (-src +clone):\n%s", diff)
	}

	clone.Active[0].Title = "Mutated"
	clone.Active[0].Subtasks[0].Name = "mutated-step"
	clone.Completed[0].IsCompleted = false
	clone.Deleted = append(clone.Deleted, &MissionRecord{ID: "extra"})

	after, err := src.Marshal()
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("mutating the clone changed the source snapshot")
	}
}

// TestSnapshotAllOrder verifies active, completed, deleted iteration
// order, which duplicate repair depends on
func TestSnapshotAllOrder(t *testing.T) {
	snap := sampleSnapshot()
	all := snap.All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d records, want 3", len(all))
	}
	wantOrder := []string{"m-active", "m-done", "m-gone"}
	for i, want := range wantOrder {
		if all[i].ID != want {
			t.Errorf("All()[%d].ID = %q, want %q", i, all[i].ID, want)
		}
	}
}

// TestSnapshotKnownIDs verifies the identifier sets span all three sets
func TestSnapshotKnownIDs(t *testing.T) {
	snap := sampleSnapshot()

	ids := snap.KnownIDs()
	for _, want := range []string{"m-active", "m-done", "m-gone"} {
		if !ids[want] {
			t.Errorf("KnownIDs() missing %q", want)
		}
	}

	nids := snap.KnownNotificationIDs()
	for _, want := range []int32{100, 101, 102} {
		if !nids[want] {
			t.Errorf("KnownNotificationIDs() missing %d", want)
		}
	}
}

// TestSnapshotMarshalDeterministic verifies equal snapshots marshal to
// identical bytes
func TestSnapshotMarshalDeterministic(t *testing.T) {
	a, err := sampleSnapshot().Marshal()
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	b, err := sampleSnapshot().Marshal()
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal snapshots marshaled to different bytes")
	}
}

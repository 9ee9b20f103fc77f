package store

import (
	"context"
	"testing"
)

// TestMemoryRoundTrip verifies the in-memory store matches the Store
// contract for absent and present keys
func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	got, err := m.GetString(ctx, KeyMissions)
	if err != nil || got != "" {
		t.Errorf("GetString() on absent key = (%q, %v), want (\"\", nil)", got, err)
	}

	if err := m.SetString(ctx, KeyMissions, "payload"); err != nil {
		t.Fatalf("SetString() failed: %v", err)
	}
	got, _ = m.GetString(ctx, KeyMissions)
	if got != "payload" {
		t.Errorf("GetString() = %q, want %q", got, "payload")
	}
}

// TestMemoryListIsolation verifies callers cannot mutate stored lists
// through the returned slice
func TestMemoryListIsolation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	src := []string{"a", "b"}
	if err := m.SetStringList(ctx, KeyRepairLog, src); err != nil {
		t.Fatalf("SetStringList() failed: %v", err)
	}
	src[0] = "mutated"

	got, err := m.GetStringList(ctx, KeyRepairLog)
	if err != nil {
		t.Fatalf("GetStringList() failed: %v", err)
	}
	if got[0] != "a" {
		t.Error("stored list shares backing array with caller slice")
	}

	got[1] = "mutated"
	again, _ := m.GetStringList(ctx, KeyRepairLog)
	if again[1] != "b" {
		t.Error("returned list shares backing array with stored copy")
	}
}

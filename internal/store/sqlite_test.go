package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guardian.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

// TestSQLiteStringRoundTrip verifies basic get/set semantics including
// absent keys and overwrites
func TestSQLiteStringRoundTrip(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	got, err := s.GetString(ctx, KeyMissions)
	if err != nil {
		t.Fatalf("GetString() on absent key failed: %v", err)
	}
	if got != "" {
		t.Errorf("GetString() on absent key = %q, want empty", got)
	}

	if err := s.SetString(ctx, KeyMissions, `[{"id":"m-1"}]`); err != nil {
		t.Fatalf("SetString() failed: %v", err)
	}
	got, err = s.GetString(ctx, KeyMissions)
	if err != nil {
		t.Fatalf("GetString() failed: %v", err)
	}
	if got != `[{"id":"m-1"}]` {
		t.Errorf("GetString() = %q, want stored value", got)
	}

	// Overwrite replaces, never appends
	if err := s.SetString(ctx, KeyMissions, `[]`); err != nil {
		t.Fatalf("SetString() overwrite failed: %v", err)
	}
	got, _ = s.GetString(ctx, KeyMissions)
	if got != `[]` {
		t.Errorf("GetString() after overwrite = %q, want %q", got, `[]`)
	}
}

// TestSQLiteStringListRoundTrip verifies list storage as JSON text
func TestSQLiteStringListRoundTrip(t *testing.T) {
	s, _ := newTestSQLite(t)
	ctx := context.Background()

	got, err := s.GetStringList(ctx, KeyRepairLog)
	if err != nil {
		t.Fatalf("GetStringList() on absent key failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetStringList() on absent key = %v, want nil", got)
	}

	want := []string{`{"issue":"a"}`, `{"issue":"b"}`}
	if err := s.SetStringList(ctx, KeyRepairLog, want); err != nil {
		t.Fatalf("SetStringList() failed: %v", err)
	}
	got, err = s.GetStringList(ctx, KeyRepairLog)
	if err != nil {
		t.Fatalf("GetStringList() failed: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("GetStringList() = %v, want %v", got, want)
	}

	// An explicitly stored empty list reads back empty, not nil
	if err := s.SetStringList(ctx, KeyRepairLog, nil); err != nil {
		t.Fatalf("SetStringList(nil) failed: %v", err)
	}
	got, err = s.GetStringList(ctx, KeyRepairLog)
	if err != nil {
		t.Fatalf("GetStringList() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("GetStringList() after storing empty = %v, want empty non-nil", got)
	}
}

// TestSQLitePersistsAcrossReopen verifies values survive close and reopen
func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardian.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() failed: %v", err)
	}
	if err := s.SetString(ctx, KeyIssueFrequency, `{"dup":3}`); err != nil {
		t.Fatalf("SetString() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() reopen failed: %v", err)
	}
	defer s2.Close()
	got, err := s2.GetString(ctx, KeyIssueFrequency)
	if err != nil {
		t.Fatalf("GetString() after reopen failed: %v", err)
	}
	if got != `{"dup":3}` {
		t.Errorf("GetString() after reopen = %q, want stored value", got)
	}
}

// TestSQLiteSchemaGate verifies a newer-major store is refused while a
// same-major newer minor is accepted
func TestSQLiteSchemaGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardian.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() failed: %v", err)
	}

	// Same-major newer minor must still open
	if err := s.SetString(ctx, KeySchemaVersion, "v1.9.0"); err != nil {
		t.Fatalf("SetString() failed: %v", err)
	}
	s.Close()
	s2, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() refused same-major version: %v", err)
	}

	// Newer major must refuse
	if err := s2.SetString(ctx, KeySchemaVersion, "v2.0.0"); err != nil {
		t.Fatalf("SetString() failed: %v", err)
	}
	s2.Close()
	if _, err := NewSQLite(path); err == nil {
		t.Fatal("NewSQLite() accepted a newer-major schema version")
	} else if !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("NewSQLite() error = %v, want schema version refusal", err)
	}
}

// TestSQLiteFreshStoreIsStamped verifies a new store records the
// current schema version
func TestSQLiteFreshStoreIsStamped(t *testing.T) {
	s, _ := newTestSQLite(t)
	got, err := s.GetString(context.Background(), KeySchemaVersion)
	if err != nil {
		t.Fatalf("GetString() failed: %v", err)
	}
	if got != SchemaVersion {
		t.Errorf("schema version = %q, want %q", got, SchemaVersion)
	}
}

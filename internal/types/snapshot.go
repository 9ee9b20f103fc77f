package types

import (
	"encoding/json"
	"fmt"
)

// Snapshot is one coherent view of the three mission sets. The
// coordinator owns the authoritative copy; consumers receive either a
// shared read-only reference (checks) or a deep clone (sandboxing).
type Snapshot struct {
	Active    []*MissionRecord `json:"active"`
	Completed []*MissionRecord `json:"completed"`
	Deleted   []*MissionRecord `json:"deleted"`
}

// NewSnapshot creates an empty snapshot with non-nil sets
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Active:    []*MissionRecord{},
		Completed: []*MissionRecord{},
		Deleted:   []*MissionRecord{},
	}
}

// Clone returns a deep copy of the snapshot. No record or subtask
// pointer is shared with the original; mutating the clone can never be
// observed through the source snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Active:    make([]*MissionRecord, len(s.Active)),
		Completed: make([]*MissionRecord, len(s.Completed)),
		Deleted:   make([]*MissionRecord, len(s.Deleted)),
	}
	for i, m := range s.Active {
		out.Active[i] = m.Clone()
	}
	for i, m := range s.Completed {
		out.Completed[i] = m.Clone()
	}
	for i, m := range s.Deleted {
		out.Deleted[i] = m.Clone()
	}
	return out
}

// All returns every record in active, completed, deleted order. The
// returned slice is fresh but the record pointers are shared; callers
// that mutate must work on a Clone. Iteration order is load-bearing:
// duplicate repair keeps the first occurrence in exactly this order.
func (s *Snapshot) All() []*MissionRecord {
	out := make([]*MissionRecord, 0, len(s.Active)+len(s.Completed)+len(s.Deleted))
	out = append(out, s.Active...)
	out = append(out, s.Completed...)
	out = append(out, s.Deleted...)
	return out
}

// Len returns the total number of records across all three sets
func (s *Snapshot) Len() int {
	return len(s.Active) + len(s.Completed) + len(s.Deleted)
}

// Marshal serializes the snapshot to canonical JSON. Struct field order
// is fixed, so two snapshots with equal contents marshal to identical
// bytes; tests use this for non-interference checks.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// KnownIDs returns the set of mission IDs across all three sets
func (s *Snapshot) KnownIDs() map[string]bool {
	ids := make(map[string]bool, s.Len())
	for _, m := range s.All() {
		ids[m.ID] = true
	}
	return ids
}

// KnownNotificationIDs returns the set of notification IDs across all
// three sets
func (s *Snapshot) KnownNotificationIDs() map[int32]bool {
	ids := make(map[int32]bool, s.Len())
	for _, m := range s.All() {
		ids[m.NotificationID] = true
	}
	return ids
}

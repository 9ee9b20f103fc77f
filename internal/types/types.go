package types

import (
	"fmt"
	"time"
)

// MaxNotificationID is the upper bound for notification identifiers.
// The surrounding notification subsystem requires IDs to fit a signed
// 32-bit integer, so valid values are 0 < id <= MaxNotificationID.
const MaxNotificationID = int32(0x7FFFFFFF)

// MissionRecord is the unit under consistency management: a single
// tracked mission together with its counters, subtasks, and mastery link.
type MissionRecord struct {
	ID             string           `json:"id"`
	NotificationID int32            `json:"notification_id"`
	Title          string           `json:"title"`
	Kind           MissionKind      `json:"kind"`
	IsCounterBased bool             `json:"is_counter_based"`
	CurrentCount   int              `json:"current_count"`
	TargetCount    int              `json:"target_count"`
	Subtasks       []*SubtaskRecord `json:"subtasks,omitempty"`
	IsCompleted    bool             `json:"is_completed"`
	HasFailed      bool             `json:"has_failed"`
	LastCompleted  *time.Time       `json:"last_completed,omitempty"`
	MasteryID      string           `json:"linked_mastery_id,omitempty"`
	MasteryValue   float64          `json:"mastery_value,omitempty"`
	CreatedAt      *time.Time       `json:"created_at,omitempty"`
}

// Validate checks if the mission record has valid field values
func (m *MissionRecord) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.NotificationID <= 0 {
		return fmt.Errorf("notification_id must be positive (got %d)", m.NotificationID)
	}
	if m.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid mission kind: %s", m.Kind)
	}
	if m.CurrentCount < 0 {
		return fmt.Errorf("current_count cannot be negative (got %d)", m.CurrentCount)
	}
	if m.TargetCount < 0 {
		return fmt.Errorf("target_count cannot be negative (got %d)", m.TargetCount)
	}
	if m.IsCounterBased && m.TargetCount < 1 {
		return fmt.Errorf("counter-based mission requires target_count >= 1 (got %d)", m.TargetCount)
	}
	if m.IsCompleted && m.HasFailed {
		return fmt.Errorf("is_completed and has_failed are mutually exclusive")
	}
	if m.MasteryID != "" && m.MasteryValue <= 0 {
		return fmt.Errorf("mastery_value must be positive when a mastery link exists (got %g)", m.MasteryValue)
	}
	if m.CreatedAt != nil && m.CreatedAt.After(time.Now()) {
		return fmt.Errorf("created_at cannot be in the future")
	}
	for i, st := range m.Subtasks {
		if st == nil {
			return fmt.Errorf("subtask %d is nil", i)
		}
		if err := st.Validate(); err != nil {
			return fmt.Errorf("subtask %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the record. Subtasks and timestamps are
// copied; the clone shares no pointers with the original.
func (m *MissionRecord) Clone() *MissionRecord {
	if m == nil {
		return nil
	}
	out := *m
	if m.LastCompleted != nil {
		t := *m.LastCompleted
		out.LastCompleted = &t
	}
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		out.CreatedAt = &t
	}
	if m.Subtasks != nil {
		out.Subtasks = make([]*SubtaskRecord, len(m.Subtasks))
		for i, st := range m.Subtasks {
			out.Subtasks[i] = st.Clone()
		}
	}
	return &out
}

// SubtaskRecord is one ordered step inside a mission. Counter-based
// subtasks track current_count; completion-based subtasks track
// current_completions against required_completions.
type SubtaskRecord struct {
	Name                string  `json:"name"`
	IsCounterBased      bool    `json:"is_counter_based"`
	CurrentCount        int     `json:"current_count"`
	CurrentCompletions  int     `json:"current_completions"`
	RequiredCompletions int     `json:"required_completions"`
	MasteryID           string  `json:"linked_mastery_id,omitempty"`
	MasteryValue        float64 `json:"mastery_value,omitempty"`
}

// Validate checks if the subtask record has valid field values
func (s *SubtaskRecord) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.CurrentCount < 0 {
		return fmt.Errorf("current_count cannot be negative (got %d)", s.CurrentCount)
	}
	if s.CurrentCompletions < 0 {
		return fmt.Errorf("current_completions cannot be negative (got %d)", s.CurrentCompletions)
	}
	if s.RequiredCompletions < 0 {
		return fmt.Errorf("required_completions cannot be negative (got %d)", s.RequiredCompletions)
	}
	if s.MasteryID != "" && s.MasteryValue <= 0 {
		return fmt.Errorf("mastery_value must be positive when a mastery link exists (got %g)", s.MasteryValue)
	}
	return nil
}

// Clone returns a deep copy of the subtask record
func (s *SubtaskRecord) Clone() *SubtaskRecord {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// MissionKind categorizes the cadence of a mission
type MissionKind string

const (
	KindDaily      MissionKind = "daily"
	KindWeekly     MissionKind = "weekly"
	KindSimple     MissionKind = "simple"
	KindPersistent MissionKind = "persistent"
)

// IsValid checks if the mission kind value is valid
func (k MissionKind) IsValid() bool {
	switch k {
	case KindDaily, KindWeekly, KindSimple, KindPersistent:
		return true
	}
	return false
}

// Priority ranks health checks and repair actions. Sweeps execute in
// descending priority order; only high and critical findings may surface
// as user-visible alerts.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank returns the numeric weight of the priority for ordering.
// Higher values run first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

// ParsePriority converts a string to a Priority, rejecting unknown values
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %q (want low, medium, high, or critical)", s)
	}
	return p, nil
}

// HealthStatus summarizes the outcome of the most recent comprehensive
// sweep: healthy (no issues), warning (a handful), critical (many).
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// HealthStatusFor maps an issue count onto the coarse health scale
func HealthStatusFor(issueCount int) HealthStatus {
	switch {
	case issueCount == 0:
		return HealthHealthy
	case issueCount <= 5:
		return HealthWarning
	default:
		return HealthCritical
	}
}

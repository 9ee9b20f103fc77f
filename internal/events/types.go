// Package events carries the engine's observable signals: an activity
// flag, free-text learning notes, and a structured guardian event feed.
// Consumers subscribe; the engine never reads anything back.
package events

import "time"

// EventType represents the type of guardian event that occurred.
type EventType string

const (
	// Sweep lifecycle
	// EventTypeSweepStarted indicates a sweep began
	EventTypeSweepStarted EventType = "sweep_started"
	// EventTypeSweepCompleted indicates a sweep finished
	EventTypeSweepCompleted EventType = "sweep_completed"

	// Findings and repairs
	// EventTypeIssueDetected indicates a health check found an issue
	EventTypeIssueDetected EventType = "issue_detected"
	// EventTypeRepairApplied indicates a repair mutated live state
	EventTypeRepairApplied EventType = "repair_applied"
	// EventTypeRepairSimulated indicates a repair ran in the sandbox
	EventTypeRepairSimulated EventType = "repair_simulated"
	// EventTypeRepairCommitted indicates a sandbox result replaced live state
	EventTypeRepairCommitted EventType = "repair_committed"

	// Learning
	// EventTypeCheckLearned indicates a new health check was registered at runtime
	EventTypeCheckLearned EventType = "check_learned"
	// EventTypeRepairLearned indicates a new repair action was registered at runtime
	EventTypeRepairLearned EventType = "repair_learned"
	// EventTypeEscalationRecommended indicates a recurring issue crossed the
	// frequency threshold; priorities are immutable so this is advisory only
	EventTypeEscalationRecommended EventType = "escalation_recommended"

	// Suggestion workflow
	// EventTypeSuggestionCreated indicates a finding was queued for manual approval
	EventTypeSuggestionCreated EventType = "suggestion_created"
	// EventTypeSuggestionResolved indicates a suggestion was approved or rejected
	EventTypeSuggestionResolved EventType = "suggestion_resolved"
)

// GuardianEvent is one entry in the structured issue/event stream.
// RecordID is empty for events not tied to a single mission.
type GuardianEvent struct {
	Type      EventType `json:"type"`
	Issue     string    `json:"issue"`
	Action    string    `json:"action"`
	RecordID  string    `json:"record_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

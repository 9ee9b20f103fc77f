package events

import "time"

// NewIssueDetectedEvent creates a GuardianEvent for a check finding
func NewIssueDetectedEvent(issue, recordID string) GuardianEvent {
	return GuardianEvent{
		Type:      EventTypeIssueDetected,
		Issue:     issue,
		Timestamp: time.Now(),
		RecordID:  recordID,
	}
}

// NewRepairAppliedEvent creates a GuardianEvent for a live-state repair
func NewRepairAppliedEvent(issue, action, recordID string) GuardianEvent {
	return GuardianEvent{
		Type:      EventTypeRepairApplied,
		Issue:     issue,
		Action:    action,
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
}

// NewRepairSimulatedEvent creates a GuardianEvent for a sandbox run
func NewRepairSimulatedEvent(issue, action string) GuardianEvent {
	return GuardianEvent{
		Type:      EventTypeRepairSimulated,
		Issue:     issue,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// NewRepairCommittedEvent creates a GuardianEvent for a sandbox commit
func NewRepairCommittedEvent(issue, action string) GuardianEvent {
	return GuardianEvent{
		Type:      EventTypeRepairCommitted,
		Issue:     issue,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// NewEscalationRecommendedEvent creates the advisory event emitted when
// an issue crosses the frequency threshold
func NewEscalationRecommendedEvent(issue string) GuardianEvent {
	return GuardianEvent{
		Type:      EventTypeEscalationRecommended,
		Issue:     issue,
		Action:    "escalation recommended",
		Timestamp: time.Now(),
	}
}

// NewLearnedEvent creates a GuardianEvent for a runtime registration.
// kind selects between check and repair learning.
func NewLearnedEvent(kind EventType, issue, action string) GuardianEvent {
	return GuardianEvent{
		Type:      kind,
		Issue:     issue,
		Action:    action,
		Timestamp: time.Now(),
	}
}

// NewSweepEvent creates a sweep lifecycle GuardianEvent
func NewSweepEvent(kind EventType, summary string) GuardianEvent {
	return GuardianEvent{
		Type:      kind,
		Action:    summary,
		Timestamp: time.Now(),
	}
}

// NewSuggestionEvent creates a suggestion workflow GuardianEvent
func NewSuggestionEvent(kind EventType, issue, action, recordID string) GuardianEvent {
	return GuardianEvent{
		Type:      kind,
		Issue:     issue,
		Action:    action,
		RecordID:  recordID,
		Timestamp: time.Now(),
	}
}

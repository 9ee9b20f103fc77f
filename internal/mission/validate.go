package mission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/types"
)

// Human-readable issue names used in the repair log. The registry's
// snake_case check names are dispatch keys; these are what a person
// reads in the audit trail.
const (
	IssueDuplicateMissionID      = "Duplicate mission ID"
	IssueDuplicateNotificationID = "Duplicate notification ID"
	IssueMissingFields           = "Missing required fields"
	IssueContradictoryCompletion = "Contradictory completion state"
	IssueNegativeCounter         = "Negative counter"
	IssueInvalidMasteryValue     = "Invalid mastery value"
	IssueOrphanedSubtask         = "Orphaned subtask"
	IssueFutureTimestamp         = "Future timestamp"
	IssueCounterOverflow         = "Counter overflow"
)

// ValidationReport summarizes one ValidateAll pass.
type ValidationReport struct {
	// CheckedRecords is how many mission records were examined.
	CheckedRecords int `json:"checked_records"`

	// Issues describes every problem found before repair.
	Issues []string `json:"issues"`

	// RepairsApplied lists each field-level change made, empty when
	// repair was not requested or nothing needed fixing.
	RepairsApplied []string `json:"repairs_applied"`

	// BackedUp is true when a pre-repair backup was taken.
	BackedUp bool `json:"backed_up"`

	// Confirmed is true when the post-repair reload found clean state.
	Confirmed bool `json:"confirmed"`

	// Duration is how long the pass took.
	Duration time.Duration `json:"duration"`
}

// structuralRepair pairs a human issue name, its frequency key, and the
// snapshot fix that resolves it. Fixes are idempotent, so they run
// unconditionally during a repair pass and report nothing when state is
// already clean.
//
// The list covers exactly the conditions Validate rejects. Issues that
// are legal-but-suspect state, counter overflow for one, belong to the
// guardian sweep instead.
type structuralRepair struct {
	issue string
	check string
	fix   func(*types.Snapshot) []string
}

func structuralRepairs() []structuralRepair {
	return []structuralRepair{
		{IssueMissingFields, registry.CheckMissingFields, registry.FixMissingFields},
		{IssueContradictoryCompletion, registry.CheckContradictoryCompletion, registry.FixContradictoryCompletion},
		{IssueNegativeCounter, registry.CheckNegativeCounters, registry.FixNegativeCounters},
		{IssueInvalidMasteryValue, registry.CheckInvalidMasteryValues, registry.FixInvalidMasteryValues},
		{IssueOrphanedSubtask, registry.CheckOrphanedSubtasks, registry.FixOrphanedSubtasks},
		{IssueFutureTimestamp, registry.CheckFutureTimestamps, registry.FixFutureTimestamps},
	}
}

// ValidateAll runs the full consistency pass over the mission records:
// identifier uniqueness across all three sections, per-record
// structural validity, and a reload to confirm what was persisted. With
// attemptRepair set it backs up live state once, applies the trusted
// structural fixes directly, and saves a single time before the
// confirming reload.
func (c *Coordinator) ValidateAll(ctx context.Context, attemptRepair bool) (*ValidationReport, error) {
	started := time.Now()
	report := &ValidationReport{}

	snap, err := c.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	report.CheckedRecords = snap.Len()

	// Phase 1: identifier uniqueness across active, completed, and
	// deleted records.
	dupIDs, dupNotifs := findDuplicates(snap)
	for _, id := range dupIDs {
		report.Issues = append(report.Issues, fmt.Sprintf("%s: %s", IssueDuplicateMissionID, id))
	}
	for _, notif := range dupNotifs {
		report.Issues = append(report.Issues, fmt.Sprintf("%s: %d", IssueDuplicateNotificationID, notif))
	}

	// Phase 2 detection: per-record structural validity.
	for _, m := range snap.All() {
		if err := m.Validate(); err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("mission %s: %v", m.ID, err))
		}
	}

	if attemptRepair {
		if err := c.repairSnapshot(ctx, snap, dupIDs, dupNotifs, report); err != nil {
			return nil, err
		}
	}

	// Phase 3: reload and confirm what storage now holds.
	reloaded, err := c.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload after validation failed: %w", err)
	}
	report.Confirmed = isClean(reloaded)
	report.Duration = time.Since(started)

	c.logger.Info("validation pass finished",
		zap.Int("records", report.CheckedRecords),
		zap.Int("issues", len(report.Issues)),
		zap.Int("repairs", len(report.RepairsApplied)),
		zap.Bool("confirmed", report.Confirmed))
	return report, nil
}

// repairSnapshot applies the trusted fixes for everything phase 1 and 2
// can find, then persists the snapshot once. Live state is backed up
// before the first change.
func (c *Coordinator) repairSnapshot(ctx context.Context, snap *types.Snapshot, dupIDs []string, dupNotifs []int32, report *ValidationReport) error {
	needsRepair := len(report.Issues) > 0
	if !needsRepair {
		return nil
	}

	if err := c.Backup(ctx); err != nil {
		return fmt.Errorf("refusing to repair without backup: %w", err)
	}
	report.BackedUp = true

	if len(dupIDs) > 0 {
		c.applyFix(ctx, report, IssueDuplicateMissionID, registry.CheckDuplicateMissionIDs,
			registry.FixDuplicateMissionIDs(snap))
	}
	if len(dupNotifs) > 0 {
		c.applyFix(ctx, report, IssueDuplicateNotificationID, registry.CheckDuplicateNotificationIDs,
			registry.FixDuplicateNotificationIDs(snap))
	}
	for _, sr := range structuralRepairs() {
		c.applyFix(ctx, report, sr.issue, sr.check, sr.fix(snap))
	}

	if len(report.RepairsApplied) == 0 {
		return nil
	}
	if err := c.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to persist repaired records: %w", err)
	}
	return nil
}

// applyFix records the outcome of one fix: audit log entries, events,
// and the issue frequency count.
func (c *Coordinator) applyFix(ctx context.Context, report *ValidationReport, issue, checkName string, changes []string) {
	if len(changes) == 0 {
		return
	}
	report.RepairsApplied = append(report.RepairsApplied, changes...)
	for _, change := range changes {
		c.repairLog.Append(ctx, issue, change, "")
		if c.bus != nil {
			c.bus.Emit(events.NewRepairAppliedEvent(issue, change, ""))
		}
	}
	c.logger.Info("applied structural repair",
		zap.String("issue", issue),
		zap.Int("changes", len(changes)))
	c.RecordIssueOccurrence(ctx, checkName)
}

// RecordIssueOccurrence bumps the frequency count for an issue kind and
// emits the escalation recommendation exactly when the count crosses
// the threshold. Priorities themselves never change; the recommendation
// is advisory.
func (c *Coordinator) RecordIssueOccurrence(ctx context.Context, checkName string) {
	if c.frequency == nil {
		return
	}
	count := c.frequency.Record(ctx, checkName)
	if count != c.frequency.Threshold() {
		return
	}
	issue := IssueLabelFor(checkName)
	action := fmt.Sprintf("issue recurred %d times, review its priority", count)
	c.repairLog.Append(ctx, "Escalation recommended: "+issue, action, "")
	if c.bus != nil {
		c.bus.Emit(events.NewEscalationRecommendedEvent(issue))
	}
	c.logger.Warn("escalation recommended",
		zap.String("issue", checkName),
		zap.Int("occurrences", count))
}

// IssueLabelFor maps a registry check name to the human-readable issue
// name used in the repair log. Unknown names fall back to a cleaned-up
// form of the check name itself.
func IssueLabelFor(checkName string) string {
	switch checkName {
	case registry.CheckDuplicateMissionIDs:
		return IssueDuplicateMissionID
	case registry.CheckDuplicateNotificationIDs:
		return IssueDuplicateNotificationID
	case registry.CheckMissingFields:
		return IssueMissingFields
	case registry.CheckContradictoryCompletion:
		return IssueContradictoryCompletion
	case registry.CheckNegativeCounters:
		return IssueNegativeCounter
	case registry.CheckInvalidMasteryValues:
		return IssueInvalidMasteryValue
	case registry.CheckOrphanedSubtasks:
		return IssueOrphanedSubtask
	case registry.CheckFutureTimestamps:
		return IssueFutureTimestamp
	case registry.CheckCounterOverflow:
		return IssueCounterOverflow
	}
	label := strings.ReplaceAll(checkName, "_", " ")
	if label == "" {
		return checkName
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// findDuplicates returns the mission and notification identifiers that
// appear more than once across all three sections. Each duplicated
// value is reported once.
func findDuplicates(snap *types.Snapshot) ([]string, []int32) {
	idCounts := make(map[string]int)
	notifCounts := make(map[int32]int)
	for _, m := range snap.All() {
		idCounts[m.ID]++
		notifCounts[m.NotificationID]++
	}

	var dupIDs []string
	var dupNotifs []int32
	for _, m := range snap.All() {
		if idCounts[m.ID] > 1 {
			dupIDs = append(dupIDs, m.ID)
			idCounts[m.ID] = 0
		}
		if notifCounts[m.NotificationID] > 1 {
			dupNotifs = append(dupNotifs, m.NotificationID)
			notifCounts[m.NotificationID] = 0
		}
	}
	return dupIDs, dupNotifs
}

// isClean reports whether the snapshot has unique identifiers and only
// valid records.
func isClean(snap *types.Snapshot) bool {
	dupIDs, dupNotifs := findDuplicates(snap)
	if len(dupIDs) > 0 || len(dupNotifs) > 0 {
		return false
	}
	for _, m := range snap.All() {
		if err := m.Validate(); err != nil {
			return false
		}
	}
	return true
}

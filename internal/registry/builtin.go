package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/questlog/mechanicum/internal/idgen"
	"github.com/questlog/mechanicum/internal/types"
)

// Builtin check names. These are dispatch keys: persisted registry
// state refers to checks by these strings, so they are stable.
const (
	CheckDuplicateMissionIDs      = "duplicate_mission_ids"
	CheckDuplicateNotificationIDs = "duplicate_notification_ids"
	CheckContradictoryCompletion  = "contradictory_completion"
	CheckInvalidMasteryValues     = "invalid_mastery_values"
	CheckMissingFields            = "missing_required_fields"
	CheckNegativeCounters         = "negative_counters"
	CheckOrphanedSubtasks         = "orphaned_subtasks"
	CheckFutureTimestamps         = "future_timestamps"
	CheckCounterOverflow          = "counter_overflow"
)

// RepairNameFor returns the conventional repair key for an issue name
func RepairNameFor(issue string) string {
	return "fix_" + issue
}

// BuiltinChecks returns the curated bootstrap checks in registration
// order. Registration order breaks ties within a priority tier.
func BuiltinChecks() []Check {
	return []Check{
		NewCheck(CheckDuplicateMissionIDs,
			"two or more missions share an identifier",
			types.PriorityCritical, detectDuplicateMissionIDs),
		NewCheck(CheckDuplicateNotificationIDs,
			"two or more missions share a notification identifier",
			types.PriorityCritical, detectDuplicateNotificationIDs),
		NewCheck(CheckContradictoryCompletion,
			"a mission is marked both completed and failed",
			types.PriorityHigh, detectContradictoryCompletion),
		NewCheck(CheckInvalidMasteryValues,
			"a mastery-linked mission or subtask has a non-positive mastery value",
			types.PriorityHigh, detectInvalidMasteryValues),
		NewCheck(CheckMissingFields,
			"a mission is missing its identifier, title, kind, or notification id",
			types.PriorityHigh, detectMissingFields),
		NewCheck(CheckNegativeCounters,
			"a mission or subtask counter is negative",
			types.PriorityMedium, detectNegativeCounters),
		NewCheck(CheckOrphanedSubtasks,
			"a subtask is nil or has an empty name",
			types.PriorityMedium, detectOrphanedSubtasks),
		NewCheck(CheckFutureTimestamps,
			"a mission carries a creation or completion time in the future",
			types.PriorityMedium, detectFutureTimestamps),
		NewCheck(CheckCounterOverflow,
			"a counter-based mission overshot its target",
			types.PriorityLow, detectCounterOverflow),
	}
}

// BuiltinRepairs returns the curated bootstrap repairs, one per builtin
// check, keyed fix_<check>.
func BuiltinRepairs() []Repair {
	return []Repair{
		NewRepair(RepairNameFor(CheckDuplicateMissionIDs),
			"reassign duplicated mission identifiers, first occurrence wins",
			types.PriorityCritical, applyFix(FixDuplicateMissionIDs)),
		NewRepair(RepairNameFor(CheckDuplicateNotificationIDs),
			"reassign duplicated notification identifiers, first occurrence wins",
			types.PriorityCritical, applyFix(FixDuplicateNotificationIDs)),
		NewRepair(RepairNameFor(CheckContradictoryCompletion),
			"clear the failed flag on missions marked completed",
			types.PriorityHigh, applyFix(FixContradictoryCompletion)),
		NewRepair(RepairNameFor(CheckInvalidMasteryValues),
			"reset non-positive mastery values to 1.0",
			types.PriorityHigh, applyFix(FixInvalidMasteryValues)),
		NewRepair(RepairNameFor(CheckMissingFields),
			"fill missing identifiers, titles, and kinds",
			types.PriorityHigh, applyFix(FixMissingFields)),
		NewRepair(RepairNameFor(CheckNegativeCounters),
			"clamp negative counters to zero",
			types.PriorityMedium, applyFix(FixNegativeCounters)),
		NewRepair(RepairNameFor(CheckOrphanedSubtasks),
			"drop nil subtasks and name unnamed ones after their position",
			types.PriorityMedium, applyFix(FixOrphanedSubtasks)),
		NewRepair(RepairNameFor(CheckFutureTimestamps),
			"clamp future timestamps to the current time",
			types.PriorityMedium, applyFix(FixFutureTimestamps)),
		NewRepair(RepairNameFor(CheckCounterOverflow),
			"clamp overshot counters back to their target",
			types.PriorityLow, applyFix(FixCounterOverflow)),
	}
}

// applyFix wraps a pure snapshot fix as an ApplyFunc
func applyFix(fix func(*types.Snapshot) []string) ApplyFunc {
	return func(_ context.Context, snap *types.Snapshot) ([]string, error) {
		return fix(snap), nil
	}
}

// builtinDetectFuncs is the rehydration dispatch table for checks.
// Persisted names not present here bind to InertDetect.
func builtinDetectFuncs() map[string]DetectFunc {
	out := make(map[string]DetectFunc)
	for _, c := range BuiltinChecks() {
		out[c.Name()] = c.Detect
	}
	return out
}

// builtinApplyFuncs is the rehydration dispatch table for repairs.
// Persisted names not present here bind to InertApply.
func builtinApplyFuncs() map[string]ApplyFunc {
	out := make(map[string]ApplyFunc)
	for _, r := range BuiltinRepairs() {
		out[r.Name()] = r.Apply
	}
	return out
}

// InertDetect reports no issue. It is the rehydration fallback for a
// learned check whose predicate cannot be restored from metadata.
func InertDetect(_ context.Context, _ *types.Snapshot) (bool, error) {
	return false, nil
}

// InertApply changes nothing. It is the rehydration fallback for a
// learned repair whose implementation cannot be restored from metadata.
func InertApply(_ context.Context, _ *types.Snapshot) ([]string, error) {
	return nil, nil
}

// --- detection predicates ---

func detectDuplicateMissionIDs(_ context.Context, snap *types.Snapshot) (bool, error) {
	seen := make(map[string]bool)
	for _, m := range snap.All() {
		if seen[m.ID] {
			return true, nil
		}
		seen[m.ID] = true
	}
	return false, nil
}

func detectDuplicateNotificationIDs(_ context.Context, snap *types.Snapshot) (bool, error) {
	seen := make(map[int32]bool)
	for _, m := range snap.All() {
		if seen[m.NotificationID] {
			return true, nil
		}
		seen[m.NotificationID] = true
	}
	return false, nil
}

func detectContradictoryCompletion(_ context.Context, snap *types.Snapshot) (bool, error) {
	for _, m := range snap.All() {
		if m.IsCompleted && m.HasFailed {
			return true, nil
		}
	}
	return false, nil
}

func detectInvalidMasteryValues(_ context.Context, snap *types.Snapshot) (bool, error) {
	for _, m := range snap.All() {
		if m.MasteryID != "" && m.MasteryValue <= 0 {
			return true, nil
		}
		for _, st := range m.Subtasks {
			if st.MasteryID != "" && st.MasteryValue <= 0 {
				return true, nil
			}
		}
	}
	return false, nil
}

func detectMissingFields(_ context.Context, snap *types.Snapshot) (bool, error) {
	for _, m := range snap.All() {
		if m.ID == "" || m.Title == "" || !m.Kind.IsValid() {
			return true, nil
		}
		if m.NotificationID <= 0 || m.NotificationID > types.MaxNotificationID {
			return true, nil
		}
	}
	return false, nil
}

func detectNegativeCounters(_ context.Context, snap *types.Snapshot) (bool, error) {
	for _, m := range snap.All() {
		if m.CurrentCount < 0 || m.TargetCount < 0 {
			return true, nil
		}
		for _, st := range m.Subtasks {
			if st.CurrentCount < 0 || st.CurrentCompletions < 0 || st.RequiredCompletions < 0 {
				return true, nil
			}
		}
	}
	return false, nil
}

func detectOrphanedSubtasks(_ context.Context, snap *types.Snapshot) (bool, error) {
	for _, m := range snap.All() {
		for _, st := range m.Subtasks {
			if st == nil || st.Name == "" {
				return true, nil
			}
		}
	}
	return false, nil
}

func detectFutureTimestamps(_ context.Context, snap *types.Snapshot) (bool, error) {
	now := time.Now()
	for _, m := range snap.All() {
		if m.CreatedAt != nil && m.CreatedAt.After(now) {
			return true, nil
		}
		if m.LastCompleted != nil && m.LastCompleted.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func detectCounterOverflow(_ context.Context, snap *types.Snapshot) (bool, error) {
	for _, m := range snap.All() {
		if m.IsCounterBased && m.Kind != types.KindPersistent && m.TargetCount > 0 && m.CurrentCount > m.TargetCount {
			return true, nil
		}
	}
	return false, nil
}

// --- snapshot fixes ---
//
// Each fix mutates the snapshot in place and returns one entry per
// field-level change. A snapshot with nothing to fix yields an empty
// list, which makes every fix idempotent. The coordinator calls these
// directly on live state (trusted path); the sandbox calls them through
// the Repair wrappers on its private clone.

// FixDuplicateMissionIDs reassigns colliding mission IDs. The first
// record in active, completed, deleted order keeps its identifier.
func FixDuplicateMissionIDs(snap *types.Snapshot) []string {
	var changes []string
	taken := snap.KnownIDs()
	seen := make(map[string]bool)
	for _, m := range snap.All() {
		if !seen[m.ID] {
			seen[m.ID] = true
			continue
		}
		old := m.ID
		m.ID = idgen.MissionID(taken)
		taken[m.ID] = true
		changes = append(changes, fmt.Sprintf("mission %q: reassigned duplicate id %s -> %s", m.Title, old, m.ID))
	}
	return changes
}

// FixDuplicateNotificationIDs reassigns colliding notification IDs with
// the same first-occurrence-wins policy.
func FixDuplicateNotificationIDs(snap *types.Snapshot) []string {
	var changes []string
	taken := snap.KnownNotificationIDs()
	seen := make(map[int32]bool)
	for _, m := range snap.All() {
		if !seen[m.NotificationID] {
			seen[m.NotificationID] = true
			continue
		}
		old := m.NotificationID
		m.NotificationID = idgen.NotificationID(taken)
		taken[m.NotificationID] = true
		changes = append(changes, fmt.Sprintf("mission %s: reassigned duplicate notification id %d -> %d", m.ID, old, m.NotificationID))
	}
	return changes
}

// FixContradictoryCompletion clears the failed flag on missions marked
// completed. Completion is the user-meaningful fact; the failed flag is
// the derived one, so it loses.
func FixContradictoryCompletion(snap *types.Snapshot) []string {
	var changes []string
	for _, m := range snap.All() {
		if m.IsCompleted && m.HasFailed {
			m.HasFailed = false
			changes = append(changes, fmt.Sprintf("mission %s: cleared failed flag on completed mission", m.ID))
		}
	}
	return changes
}

// FixInvalidMasteryValues resets non-positive mastery values to 1.0 on
// mastery-linked missions and subtasks.
func FixInvalidMasteryValues(snap *types.Snapshot) []string {
	var changes []string
	for _, m := range snap.All() {
		if m.MasteryID != "" && m.MasteryValue <= 0 {
			old := m.MasteryValue
			m.MasteryValue = 1.0
			changes = append(changes, fmt.Sprintf("mission %s: mastery value %g -> 1", m.ID, old))
		}
		for _, st := range m.Subtasks {
			if st.MasteryID != "" && st.MasteryValue <= 0 {
				old := st.MasteryValue
				st.MasteryValue = 1.0
				changes = append(changes, fmt.Sprintf("subtask %q of mission %s: mastery value %g -> 1", st.Name, m.ID, old))
			}
		}
	}
	return changes
}

// FixMissingFields fills absent identifiers, titles, and kinds, and
// regenerates out-of-range notification IDs.
func FixMissingFields(snap *types.Snapshot) []string {
	var changes []string
	takenIDs := snap.KnownIDs()
	takenNotifs := snap.KnownNotificationIDs()
	for _, m := range snap.All() {
		if m.ID == "" {
			m.ID = idgen.MissionID(takenIDs)
			takenIDs[m.ID] = true
			changes = append(changes, fmt.Sprintf("mission %q: assigned missing id %s", m.Title, m.ID))
		}
		if m.Title == "" {
			m.Title = "Untitled Mission"
			changes = append(changes, fmt.Sprintf("mission %s: set placeholder title", m.ID))
		}
		if !m.Kind.IsValid() {
			old := m.Kind
			m.Kind = types.KindSimple
			changes = append(changes, fmt.Sprintf("mission %s: replaced invalid kind %q with %q", m.ID, old, m.Kind))
		}
		if m.NotificationID <= 0 || m.NotificationID > types.MaxNotificationID {
			old := m.NotificationID
			m.NotificationID = idgen.NotificationID(takenNotifs)
			takenNotifs[m.NotificationID] = true
			changes = append(changes, fmt.Sprintf("mission %s: replaced invalid notification id %d with %d", m.ID, old, m.NotificationID))
		}
	}
	return changes
}

// FixNegativeCounters clamps negative mission and subtask counters to
// zero and lifts counter-based targets to at least one.
func FixNegativeCounters(snap *types.Snapshot) []string {
	var changes []string
	for _, m := range snap.All() {
		if m.CurrentCount < 0 {
			changes = append(changes, fmt.Sprintf("mission %s: current count %d -> 0", m.ID, m.CurrentCount))
			m.CurrentCount = 0
		}
		if m.TargetCount < 0 {
			changes = append(changes, fmt.Sprintf("mission %s: target count %d -> 0", m.ID, m.TargetCount))
			m.TargetCount = 0
		}
		if m.IsCounterBased && m.TargetCount < 1 {
			changes = append(changes, fmt.Sprintf("mission %s: lifted counter target %d -> 1", m.ID, m.TargetCount))
			m.TargetCount = 1
		}
		for _, st := range m.Subtasks {
			if st.CurrentCount < 0 {
				changes = append(changes, fmt.Sprintf("subtask %q of mission %s: current count %d -> 0", st.Name, m.ID, st.CurrentCount))
				st.CurrentCount = 0
			}
			if st.CurrentCompletions < 0 {
				changes = append(changes, fmt.Sprintf("subtask %q of mission %s: completions %d -> 0", st.Name, m.ID, st.CurrentCompletions))
				st.CurrentCompletions = 0
			}
			if st.RequiredCompletions < 0 {
				changes = append(changes, fmt.Sprintf("subtask %q of mission %s: required completions %d -> 0", st.Name, m.ID, st.RequiredCompletions))
				st.RequiredCompletions = 0
			}
		}
	}
	return changes
}

// FixOrphanedSubtasks drops nil subtask entries and names unnamed ones
// after their position. A nil entry holds no progress to preserve; an
// unnamed one does, so it is renamed rather than removed.
func FixOrphanedSubtasks(snap *types.Snapshot) []string {
	var changes []string
	for _, m := range snap.All() {
		kept := m.Subtasks[:0]
		for _, st := range m.Subtasks {
			if st == nil {
				changes = append(changes, fmt.Sprintf("mission %s: removed nil subtask entry", m.ID))
				continue
			}
			kept = append(kept, st)
		}
		m.Subtasks = kept
		for i, st := range m.Subtasks {
			if st.Name == "" {
				st.Name = fmt.Sprintf("Subtask %d", i+1)
				changes = append(changes, fmt.Sprintf("mission %s: named empty subtask %d %q", m.ID, i+1, st.Name))
			}
		}
	}
	return changes
}

// FixFutureTimestamps clamps creation and completion times that sit in
// the future back to the current time.
func FixFutureTimestamps(snap *types.Snapshot) []string {
	var changes []string
	now := time.Now()
	for _, m := range snap.All() {
		if m.CreatedAt != nil && m.CreatedAt.After(now) {
			t := now
			m.CreatedAt = &t
			changes = append(changes, fmt.Sprintf("mission %s: clamped future creation time", m.ID))
		}
		if m.LastCompleted != nil && m.LastCompleted.After(now) {
			t := now
			m.LastCompleted = &t
			changes = append(changes, fmt.Sprintf("mission %s: clamped future completion time", m.ID))
		}
	}
	return changes
}

// FixCounterOverflow clamps overshot counter-based missions back to
// their target. Persistent missions may legitimately exceed the target.
func FixCounterOverflow(snap *types.Snapshot) []string {
	var changes []string
	for _, m := range snap.All() {
		if m.IsCounterBased && m.Kind != types.KindPersistent && m.TargetCount > 0 && m.CurrentCount > m.TargetCount {
			changes = append(changes, fmt.Sprintf("mission %s: clamped count %d to target %d", m.ID, m.CurrentCount, m.TargetCount))
			m.CurrentCount = m.TargetCount
		}
	}
	return changes
}

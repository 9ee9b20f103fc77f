package guardian

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/mission"
	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/types"
)

// SweepKind selects between the two sweep cadences.
type SweepKind string

const (
	// SweepLocal runs only the top-priority subset of checks.
	SweepLocal SweepKind = "local"

	// SweepComprehensive runs the full check suite.
	SweepComprehensive SweepKind = "comprehensive"
)

// SweepSummary reports what one sweep did.
type SweepSummary struct {
	Kind              SweepKind          `json:"kind"`
	ChecksRun         int                `json:"checks_run"`
	IssuesFound       []string           `json:"issues_found"`
	RepairsApplied    int                `json:"repairs_applied"`
	SuggestionsQueued int                `json:"suggestions_queued"`
	AlertsShown       int                `json:"alerts_shown"`
	Failures          []string           `json:"failures,omitempty"`
	Status            types.HealthStatus `json:"status"`
	Duration          time.Duration      `json:"duration"`
}

// sweep runs one pass: detect, repair or suggest, alert, account.
func (s *Scheduler) sweep(ctx context.Context, kind SweepKind) (*SweepSummary, error) {
	started := time.Now()
	summary := &SweepSummary{Kind: kind}

	s.seedFeed(ctx)
	if s.bus != nil {
		s.bus.Emit(events.NewSweepEvent(events.EventTypeSweepStarted, string(kind)))
	}

	if kind == SweepComprehensive && s.config.AutoRepair {
		s.runTrustedRepairs(ctx, summary)
	}

	snap, err := s.coordinator.LoadSnapshot(ctx)
	if err != nil {
		s.finishSweep(ctx, summary, started, fmt.Sprintf("%s sweep failed: %v", kind, err))
		return nil, err
	}

	checks := s.coordinator.Checks()
	var results []registry.CheckResult
	if kind == SweepLocal {
		minPriority, perr := types.ParsePriority(s.config.SubsetMinPriority)
		if perr != nil {
			minPriority = types.PriorityHigh
		}
		results = checks.RunTop(ctx, snap, minPriority, s.config.SubsetLimit)
	} else {
		results = checks.RunAll(ctx, snap)
	}
	summary.ChecksRun = len(results)

	for _, res := range results {
		if res.Err != "" {
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %s", res.Name, res.Err))
			continue
		}
		if !res.HasIssue {
			continue
		}
		snap = s.handleIssue(ctx, snap, res, summary)
	}

	summary.Status = types.HealthStatusFor(len(summary.IssuesFound))
	s.accountSweep(kind, summary, started)
	s.finishSweep(ctx, summary, started, fmt.Sprintf("%s sweep: %d checks, %d issues, %d repairs",
		kind, summary.ChecksRun, len(summary.IssuesFound), summary.RepairsApplied))
	return summary, nil
}

// runTrustedRepairs is the direct repair path of a comprehensive sweep:
// the coordinator's validation pass backs up live state and applies the
// structural fixes in place, then reloads to confirm. It runs before
// the check suite so the checks see the repaired state and the
// sandboxed path only handles what the validator does not cover. With
// auto-repair off the checks detect the same conditions themselves, so
// the pass is skipped entirely rather than reported twice.
func (s *Scheduler) runTrustedRepairs(ctx context.Context, summary *SweepSummary) {
	report, err := s.coordinator.ValidateAll(ctx, true)
	if err != nil {
		summary.Failures = append(summary.Failures, fmt.Sprintf("validation: %v", err))
		return
	}
	summary.IssuesFound = append(summary.IssuesFound, report.Issues...)
	summary.RepairsApplied += len(report.RepairsApplied)
	if len(report.RepairsApplied) == 0 {
		return
	}
	if !report.Confirmed {
		summary.Failures = append(summary.Failures, "reload after structural repair still reports issues")
	}

	body := fmt.Sprintf("Validation repaired %d problems in place. Details are in the repair log.",
		len(report.RepairsApplied))
	if s.alerter.Alert(ctx, "Mission data repaired", types.PriorityHigh, body) {
		summary.AlertsShown++
	}
}

// handleIssue processes one firing check: record the occurrence, repair
// or suggest, and alert if the priority warrants it. It returns the
// snapshot subsequent repairs should simulate from, which advances to
// the committed state after each successful repair.
func (s *Scheduler) handleIssue(ctx context.Context, snap *types.Snapshot, res registry.CheckResult, summary *SweepSummary) *types.Snapshot {
	label := mission.IssueLabelFor(res.Name)
	summary.IssuesFound = append(summary.IssuesFound, label)

	if s.bus != nil {
		s.bus.Emit(events.NewIssueDetectedEvent(label, ""))
	}
	s.coordinator.RecordIssueOccurrence(ctx, res.Name)

	description := label
	if chk, ok := s.coordinator.Checks().Get(res.Name); ok {
		description = chk.Description()
	}

	outcome := "detected"
	rep, ok := s.coordinator.Repairs().RepairFor(res.Name)
	switch {
	case !ok:
		outcome = "no repair registered"
		s.logger.Warn("issue has no registered repair", zap.String("check", res.Name))

	case s.config.AutoRepair:
		repaired, rerr := s.repairIssue(ctx, snap, res.Name, label, rep.Name(), summary)
		if rerr != nil {
			summary.Failures = append(summary.Failures, fmt.Sprintf("%s: %v", res.Name, rerr))
			outcome = "repair failed, queued for review"
			s.queueSuggestion(ctx, res.Name, label, description, rep.Name(), summary)
		} else if repaired != nil {
			snap = repaired
			outcome = "repaired automatically"
		} else {
			outcome = "repair found nothing to change"
		}

	default:
		outcome = "queued for review"
		s.queueSuggestion(ctx, res.Name, label, description, rep.Name(), summary)
	}

	body := fmt.Sprintf("%s. Outcome: %s.", description, outcome)
	if s.alerter.Alert(ctx, label, res.Priority, body) {
		summary.AlertsShown++
	}
	return snap
}

// repairIssue simulates the repair against the current snapshot and
// commits on success. The returned snapshot is the committed state, or
// nil when the repair had nothing to change.
func (s *Scheduler) repairIssue(ctx context.Context, snap *types.Snapshot, checkName, label, repairName string, summary *SweepSummary) (*types.Snapshot, error) {
	sim := s.coordinator.Simulator()
	report, err := sim.Simulate(ctx, snap, repairName)
	if err != nil {
		return nil, err
	}
	if !report.Success {
		sim.Discard(ctx, report.ID)
		return nil, fmt.Errorf("simulation failed: %s", report.Summary)
	}
	if len(report.Changes) == 0 {
		sim.Discard(ctx, report.ID)
		s.logger.Debug("check fired but repair changed nothing",
			zap.String("check", checkName),
			zap.String("repair", repairName))
		return nil, nil
	}

	if err := sim.Commit(ctx, report.ID); err != nil {
		return nil, err
	}
	for _, change := range report.Changes {
		s.coordinator.RepairLog().Append(ctx, label, change, "")
		if s.bus != nil {
			s.bus.Emit(events.NewRepairAppliedEvent(label, change, ""))
		}
	}
	summary.RepairsApplied += len(report.Changes)
	s.logger.Info("auto-repaired issue",
		zap.String("check", checkName),
		zap.String("repair", repairName),
		zap.Int("changes", len(report.Changes)))
	return report.ResultingState, nil
}

// queueSuggestion files the repair for human review.
func (s *Scheduler) queueSuggestion(ctx context.Context, checkName, label, description, repairName string, summary *SweepSummary) {
	_, created, err := s.coordinator.Suggest(ctx, checkName, description, repairName, "")
	if err != nil {
		s.logger.Warn("failed to queue suggestion",
			zap.String("check", checkName),
			zap.Error(err))
		return
	}
	if created {
		summary.SuggestionsQueued++
		s.logger.Info("queued repair for review",
			zap.String("check", checkName),
			zap.String("issue", label),
			zap.String("repair", repairName))
	}
}

// accountSweep folds one sweep into the lifetime counters.
func (s *Scheduler) accountSweep(kind SweepKind, summary *SweepSummary, started time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == SweepLocal {
		s.stats.LocalSweeps++
	} else {
		s.stats.ComprehensiveSweeps++
	}
	s.stats.IssuesFound += len(summary.IssuesFound)
	s.stats.RepairsApplied += summary.RepairsApplied
	s.stats.SuggestionsQueued += summary.SuggestionsQueued
	s.stats.AlertsShown += summary.AlertsShown
	s.stats.LastSweep = started
	s.stats.LastStatus = summary.Status
}

// finishSweep stamps the duration, emits the completion event, and
// persists the event feed so the sweep's trail survives a restart.
func (s *Scheduler) finishSweep(ctx context.Context, summary *SweepSummary, started time.Time, text string) {
	summary.Duration = time.Since(started)
	if s.bus != nil {
		s.bus.Emit(events.NewSweepEvent(events.EventTypeSweepCompleted, text))
	}
	s.persistFeed(ctx)
}

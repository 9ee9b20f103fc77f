package repl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/questlog/mechanicum/internal/mission"
	"github.com/questlog/mechanicum/internal/types"
)

// cmdStatus shows engine health and lifetime counters
func (r *REPL) cmdStatus(args []string) error {
	stats := r.scheduler.Stats()

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Engine Status"))

	statusColor := color.New(color.FgGreen).SprintFunc()
	switch stats.LastStatus {
	case types.HealthWarning:
		statusColor = color.New(color.FgYellow).SprintFunc()
	case types.HealthCritical:
		statusColor = color.New(color.FgRed, color.Bold).SprintFunc()
	}

	running := "stopped"
	if r.scheduler.Running() {
		running = "running"
	}

	fmt.Printf("  Health:       %s\n", statusColor(string(stats.LastStatus)))
	fmt.Printf("  Loop:         %s (application %s)\n", running, activeWord(r.scheduler.Active()))
	if !stats.LastSweep.IsZero() {
		fmt.Printf("  Last sweep:   %s\n", stats.LastSweep.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  Sweeps:       %d local, %d comprehensive (%d ticks dropped)\n",
		stats.LocalSweeps, stats.ComprehensiveSweeps, stats.SkippedTicks)
	fmt.Printf("  Findings:     %d issues, %d repairs, %d suggestions, %d alerts\n",
		stats.IssuesFound, stats.RepairsApplied, stats.SuggestionsQueued, stats.AlertsShown)

	if sstats, err := r.coordinator.Statistics(r.ctx); err == nil && sstats.Total > 0 {
		fmt.Printf("  Suggestions:  %d pending, %d approved, %d rejected (%.0f%% approval)\n",
			sstats.Pending, sstats.Approved, sstats.Rejected, sstats.ApprovalRate*100)
	}
	fmt.Printf("  Repair log:   %s\n", r.coordinator.RepairLog().Summary())
	fmt.Println()
	return nil
}

func activeWord(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// cmdLog shows the tail of the repair log
func (r *REPL) cmdLog(args []string) error {
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("log expects a positive count, got %q", args[0])
		}
		limit = n
	}

	entries := r.coordinator.RepairLog().Entries()
	if len(entries) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No repairs on record.\n\n", yellow("ℹ"))
		return nil
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Repair Log"))
	for _, e := range entries {
		fmt.Printf("  %s  %s\n", gray(e.Timestamp.Format("01-02 15:04:05")), e.Issue)
		fmt.Printf("      %s\n", e.Action)
	}
	fmt.Println()
	return nil
}

// cmdSuggestions lists queued repair suggestions
func (r *REPL) cmdSuggestions(args []string) error {
	list, err := r.coordinator.Suggestions(r.ctx)
	if err != nil {
		return fmt.Errorf("failed to load suggestions: %w", err)
	}
	if len(list) == 0 {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s No suggestions queued.\n\n", green("✓"))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Repair Suggestions"))
	for _, s := range list {
		marker := color.New(color.FgYellow).SprintFunc()("●")
		switch s.Status {
		case mission.SuggestionApproved:
			marker = color.New(color.FgGreen).SprintFunc()("✓")
		case mission.SuggestionRejected:
			marker = color.New(color.FgRed).SprintFunc()("✗")
		}
		fmt.Printf("  %s %s  [%s] %s\n", marker, s.ID, s.Status, s.Issue)
		if s.Description != "" {
			fmt.Printf("      %s\n", s.Description)
		}
		if s.Resolution != "" {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("      %s\n", gray(s.Resolution))
		}
	}
	fmt.Println()
	return nil
}

// cmdApprove verifies and applies a suggested repair
func (r *REPL) cmdApprove(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: approve <suggestion-id>")
	}

	s, err := r.coordinator.Approve(r.ctx, args[0])
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Applied %s for %q\n", green("✓"), s.RepairName, s.Issue)
	if s.Resolution != "" {
		fmt.Printf("  %s\n", s.Resolution)
	}
	fmt.Println()
	return nil
}

// cmdReject dismisses a suggested repair
func (r *REPL) cmdReject(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: reject <suggestion-id> [reason]")
	}
	reason := strings.Join(args[1:], " ")

	s, err := r.coordinator.Reject(r.ctx, args[0], reason)
	if err != nil {
		return err
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s Rejected suggestion for %q\n\n", yellow("✗"), s.Issue)
	return nil
}

package repl

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/questlog/mechanicum/internal/advisor"
	"github.com/questlog/mechanicum/internal/guardian"
	"github.com/questlog/mechanicum/internal/types"
)

// cmdSweep runs one sweep immediately
func (r *REPL) cmdSweep(args []string) error {
	kind := guardian.SweepComprehensive
	if len(args) > 0 {
		switch args[0] {
		case "local":
			kind = guardian.SweepLocal
		case "full", "comprehensive":
			kind = guardian.SweepComprehensive
		default:
			return fmt.Errorf("usage: sweep [local|full]")
		}
	}

	summary, err := r.scheduler.PerformImmediate(r.ctx, kind)
	if err != nil {
		return err
	}
	r.lastSweep = summary

	statusColor := color.New(color.FgGreen).SprintFunc()
	switch summary.Status {
	case types.HealthWarning:
		statusColor = color.New(color.FgYellow).SprintFunc()
	case types.HealthCritical:
		statusColor = color.New(color.FgRed, color.Bold).SprintFunc()
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s (%s, %s)\n\n", cyan("Sweep complete"), summary.Kind, summary.Duration.Round(time.Millisecond))
	fmt.Printf("  Checks run:   %d\n", summary.ChecksRun)
	fmt.Printf("  Issues:       %s\n", issueList(summary.IssuesFound))
	fmt.Printf("  Repairs:      %d applied, %d queued for review\n",
		summary.RepairsApplied, summary.SuggestionsQueued)
	if len(summary.Failures) > 0 {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("  Failures:     %s\n", red(strings.Join(summary.Failures, "; ")))
	}
	fmt.Printf("  Status:       %s\n\n", statusColor(string(summary.Status)))
	return nil
}

func issueList(issues []string) string {
	if len(issues) == 0 {
		return "none"
	}
	return strings.Join(issues, ", ")
}

// cmdWatch controls the background sweep loop
func (r *REPL) cmdWatch(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if len(args) == 0 {
		if r.scheduler.Running() {
			fmt.Printf("\n%s Sweep loop is running.\n\n", green("✓"))
		} else {
			fmt.Printf("\n%s Sweep loop is stopped. Use 'watch start'.\n\n", yellow("ℹ"))
		}
		return nil
	}

	switch args[0] {
	case "start":
		if err := r.scheduler.Start(r.ctx); err != nil {
			return err
		}
		fmt.Printf("\n%s Sweep loop started.\n\n", green("✓"))
	case "stop":
		r.scheduler.Stop()
		fmt.Printf("\n%s Sweep loop stopped.\n\n", green("✓"))
	default:
		return fmt.Errorf("usage: watch [start|stop]")
	}
	return nil
}

// cmdValidate validates every mission record
func (r *REPL) cmdValidate(args []string) error {
	attemptRepair := len(args) > 0 && args[0] == "repair"

	report, err := r.coordinator.ValidateAll(r.ctx, attemptRepair)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("\n%s (%d records, %s)\n\n", cyan("Validation"),
		report.CheckedRecords, report.Duration.Round(time.Millisecond))
	if len(report.Issues) == 0 {
		fmt.Printf("  %s All records pass validation.\n\n", green("✓"))
		return nil
	}

	for _, issue := range report.Issues {
		fmt.Printf("  %s %s\n", yellow("●"), issue)
	}
	fmt.Println()
	if attemptRepair {
		fmt.Printf("  Repairs applied: %d (backup taken: %t, clean after: %t)\n\n",
			len(report.RepairsApplied), report.BackedUp, report.Confirmed)
	} else {
		fmt.Printf("  Run 'validate repair' to fix these.\n\n")
	}
	return nil
}

// cmdChecks lists registered health checks
func (r *REPL) cmdChecks(args []string) error {
	checks := r.coordinator.Checks()

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s (%d registered)\n\n", cyan("Health Checks"), checks.Len())
	for _, name := range checks.Names() {
		c, ok := checks.Get(name)
		if !ok {
			continue
		}
		fmt.Printf("  [%s] %s\n      %s\n",
			priorityColor(c.Priority()), name, c.Description())
	}
	fmt.Println()
	return nil
}

// cmdRepairs lists registered repairs
func (r *REPL) cmdRepairs(args []string) error {
	repairs := r.coordinator.Repairs()

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s (%d registered)\n\n", cyan("Repairs"), repairs.Len())
	for _, name := range repairs.Names() {
		rep, ok := repairs.Get(name)
		if !ok {
			continue
		}
		fmt.Printf("  [%s] %s\n      %s\n",
			priorityColor(rep.Priority()), name, rep.Description())
	}
	fmt.Println()
	return nil
}

// cmdSimulate dry-runs a repair in the sandbox
func (r *REPL) cmdSimulate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: simulate <issue-or-repair-name>")
	}

	rep, ok := r.coordinator.Repairs().RepairFor(args[0])
	if !ok {
		return fmt.Errorf("no repair registered for %q", args[0])
	}

	snap, err := r.coordinator.LoadSnapshot(r.ctx)
	if err != nil {
		return err
	}
	report, err := r.coordinator.Simulator().Simulate(r.ctx, snap, rep.Name())
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s %s\n\n", cyan("Simulation"), report.ID)
	if report.Success {
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("  %s %s\n", green("✓"), report.Summary)
	} else {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("  %s %s\n", red("✗"), report.Summary)
	}
	for _, change := range report.Changes {
		fmt.Printf("    - %s\n", change)
	}
	if report.Success && len(report.Changes) > 0 {
		fmt.Printf("\n  Run 'commit %s' to apply.\n", report.ID)
	}
	fmt.Println()
	return nil
}

// cmdPending lists simulation reports awaiting commit
func (r *REPL) cmdPending(args []string) error {
	reports := r.coordinator.Simulator().Pending()
	if len(reports) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No pending simulations.\n\n", yellow("ℹ"))
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Pending Simulations"))
	for _, rep := range reports {
		marker := color.New(color.FgGreen).SprintFunc()("✓")
		if !rep.Success {
			marker = color.New(color.FgRed).SprintFunc()("✗")
		}
		fmt.Printf("  %s %s  %s (%d changes)\n", marker, rep.ID, rep.RepairName, len(rep.Changes))
	}
	fmt.Println()
	return nil
}

// cmdCommit applies a verified simulation report
func (r *REPL) cmdCommit(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: commit <report-id>")
	}
	if err := r.coordinator.Simulator().Commit(r.ctx, args[0]); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Simulation %s committed to live state.\n\n", green("✓"), args[0])
	return nil
}

// cmdDiscard drops a simulation report
func (r *REPL) cmdDiscard(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: discard <report-id>")
	}
	if !r.coordinator.Simulator().Discard(r.ctx, args[0]) {
		return fmt.Errorf("no pending simulation %q", args[0])
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Simulation %s discarded.\n\n", green("✓"), args[0])
	return nil
}

// cmdReview asks the advisor about the last sweep
func (r *REPL) cmdReview(args []string) error {
	if r.lastSweep == nil {
		return fmt.Errorf("no sweep to review yet, run 'sweep' first")
	}
	if r.advisor == nil || !r.advisor.Enabled() {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s Advisor disabled. Set ANTHROPIC_API_KEY to enable reviews.\n\n", yellow("ℹ"))
		return nil
	}

	entries := r.coordinator.RepairLog().Entries()
	if len(entries) > 10 {
		entries = entries[len(entries)-10:]
	}

	review, err := r.advisor.ReviewSweep(r.ctx, r.lastSweep, entries)
	if err != nil {
		if errors.Is(err, advisor.ErrDisabled) {
			return fmt.Errorf("advisor is disabled")
		}
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s %s\n\n", cyan("Advisor verdict:"), review.Verdict)
	fmt.Printf("  %s\n", review.Summary)
	if len(review.Concerns) > 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n  %s\n", yellow("Concerns:"))
		for _, c := range review.Concerns {
			fmt.Printf("    - %s\n", c)
		}
	}
	if len(review.Recommendations) > 0 {
		fmt.Println("\n  Recommendations:")
		for _, rec := range review.Recommendations {
			fmt.Printf("    - %s\n", rec)
		}
	}
	fmt.Println()
	return nil
}

// cmdBackup shows or creates the pre-repair backup
func (r *REPL) cmdBackup(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if len(args) > 0 && args[0] == "create" {
		if err := r.coordinator.Backup(r.ctx); err != nil {
			return err
		}
		fmt.Printf("\n%s Backup created.\n\n", green("✓"))
		return nil
	}

	exists, createdAt, err := r.coordinator.BackupInfo(r.ctx)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Printf("\n%s No backup on file. Use 'backup create'.\n\n", yellow("ℹ"))
		return nil
	}
	fmt.Printf("\n%s Backup from %s. Use 'restore confirm' to roll back to it.\n\n",
		green("✓"), createdAt.Format("2006-01-02 15:04:05"))
	return nil
}

// cmdRestore rolls mission state back to the backup
func (r *REPL) cmdRestore(args []string) error {
	if len(args) != 1 || args[0] != "confirm" {
		return fmt.Errorf("restore overwrites live mission state; type 'restore confirm' to proceed")
	}
	if err := r.coordinator.RestoreBackup(r.ctx); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Mission state restored from backup.\n\n", green("✓"))
	return nil
}

// priorityColor renders a priority in its conventional color
func priorityColor(p types.Priority) string {
	switch p {
	case types.PriorityCritical:
		return color.New(color.FgRed, color.Bold).Sprint(string(p))
	case types.PriorityHigh:
		return color.New(color.FgYellow).Sprint(string(p))
	default:
		return color.New(color.FgGreen).Sprint(string(p))
	}
}

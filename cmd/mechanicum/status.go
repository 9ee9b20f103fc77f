package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/mission"
)

// statusReport is the JSON shape of the status command.
type statusReport struct {
	Database       string                        `json:"database"`
	ActiveMissions int                           `json:"active_missions"`
	Completed      int                           `json:"completed_missions"`
	Deleted        int                           `json:"deleted_missions"`
	Issues         []string                      `json:"issues"`
	LastSweep      *time.Time                    `json:"last_sweep,omitempty"`
	LastSweepText  string                        `json:"last_sweep_text,omitempty"`
	Suggestions    *mission.SuggestionStatistics `json:"suggestions,omitempty"`
	RepairLog      string                        `json:"repair_log"`
	BackupAt       *time.Time                    `json:"backup_at,omitempty"`
	RecentEvents   []events.GuardianEvent        `json:"recent_events,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mission data health and engine state",
	Long: `Inspect the engine's persisted state: mission counts, outstanding
validation issues, the suggestion queue, the repair log, and the tail
of the event feed left by previous sweeps.

Status never mutates anything. Validation runs in detect-only mode, so
issues reported here stay in place until the next sweep or an explicit
'mechanicum validate --repair'.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		report := statusReport{Database: eng.cfg.DBPath, Issues: []string{}}

		snap, err := eng.coord.LoadSnapshot(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load mission data: %v\n", err)
			os.Exit(1)
		}
		report.ActiveMissions = len(snap.Active)
		report.Completed = len(snap.Completed)
		report.Deleted = len(snap.Deleted)

		validation, err := eng.coord.ValidateAll(ctx, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: validation failed: %v\n", err)
			os.Exit(1)
		}
		report.Issues = validation.Issues

		if stats, err := eng.coord.Statistics(ctx); err == nil && stats.Total > 0 {
			report.Suggestions = stats
		}
		report.RepairLog = eng.coord.RepairLog().Summary()

		if exists, createdAt, err := eng.coord.BackupInfo(ctx); err == nil && exists {
			at := createdAt
			report.BackupAt = &at
		}

		feed, err := events.LoadFeed(ctx, eng.store)
		if err != nil {
			eng.logger.Warn("could not read persisted event feed", zap.Error(err))
		}
		for i := len(feed) - 1; i >= 0; i-- {
			if feed[i].Type == events.EventTypeSweepCompleted {
				at := feed[i].Timestamp
				report.LastSweep = &at
				report.LastSweepText = feed[i].Action
				break
			}
		}
		if len(feed) > 5 {
			feed = feed[len(feed)-5:]
		}
		report.RecentEvents = feed

		if jsonOut {
			printJSON(report)
			return
		}
		renderStatus(report, validation.CheckedRecords)
	},
}

func renderStatus(report statusReport, checkedRecords int) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("Mission Data Status"))
	fmt.Printf("  Database:     %s\n", report.Database)
	fmt.Printf("  Missions:     %d active, %d completed, %d deleted\n",
		report.ActiveMissions, report.Completed, report.Deleted)

	if len(report.Issues) == 0 {
		fmt.Printf("  Validation:   %s all %d records pass\n", green("✓"), checkedRecords)
	} else {
		fmt.Printf("  Validation:   %s %d issue(s) outstanding\n", yellow("⚠"), len(report.Issues))
		for _, issue := range report.Issues {
			fmt.Printf("    %s %s\n", yellow("●"), issue)
		}
	}

	if report.LastSweep != nil {
		fmt.Printf("  Last sweep:   %s", report.LastSweep.Format("2006-01-02 15:04:05"))
		if report.LastSweepText != "" {
			fmt.Printf(" (%s)", report.LastSweepText)
		}
		fmt.Println()
	} else {
		fmt.Printf("  Last sweep:   %s\n", gray("none on record"))
	}

	if report.Suggestions != nil {
		fmt.Printf("  Suggestions:  %d pending, %d approved, %d rejected (%.0f%% approval)\n",
			report.Suggestions.Pending, report.Suggestions.Approved,
			report.Suggestions.Rejected, report.Suggestions.ApprovalRate*100)
	}
	fmt.Printf("  Repair log:   %s\n", report.RepairLog)

	if report.BackupAt != nil {
		fmt.Printf("  Backup:       %s\n", report.BackupAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("  Backup:       %s\n", gray("none"))
	}

	if len(report.RecentEvents) > 0 {
		fmt.Printf("\n%s\n", yellow("Recent events:"))
		for _, ev := range report.RecentEvents {
			fmt.Print("  ")
			renderEvent(ev)
		}
	}
	fmt.Println()

	if len(report.Issues) > 0 {
		fmt.Printf("Run %s to fix outstanding issues.\n\n", cyan("mechanicum validate --repair"))
	}
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output the status report as JSON")
	rootCmd.AddCommand(statusCmd)
}

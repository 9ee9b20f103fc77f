package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [issue-or-repair]",
	Short: "Dry-run a repair against a sandboxed copy",
	Long: `Run a repair against a deep-cloned copy of the mission data and
stage the result for review. Live state is never touched: the clone is
repaired, the full check suite re-runs against it, and the outcome is
kept as a pending report you can inspect and commit later.

Without an argument, lists the reports currently staged. Staged
reports survive restarts, so a simulation from one invocation can be
committed from another.

Examples:
  mechanicum simulate duplicate_mission_ids
  mechanicum simulate fix_counter_overflow --commit
  mechanicum simulate`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		commitNow, _ := cmd.Flags().GetBool("commit")
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		if len(args) == 0 {
			listPending(eng, jsonOut)
			return
		}

		rep, ok := eng.coord.Repairs().RepairFor(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: no repair registered for %q\n", args[0])
			fmt.Fprintf(os.Stderr, "Run 'mechanicum checks' to see what is available.\n")
			os.Exit(1)
		}

		snap, err := eng.coord.LoadSnapshot(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load mission data: %v\n", err)
			os.Exit(1)
		}
		report, err := eng.coord.Simulator().Simulate(ctx, snap, rep.Name())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: simulation failed: %v\n", err)
			os.Exit(1)
		}

		if commitNow {
			if !report.Success {
				fmt.Fprintf(os.Stderr, "Error: refusing to commit a failed simulation: %s\n", report.Summary)
				os.Exit(1)
			}
			if err := eng.coord.Simulator().Commit(ctx, report.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Error: commit failed: %v\n", err)
				os.Exit(1)
			}
		}

		if jsonOut {
			printJSON(report)
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		fmt.Printf("\n%s %s\n\n", cyan("Simulation"), report.ID)
		if report.Success {
			fmt.Printf("  %s %s\n", green("✓"), report.Summary)
		} else {
			fmt.Printf("  %s %s\n", red("✗"), report.Summary)
		}
		for _, change := range report.Changes {
			fmt.Printf("    - %s\n", change)
		}

		switch {
		case commitNow:
			fmt.Printf("\n  %s Committed to live state.\n", green("✓"))
		case report.Success && len(report.Changes) > 0:
			fmt.Printf("\n  Run 'mechanicum commit %s' to apply.\n", report.ID)
		}
		fmt.Println()
	},
}

// listPending prints the staged simulation reports.
func listPending(eng *engine, jsonOut bool) {
	reports := eng.coord.Simulator().Pending()

	if jsonOut {
		printJSON(reports)
		return
	}

	if len(reports) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No pending simulations.\n\n", yellow("ℹ"))
		return
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Pending Simulations"))
	for _, rep := range reports {
		marker := color.New(color.FgGreen).Sprint("✓")
		if !rep.Success {
			marker = color.New(color.FgRed).Sprint("✗")
		}
		fmt.Printf("  %s %s  %s (%d changes)  %s\n",
			marker, rep.ID, rep.RepairName, len(rep.Changes),
			gray(rep.SimulatedAt.Format("01-02 15:04:05")))
	}
	fmt.Printf("\nUse 'mechanicum commit <id>' or 'mechanicum discard <id>'.\n\n")
}

func init() {
	simulateCmd.Flags().Bool("commit", false, "Commit immediately when the simulation succeeds")
	simulateCmd.Flags().Bool("json", false, "Output the report as JSON")
	rootCmd.AddCommand(simulateCmd)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/questlog/mechanicum/internal/advisor"
	"github.com/questlog/mechanicum/internal/guardian"
)

// reviewResult pairs the sweep with the advisor's verdict for --json.
type reviewResult struct {
	Sweep  *guardian.SweepSummary `json:"sweep"`
	Review *advisor.Review        `json:"review"`
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run a sweep and get an AI second opinion",
	Long: `Run one comprehensive sweep, then send the summary and recent
repair history to Claude for review. The advisor judges whether the
findings look like routine drift or a systematic writer bug; it never
changes anything itself.

Requires ANTHROPIC_API_KEY. The model comes from MECH_REVIEW_MODEL.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		if !eng.advisor.Enabled() {
			fmt.Fprintf(os.Stderr, "Error: advisor disabled. Set ANTHROPIC_API_KEY to enable reviews.\n")
			os.Exit(1)
		}

		summary, err := eng.scheduler.PerformImmediate(ctx, guardian.SweepComprehensive)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: sweep failed: %v\n", err)
			os.Exit(1)
		}

		entries := eng.coord.RepairLog().Entries()
		if len(entries) > 10 {
			entries = entries[len(entries)-10:]
		}

		review, err := eng.advisor.ReviewSweep(ctx, summary, entries)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: review failed: %v\n", err)
			os.Exit(1)
		}

		if jsonOut {
			printJSON(reviewResult{Sweep: summary, Review: review})
			return
		}

		renderSweepSummary(summary)

		verdict := color.New(color.FgGreen).Sprint(review.Verdict)
		switch review.Verdict {
		case "attention":
			verdict = color.New(color.FgYellow).Sprint(review.Verdict)
		case "investigate":
			verdict = color.New(color.FgRed, color.Bold).Sprint(review.Verdict)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%s %s\n\n", cyan("Advisor verdict:"), verdict)
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
	},
}

func init() {
	reviewCmd.Flags().Bool("json", false, "Output the sweep and review as JSON")
	rootCmd.AddCommand(reviewCmd)
}

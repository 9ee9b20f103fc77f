package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/questlog/mechanicum/internal/mission"
)

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "List queued repair suggestions",
	Long: `Show the repairs waiting for approval. The engine queues a
suggestion instead of repairing when auto-repair is off or when a
sandbox run could not verify the fix.

Use 'mechanicum approve <id>' to verify and apply one, or
'mechanicum reject <id> [reason]' to dismiss it.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		showAll, _ := cmd.Flags().GetBool("all")

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		list, err := eng.coord.Suggestions(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load suggestions: %v\n", err)
			os.Exit(1)
		}
		if !showAll {
			pending := list[:0]
			for _, s := range list {
				if s.Status == mission.SuggestionPending {
					pending = append(pending, s)
				}
			}
			list = pending
		}

		if jsonOut {
			printJSON(list)
			return
		}

		if len(list) == 0 {
			green := color.New(color.FgGreen).SprintFunc()
			if showAll {
				fmt.Printf("\n%s No suggestions on record.\n\n", green("✓"))
			} else {
				fmt.Printf("\n%s No suggestions pending. Use --all for resolved ones.\n\n", green("✓"))
			}
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s\n\n", cyan("Repair Suggestions"))
		for _, s := range list {
			marker := color.New(color.FgYellow).Sprint("●")
			switch s.Status {
			case mission.SuggestionApproved:
				marker = color.New(color.FgGreen).Sprint("✓")
			case mission.SuggestionRejected:
				marker = color.New(color.FgRed).Sprint("✗")
			}
			fmt.Printf("  %s %s  [%s] %s\n", marker, s.ID, s.Status, s.Issue)
			if s.Description != "" {
				fmt.Printf("      %s\n", s.Description)
			}
			fmt.Printf("      %s\n", gray("repair: "+s.RepairName+", created "+s.CreatedAt.Format("2006-01-02 15:04")))
			if s.Resolution != "" {
				fmt.Printf("      %s\n", gray(s.Resolution))
			}
		}

		if stats, err := eng.coord.Statistics(ctx); err == nil && stats.Total > 0 {
			fmt.Printf("\n  %d total: %d pending, %d approved, %d rejected (%.0f%% approval)\n",
				stats.Total, stats.Pending, stats.Approved, stats.Rejected, stats.ApprovalRate*100)
		}
		fmt.Println()
	},
}

func init() {
	suggestionsCmd.Flags().Bool("all", false, "Include approved and rejected suggestions")
	suggestionsCmd.Flags().Bool("json", false, "Output suggestions as JSON")
	rootCmd.AddCommand(suggestionsCmd)
}

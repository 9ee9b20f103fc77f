package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every mission record",
	Long: `Run structural validation across all mission records and report
what fails: duplicate IDs, contradictory completion flags, counter
and mastery violations, missing fields.

With --repair the engine backs up the current state, applies the
structural fixes in place, and reloads to confirm the data comes back
clean. Without it, validation only reports.`,
	Run: func(cmd *cobra.Command, args []string) {
		repair, _ := cmd.Flags().GetBool("repair")
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		report, err := eng.coord.ValidateAll(ctx, repair)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: validation failed: %v\n", err)
			os.Exit(1)
		}

		if jsonOut {
			printJSON(report)
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		fmt.Printf("\n%s (%d records, %s)\n\n", cyan("Validation"),
			report.CheckedRecords, report.Duration.Round(time.Millisecond))
		if len(report.Issues) == 0 {
			fmt.Printf("  %s All records pass validation.\n\n", green("✓"))
			return
		}

		for _, issue := range report.Issues {
			fmt.Printf("  %s %s\n", yellow("●"), issue)
		}
		fmt.Println()
		if repair {
			fmt.Printf("  Repairs applied: %d (backup taken: %t, clean after: %t)\n\n",
				len(report.RepairsApplied), report.BackedUp, report.Confirmed)
			if !report.Confirmed {
				fmt.Printf("  %s Data still reports issues after repair. Inspect with 'mechanicum status'.\n\n", yellow("⚠"))
				os.Exit(1)
			}
			return
		}
		fmt.Printf("  Run 'mechanicum validate --repair' to fix these.\n\n")
		os.Exit(1)
	},
}

func init() {
	validateCmd.Flags().Bool("repair", false, "Back up, then fix structural issues in place")
	validateCmd.Flags().Bool("json", false, "Output the validation report as JSON")
	rootCmd.AddCommand(validateCmd)
}

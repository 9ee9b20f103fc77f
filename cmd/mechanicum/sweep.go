package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/questlog/mechanicum/internal/guardian"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep [local|full]",
	Short: "Run one consistency sweep immediately",
	Long: `Run a single sweep against the mission data and print the result.

A full sweep (the default) validates every record, repairs structural
damage in place after taking a backup, and runs the complete health
check suite. A local sweep runs only the cheap high-priority subset.

Examples:
  mechanicum sweep           full sweep
  mechanicum sweep local     high-priority subset only
  mechanicum sweep --json    machine-readable result`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		kind := guardian.SweepComprehensive
		if len(args) > 0 {
			switch args[0] {
			case "local":
				kind = guardian.SweepLocal
			case "full", "comprehensive":
				kind = guardian.SweepComprehensive
			default:
				fmt.Fprintf(os.Stderr, "Error: unknown sweep kind %q (want local or full)\n", args[0])
				os.Exit(1)
			}
		}

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		summary, err := eng.scheduler.PerformImmediate(ctx, kind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: sweep failed: %v\n", err)
			os.Exit(1)
		}

		if jsonOut {
			printJSON(summary)
			return
		}
		renderSweepSummary(summary)
	},
}

func init() {
	sweepCmd.Flags().Bool("json", false, "Output the sweep summary as JSON")
	rootCmd.AddCommand(sweepCmd)
}

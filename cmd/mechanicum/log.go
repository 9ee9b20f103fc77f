package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the repair history",
	Long: `Print the tail of the persisted repair log, newest last.

Every mutation the engine makes is recorded here: in-place structural
fixes, sandbox-verified repairs, and approved suggestions. The log is
a bounded ring, so very old entries age out.`,
	Run: func(cmd *cobra.Command, args []string) {
		count, _ := cmd.Flags().GetInt("count")
		jsonOut, _ := cmd.Flags().GetBool("json")

		if count < 1 {
			fmt.Fprintf(os.Stderr, "Error: --count must be positive, got %d\n", count)
			os.Exit(1)
		}

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		entries := eng.coord.RepairLog().Entries()
		if len(entries) > count {
			entries = entries[len(entries)-count:]
		}

		if jsonOut {
			printJSON(entries)
			return
		}

		if len(entries) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No repairs on record.\n\n", yellow("ℹ"))
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s (%s)\n\n", cyan("Repair Log"), eng.coord.RepairLog().Summary())
		for _, e := range entries {
			fmt.Printf("  %s  %s\n", gray(e.Timestamp.Format("2006-01-02 15:04:05")), e.Issue)
			fmt.Printf("      %s\n", e.Action)
			if e.RecordID != "" {
				fmt.Printf("      %s\n", gray("record "+e.RecordID))
			}
		}
		fmt.Println()
	},
}

func init() {
	logCmd.Flags().IntP("count", "n", 10, "Number of entries to show")
	logCmd.Flags().Bool("json", false, "Output entries as JSON")
	rootCmd.AddCommand(logCmd)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve <suggestion-id>",
	Short: "Verify and apply a suggested repair",
	Long: `Approve one queued suggestion. The repair first runs against a
sandboxed copy; it only touches live state when that verification
succeeds. A failed verification leaves the suggestion pending.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		s, err := eng.coord.Approve(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Applied %s for %q\n", green("✓"), s.RepairName, s.Issue)
		if s.Resolution != "" {
			fmt.Printf("  %s\n", s.Resolution)
		}
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

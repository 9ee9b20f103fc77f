package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rejectCmd = &cobra.Command{
	Use:   "reject <suggestion-id> [reason...]",
	Short: "Dismiss a suggested repair",
	Long: `Reject one queued suggestion. The underlying issue stays in the
data, so the next sweep that detects it queues a fresh suggestion.
To silence an issue for good, fix the data or approve the repair.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason := strings.Join(args[1:], " ")

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		s, err := eng.coord.Reject(ctx, args[0], reason)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s Rejected suggestion for %q\n", yellow("✗"), s.Issue)
	},
}

func init() {
	rootCmd.AddCommand(rejectCmd)
}

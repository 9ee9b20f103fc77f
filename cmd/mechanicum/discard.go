package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var discardCmd = &cobra.Command{
	Use:   "discard <report-id>",
	Short: "Drop a staged simulation report",
	Long:  `Remove a staged simulation without applying it. Live state is unaffected.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		if !eng.coord.Simulator().Discard(ctx, args[0]) {
			fmt.Fprintf(os.Stderr, "Error: no pending simulation %q\n", args[0])
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Simulation %s discarded.\n", green("✓"), args[0])
	},
}

func init() {
	rootCmd.AddCommand(discardCmd)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit <report-id>",
	Short: "Apply a verified simulation to live state",
	Long: `Replace live mission data with the resulting state of a staged
simulation report. Only reports whose sandbox run succeeded can be
committed; run 'mechanicum simulate' to see what is staged.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		if err := eng.coord.Simulator().Commit(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Simulation %s committed to live state.\n", green("✓"), args[0])
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
}

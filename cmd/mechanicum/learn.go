package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/questlog/mechanicum/internal/registry"
	"github.com/questlog/mechanicum/internal/types"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Show the learning history or teach a new check or repair",
	Long: `Without arguments, prints every check and repair the engine has
learned since its first run.

The subcommands register new entries by name. Code is never persisted:
a learned name starts as an inert placeholder and binds to a real
implementation when a build ships one under that name. Until then the
entry is tracked, listed, and carried across restarts.

Examples:
  mechanicum learn
  mechanicum learn check orphaned_subtasks "Subtasks whose parent mission is gone" --priority high
  mechanicum learn repair fix_orphaned_subtasks "Remove subtasks with no parent"`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		records := eng.history.Records()

		if jsonOut {
			printJSON(records)
			return
		}

		if len(records) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s Nothing learned yet. The engine runs its builtin suite.\n\n", yellow("ℹ"))
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("\n%s (%d entries)\n\n", cyan("Learning History"), len(records))
		for _, rec := range records {
			fmt.Printf("  %s  [%s] %s\n      %s\n",
				gray(rec.LearnedAt.Format("2006-01-02 15:04")), rec.Kind, rec.Name, rec.Description)
		}
		fmt.Println()
	},
}

var learnCheckCmd = &cobra.Command{
	Use:   "check <name> <description>",
	Short: "Register a new health check by name",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runLearn(cmd, args, "check")
	},
}

var learnRepairCmd = &cobra.Command{
	Use:   "repair <name> <description>",
	Short: "Register a new repair action by name",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runLearn(cmd, args, "repair")
	},
}

func runLearn(cmd *cobra.Command, args []string, kind string) {
	priorityFlag, _ := cmd.Flags().GetString("priority")
	priority, err := types.ParsePriority(priorityFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	name := args[0]
	description := strings.Join(args[1:], " ")

	ctx := context.Background()
	eng, err := openEngine(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.close()

	var ok bool
	if kind == "check" {
		ok = eng.coord.Checks().Learn(ctx, name, description, priority, registry.InertDetect)
	} else {
		ok = eng.coord.Repairs().LearnRepair(ctx, name, description, priority, registry.InertApply)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: %s %q is already registered\n", kind, name)
		os.Exit(1)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Learned %s %s [%s]\n", green("✓"), kind, name, priority)
	fmt.Printf("  Inert until an implementation ships under this name.\n")
}

func init() {
	learnCmd.Flags().Bool("json", false, "Output the learning history as JSON")
	learnCheckCmd.Flags().String("priority", "medium", "Priority: low, medium, high, critical")
	learnRepairCmd.Flags().String("priority", "medium", "Priority: low, medium, high, critical")
	learnCmd.AddCommand(learnCheckCmd)
	learnCmd.AddCommand(learnRepairCmd)
	rootCmd.AddCommand(learnCmd)
}

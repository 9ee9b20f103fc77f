package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/questlog/mechanicum/internal/registry"
)

// checksReport is the JSON shape of the checks command.
type checksReport struct {
	Checks  []registry.StoredCheck  `json:"checks"`
	Repairs []registry.StoredRepair `json:"repairs"`
}

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List registered health checks and their repairs",
	Long: `Show every health check the engine runs, its priority, and the
repair linked to it. Checks and repairs learned at runtime are marked;
run 'mechanicum learn' for the full learning history.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		learnedAt := make(map[string]registry.LearningRecord)
		for _, rec := range eng.history.Records() {
			learnedAt[rec.Kind+"/"+rec.Name] = rec
		}

		checks := eng.coord.Checks()
		repairs := eng.coord.Repairs()

		if jsonOut {
			report := checksReport{}
			for _, name := range checks.Names() {
				c, ok := checks.Get(name)
				if !ok {
					continue
				}
				sc := registry.StoredCheck{Name: c.Name(), Description: c.Description(), Priority: c.Priority()}
				if rec, ok := learnedAt["check/"+name]; ok {
					sc.Learned = true
					at := rec.LearnedAt
					sc.LearnedAt = &at
				}
				report.Checks = append(report.Checks, sc)
			}
			for _, name := range repairs.Names() {
				r, ok := repairs.Get(name)
				if !ok {
					continue
				}
				sr := registry.StoredRepair{Name: r.Name(), Description: r.Description(), Priority: r.Priority()}
				if rec, ok := learnedAt["repair/"+name]; ok {
					sr.Learned = true
					at := rec.LearnedAt
					sr.LearnedAt = &at
				}
				report.Repairs = append(report.Repairs, sr)
			}
			printJSON(report)
			return
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		magenta := color.New(color.FgMagenta).SprintFunc()

		fmt.Printf("\n%s (%d registered)\n\n", cyan("Health Checks"), checks.Len())
		for _, name := range checks.Names() {
			c, ok := checks.Get(name)
			if !ok {
				continue
			}
			mark := ""
			if _, learned := learnedAt["check/"+name]; learned {
				mark = " " + magenta("(learned)")
			}
			fmt.Printf("  [%s] %s%s\n      %s\n", priorityLabel(c.Priority()), name, mark, c.Description())
			if rep, ok := repairs.RepairFor(name); ok {
				fmt.Printf("      %s\n", gray("fix: "+rep.Name()))
			}
		}

		fmt.Printf("\n%s (%d registered)\n\n", cyan("Repairs"), repairs.Len())
		for _, name := range repairs.Names() {
			r, ok := repairs.Get(name)
			if !ok {
				continue
			}
			mark := ""
			if _, learned := learnedAt["repair/"+name]; learned {
				mark = " " + magenta("(learned)")
			}
			fmt.Printf("  [%s] %s%s\n      %s\n", priorityLabel(r.Priority()), name, mark, r.Description())
		}
		fmt.Println()
	},
}

func init() {
	checksCmd.Flags().Bool("json", false, "Output checks and repairs as JSON")
	rootCmd.AddCommand(checksCmd)
}

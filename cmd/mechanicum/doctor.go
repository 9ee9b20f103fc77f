package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/questlog/mechanicum/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check engine installation and data health",
	Long: `Run diagnostics against the engine's configuration and database.

This command checks:
- Configuration validity (env, file, flags)
- Database existence, accessibility, and schema compatibility
- Mission data validation state
- Staged simulations and pending suggestions
- API key for the optional AI advisor

Exit codes:
  0 - All checks passed (warnings allowed)
  1 - One or more checks failed
  2 - Critical failures that prevent the engine from running`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running engine health checks...\n\n")

		var criticalFailures []string
		var failures []string
		var warnings []string

		// Check 1: configuration
		fmt.Printf("%s Configuration\n", cyan("→"))
		cfg, err := loadConfig()
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Invalid configuration: %v", err))
			fmt.Printf("  %s Configuration invalid\n", red("✗"))
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
			finishDoctor(criticalFailures, failures, warnings)
			return
		}
		fmt.Printf("  %s Configuration valid\n", green("✓"))
		if verbose {
			fmt.Printf("    %s\n", cfg.String())
		}

		// Check 2: database file
		fmt.Printf("%s Database file\n", cyan("→"))
		fresh := false
		if info, err := os.Stat(cfg.DBPath); err != nil {
			fresh = true
			fmt.Printf("  %s No database yet at %s (created on first run)\n", green("✓"), cfg.DBPath)
		} else {
			fmt.Printf("  %s Database file accessible (%d bytes)\n", green("✓"), info.Size())
			walPath := cfg.DBPath + "-wal"
			if walInfo, err := os.Stat(walPath); err == nil {
				if walInfo.ModTime().Sub(info.ModTime()) > 5*time.Minute {
					warnings = append(warnings, "WAL file significantly newer than main DB (consider PRAGMA wal_checkpoint)")
					fmt.Printf("  %s WAL file significantly newer than main DB\n", yellow("⚠"))
				} else if verbose {
					fmt.Printf("    WAL mode active\n")
				}
			}
		}

		// Check 3: database access and schema
		fmt.Printf("%s Database access\n", cyan("→"))
		probe, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Cannot open database: %v", err))
			fmt.Printf("  %s Cannot open database\n", red("✗"))
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
			finishDoctor(criticalFailures, failures, warnings)
			return
		}
		probe.Close()
		fmt.Printf("  %s Database opens, schema compatible (%s)\n", green("✓"), store.SchemaVersion)
		if fresh {
			// The probe created the file; a fresh store passes the
			// remaining checks trivially.
			fmt.Printf("    Fresh database initialized\n")
		}

		// Checks 4-6 run through the wired engine.
		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Engine failed to start: %v", err))
			fmt.Printf("  %s Engine failed to start: %v\n", red("✗"), err)
			finishDoctor(criticalFailures, failures, warnings)
			return
		}
		defer eng.close()

		// Check 4: mission data
		fmt.Printf("%s Mission data\n", cyan("→"))
		snap, err := eng.coord.LoadSnapshot(ctx)
		if err != nil {
			failures = append(failures, fmt.Sprintf("Cannot load mission data: %v", err))
			fmt.Printf("  %s Cannot load mission data\n", red("✗"))
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
		} else {
			fmt.Printf("  %s %d active, %d completed, %d deleted missions\n", green("✓"),
				len(snap.Active), len(snap.Completed), len(snap.Deleted))
		}

		// Check 5: validation state
		fmt.Printf("%s Validation\n", cyan("→"))
		report, err := eng.coord.ValidateAll(ctx, false)
		switch {
		case err != nil:
			failures = append(failures, fmt.Sprintf("Validation failed: %v", err))
			fmt.Printf("  %s Validation failed\n", red("✗"))
		case len(report.Issues) == 0:
			fmt.Printf("  %s All %d records pass validation\n", green("✓"), report.CheckedRecords)
		default:
			warnings = append(warnings, fmt.Sprintf("%d validation issue(s) outstanding (run 'mechanicum validate --repair')", len(report.Issues)))
			fmt.Printf("  %s %d issue(s) outstanding\n", yellow("⚠"), len(report.Issues))
			if verbose {
				for _, issue := range report.Issues {
					fmt.Printf("    • %s\n", issue)
				}
			}
		}

		// Check 6: staged work
		fmt.Printf("%s Staged work\n", cyan("→"))
		pending := eng.coord.Simulator().Pending()
		if len(pending) > 0 {
			fmt.Printf("  %s %d staged simulation(s) awaiting commit\n", green("✓"), len(pending))
		}
		if stats, err := eng.coord.Statistics(ctx); err == nil && stats.Pending > 0 {
			fmt.Printf("  %s %d suggestion(s) awaiting review\n", green("✓"), stats.Pending)
		} else if len(pending) == 0 {
			fmt.Printf("  %s Nothing staged\n", green("✓"))
		}

		// Check 7: advisor environment
		fmt.Printf("%s Advisor\n", cyan("→"))
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey == "" {
			warnings = append(warnings, "ANTHROPIC_API_KEY not set (AI sweep review disabled)")
			fmt.Printf("  %s ANTHROPIC_API_KEY not set, reviews disabled\n", yellow("⚠"))
		} else {
			fmt.Printf("  %s ANTHROPIC_API_KEY is set (model %s)\n", green("✓"), cfg.ReviewModel)
		}

		finishDoctor(criticalFailures, failures, warnings)
	},
}

// finishDoctor prints the summary and exits with the doctor code.
func finishDoctor(criticalFailures, failures, warnings []string) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("\n%s\n", strings.Repeat("─", 60))

	if len(criticalFailures)+len(failures)+len(warnings) == 0 {
		fmt.Printf("%s All checks passed. The engine is ready to run.\n", green("✓"))
		os.Exit(0)
	}

	if len(criticalFailures) > 0 {
		fmt.Printf("\n%s Critical failures (%d):\n", red("✗"), len(criticalFailures))
		for _, f := range criticalFailures {
			fmt.Printf("  • %s\n", f)
		}
	}
	if len(failures) > 0 {
		fmt.Printf("\n%s Failures (%d):\n", red("✗"), len(failures))
		for _, f := range failures {
			fmt.Printf("  • %s\n", f)
		}
	}
	if len(warnings) > 0 {
		fmt.Printf("\n%s Warnings (%d):\n", yellow("⚠"), len(warnings))
		for _, w := range warnings {
			fmt.Printf("  • %s\n", w)
		}
	}

	if len(criticalFailures) > 0 {
		fmt.Printf("\n%s The engine cannot run until critical issues are resolved.\n", red("✗"))
		os.Exit(2)
	}
	if len(failures) > 0 {
		fmt.Printf("\n%s The engine may not work correctly. Address the failures above.\n", yellow("⚠"))
		os.Exit(1)
	}
	fmt.Printf("\n%s The engine should work, but some warnings were detected.\n", green("✓"))
	os.Exit(0)
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

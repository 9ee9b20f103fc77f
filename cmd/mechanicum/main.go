package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mechanicum",
	Short: "Self-healing consistency engine for mission data",
	Long: `Mechanicum guards a task tracker's mission data against corruption.

The engine runs health checks on two cadences: a cheap high-priority
subset every 30 seconds and a comprehensive sweep every 2 minutes.
Structural damage (duplicate IDs, contradictory completion flags,
invalid counters) is repaired in place after a backup. Everything else
is verified against a sandboxed copy first, or queued as a suggestion
when auto-repair is off.

Common workflows:
  mechanicum sweep           run one comprehensive sweep now
  mechanicum watch           run the engine in the foreground
  mechanicum status          inspect engine state and recent findings
  mechanicum suggestions     review queued repairs
  mechanicum repl            interactive console

Configuration comes from MECH_* environment variables, an optional
YAML file (--config), and flags, in rising precedence.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the engine database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

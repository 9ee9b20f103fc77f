// Package repl is the interactive console over the consistency engine.
// It drives the same coordinator and scheduler surface the CLI uses,
// one command per line.
package repl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/questlog/mechanicum/internal/advisor"
	"github.com/questlog/mechanicum/internal/guardian"
	"github.com/questlog/mechanicum/internal/mission"
)

// REPL represents the interactive shell
type REPL struct {
	coordinator *mission.Coordinator
	scheduler   *guardian.Scheduler
	advisor     *advisor.Advisor
	rl          *readline.Instance
	ctx         context.Context
	commands    map[string]CommandHandler

	// lastSweep holds the most recent sweep summary for the review
	// command.
	lastSweep *guardian.SweepSummary
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Coordinator *mission.Coordinator
	Scheduler   *guardian.Scheduler
	Advisor     *advisor.Advisor // optional; review command reports disabled when nil
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if cfg.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}

	r := &REPL{
		coordinator: cfg.Coordinator,
		scheduler:   cfg.Scheduler,
		advisor:     cfg.Advisor,
		commands:    make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("mech> "),
		HistoryFile:       "",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := parts[0]
	args := parts[1:]

	handler, ok := r.commands[command]
	if !ok {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s Unknown command %q. Use 'help' for available commands.\n", yellow("Note:"), command)
		return nil
	}
	return handler(args)
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit

	r.commands["status"] = r.cmdStatus
	r.commands["log"] = r.cmdLog
	r.commands["suggestions"] = r.cmdSuggestions
	r.commands["approve"] = r.cmdApprove
	r.commands["reject"] = r.cmdReject

	r.commands["sweep"] = r.cmdSweep
	r.commands["watch"] = r.cmdWatch
	r.commands["validate"] = r.cmdValidate
	r.commands["checks"] = r.cmdChecks
	r.commands["repairs"] = r.cmdRepairs
	r.commands["simulate"] = r.cmdSimulate
	r.commands["pending"] = r.cmdPending
	r.commands["commit"] = r.cmdCommit
	r.commands["discard"] = r.cmdDiscard
	r.commands["review"] = r.cmdReview
	r.commands["backup"] = r.cmdBackup
	r.commands["restore"] = r.cmdRestore
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("Mechanicum console"))
	fmt.Println("Self-healing consistency engine for mission records")
	fmt.Println()
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println()
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"status", "Engine health, sweep counters, suggestion stats"},
		{"sweep [local|full]", "Run one sweep now (default: full)"},
		{"watch [start|stop]", "Control the background sweep loop"},
		{"validate [repair]", "Validate all mission records, optionally repairing"},
		{"checks", "List registered health checks"},
		{"repairs", "List registered repairs"},
		{"log [n]", "Show the last n repair log entries (default 10)"},
		{"simulate <issue>", "Dry-run the repair for an issue in the sandbox"},
		{"pending", "List simulation reports awaiting commit"},
		{"commit <report>", "Apply a verified simulation report"},
		{"discard <report>", "Drop a simulation report"},
		{"suggestions", "List queued repair suggestions"},
		{"approve <id>", "Verify and apply a suggested repair"},
		{"reject <id> [why]", "Dismiss a suggested repair"},
		{"review", "Ask the advisor about the last sweep"},
		{"backup", "Show or create the pre-repair backup"},
		{"restore confirm", "Restore mission state from the backup"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the console"},
	}
	for _, cmd := range commands {
		// pad before coloring so the escape codes don't skew the column
		fmt.Printf("  %s %s\n", green(fmt.Sprintf("%-20s", cmd.name)), cmd.desc)
	}
	fmt.Println()
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Goodbye!\n", green("✓"))
	r.rl.Close()
	return io.EOF
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/questlog/mechanicum/internal/notify"
	"github.com/questlog/mechanicum/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive console",
	Long: `Open an interactive console over the engine: run sweeps, inspect
the repair log, review suggestions, drive the sandbox, and start or
stop the background loop without leaving the session.

Type 'help' inside the console for the command list.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, err := openEngine(ctx, notify.ConsoleNotifier{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		console, err := repl.New(&repl.Config{
			Coordinator: eng.coord,
			Scheduler:   eng.scheduler,
			Advisor:     eng.advisor,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start console: %v\n", err)
			os.Exit(1)
		}

		runErr := console.Run(ctx)

		// 'watch start' may have left the loop running.
		if eng.scheduler.Running() {
			eng.scheduler.Stop()
		}
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/questlog/mechanicum/internal/events"
	"github.com/questlog/mechanicum/internal/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the engine in the foreground",
	Long: `Start the sweep loop and stream engine events to the terminal.

The engine will:
1. Run the cheap high-priority check subset on the local cadence
2. Run a comprehensive sweep (validation, repair, full check suite)
   on the comprehensive cadence
3. Repair structural damage in place after taking a backup
4. Verify other repairs in the sandbox, or queue suggestions when
   auto-repair is off
5. Print alerts and findings until stopped with Ctrl+C

Alerts go to the terminal while watching. Use --quiet to suppress the
per-event stream and keep only alerts.`,
	Run: func(cmd *cobra.Command, args []string) {
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		eng, err := openEngine(ctx, notify.ConsoleNotifier{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		// Subscribe before starting so the first sweep's events arrive.
		var eventCh <-chan events.GuardianEvent
		if !quiet {
			eventCh = eng.bus.Subscribe()
		}

		if err := eng.scheduler.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start engine: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		onOff := green("on")
		if !eng.cfg.AutoRepair {
			onOff = color.New(color.FgYellow).Sprint("off (queueing suggestions)")
		}
		fmt.Printf("%s Engine started\n", green("✓"))
		fmt.Printf("  Local sweep every %v, comprehensive every %v\n",
			eng.cfg.LocalInterval, eng.cfg.ComprehensiveInterval)
		fmt.Printf("  Auto-repair: %s\n", onOff)
		fmt.Printf("  Database: %s\n", eng.cfg.DBPath)
		fmt.Printf("  Press Ctrl+C to stop\n\n")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	stream:
		for {
			select {
			case <-sigCh:
				break stream
			case ev, ok := <-eventCh:
				if !ok {
					eventCh = nil
					continue
				}
				renderEvent(ev)
			}
		}

		fmt.Println("\n\nShutting down engine...")
		eng.scheduler.Stop()
		if eventCh != nil {
			eng.bus.Unsubscribe(eventCh)
		}
		fmt.Printf("%s Engine stopped\n", green("✓"))
	},
}

func init() {
	watchCmd.Flags().Bool("quiet", false, "Suppress the event stream, print alerts only")
	rootCmd.AddCommand(watchCmd)
}

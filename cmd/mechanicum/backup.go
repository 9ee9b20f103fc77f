package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup [create]",
	Short: "Show or create the pre-repair backup",
	Long: `The engine keeps one backup of mission data, taken automatically
before any in-place structural repair. 'backup' shows when it was
taken; 'backup create' takes a fresh one now.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		if len(args) > 0 {
			if args[0] != "create" {
				fmt.Fprintf(os.Stderr, "Error: unknown argument %q (want create)\n", args[0])
				os.Exit(1)
			}
			if err := eng.coord.Backup(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: backup failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Backup created.\n", green("✓"))
			return
		}

		exists, createdAt, err := eng.coord.BackupInfo(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !exists {
			fmt.Printf("%s No backup on file. Use 'mechanicum backup create'.\n", yellow("ℹ"))
			return
		}
		fmt.Printf("%s Backup from %s.\n", green("✓"), createdAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Use 'mechanicum restore --confirm' to roll back to it.\n")
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Roll mission data back to the backup",
	Long: `Overwrite live mission data with the stored backup. This discards
every change made since the backup was taken, so it requires
--confirm.`,
	Run: func(cmd *cobra.Command, args []string) {
		confirmed, _ := cmd.Flags().GetBool("confirm")
		if !confirmed {
			fmt.Fprintf(os.Stderr, "Error: restore overwrites live mission data; pass --confirm to proceed\n")
			os.Exit(1)
		}

		ctx := context.Background()
		eng, err := openEngine(ctx, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer eng.close()

		if err := eng.coord.RestoreBackup(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: restore failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Mission data restored from backup.\n", green("✓"))
	},
}

func init() {
	restoreCmd.Flags().Bool("confirm", false, "Confirm overwriting live mission data")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

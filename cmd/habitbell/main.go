package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "habitbell",
	Short: "HabitBell - recurring habit reminders over Telegram",
	Long: `habitbell arms one durable reminder per habit, delivers it to the owner's
Telegram chat at the right local time, and re-arms the next occurrence.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(deriveCmd)
}

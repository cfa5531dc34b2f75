package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hray3182/HabitBell/internal/calendar"
	"github.com/hray3182/HabitBell/internal/plan"
	"github.com/spf13/cobra"
)

var (
	deriveStart     string
	deriveMaxOffset int
)

var deriveCmd = &cobra.Command{
	Use:   "derive [description]",
	Short: "Expand D-notation in a habit description into a reminder plan",
	Long: `derive parses lines such as "D1-3 07:30 warm up" and prints the resulting
plan entries as JSON. The description is read from the arguments, or from
stdin when none are given.`,
	RunE: runDerive,
}

func init() {
	deriveCmd.Flags().StringVar(&deriveStart, "start", "", "plan start date YYYY-MM-DD (default today)")
	deriveCmd.Flags().IntVar(&deriveMaxOffset, "max-offset", plan.DefaultMaxDayOffset, "highest day number to expand")
}

func runDerive(cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read description: %w", err)
		}
		description = string(data)
	}

	start := calendar.DateOf(time.Now())
	if deriveStart != "" {
		var err error
		if start, err = calendar.ParseDate(deriveStart); err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
	}

	entries := plan.Derive(description, start, deriveMaxOffset)
	if entries == nil {
		entries = []plan.Entry{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

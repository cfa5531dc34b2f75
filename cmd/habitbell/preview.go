package main

import (
	"fmt"
	"strconv"

	"github.com/hray3182/HabitBell/internal/config"
	"github.com/hray3182/HabitBell/internal/recurrence"
	"github.com/hray3182/HabitBell/internal/rrule"
	"github.com/spf13/cobra"
)

var previewCount int

var previewCmd = &cobra.Command{
	Use:   "preview <habit-id>",
	Short: "Show a habit's upcoming reminders without arming them",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().IntVarP(&previewCount, "count", "n", 5, "number of upcoming reminders to list")
}

func runPreview(cmd *cobra.Command, args []string) error {
	habitID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || habitID <= 0 {
		return fmt.Errorf("invalid habit id %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a, err := newApp(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	habit, err := a.habits.GetByID(cmd.Context(), habitID)
	if err != nil {
		return err
	}
	if habit == nil {
		return fmt.Errorf("habit %d not found", habitID)
	}

	rule := habit.Rule()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (#%d, %s)\n", habit.Title, habit.HabitID, habit.Timezone)
	if desc := rrule.Describe(rule); desc != "" {
		fmt.Fprintf(out, "  %s\n", desc)
	}
	if s := rrule.String(rule); s != "" {
		fmt.Fprintf(out, "  RRULE:%s\n", s)
	}

	first, err := a.service.Preview(cmd.Context(), habitID)
	if err != nil {
		return err
	}
	fires, err := upcoming(rule, first, previewCount, cfg.Engine.LookaheadDays)
	if err != nil {
		return err
	}
	if len(fires) == 0 {
		fmt.Fprintln(out, "No upcoming reminders.")
		return nil
	}
	for _, f := range fires {
		label := ""
		if f.Entry != nil && f.Entry.PhaseLabel != "" {
			label = " " + f.Entry.PhaseLabel
		}
		fmt.Fprintf(out, "  %s %s  %s  [%s]%s\n", f.Date, f.ReminderTime, f.At.UTC().Format("2006-01-02T15:04Z"), f.Source, label)
	}
	return nil
}

// upcoming lists count reminders starting with first, each found by searching
// forward from the previous one.
func upcoming(rule recurrence.Rule, first *recurrence.ScheduledFire, count, lookaheadDays int) ([]*recurrence.ScheduledFire, error) {
	var fires []*recurrence.ScheduledFire
	for next := first; next != nil && len(fires) < count; {
		fires = append(fires, next)
		var err error
		next, err = recurrence.FindNext(rule, next.At, lookaheadDays)
		if err != nil {
			return nil, err
		}
	}
	return fires, nil
}

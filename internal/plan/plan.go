// Package plan holds per-date reminder overrides: normalization, lookup and
// best-effort derivation from free-text habit descriptions.
package plan

import (
	"sort"
	"strings"

	"github.com/hray3182/HabitBell/internal/calendar"
)

// Entry overrides the reminder time for one explicit date.
type Entry struct {
	Date         string `json:"date"`          // YYYY-MM-DD
	ReminderTime string `json:"reminder_time"` // HH:MM
	MinStartTime string `json:"min_start_time,omitempty"`
	PhaseLabel   string `json:"phase_label,omitempty"`
}

// Normalize drops rows with a malformed date or reminder time, keeps the
// last row for each date and returns the result sorted by date. The input is
// not modified.
func Normalize(raw []Entry) []Entry {
	byDate := make(map[string]Entry, len(raw))
	for _, e := range raw {
		if _, err := calendar.ParseDate(e.Date); err != nil {
			continue
		}
		reminderTime, ok := calendar.NormalizeClock(e.ReminderTime)
		if !ok {
			continue
		}
		e.ReminderTime = reminderTime
		if e.MinStartTime != "" {
			// A bad lower bound only loses the bound, not the whole row.
			e.MinStartTime, _ = calendar.NormalizeClock(e.MinStartTime)
		}
		e.PhaseLabel = strings.TrimSpace(e.PhaseLabel)
		byDate[e.Date] = e
	}

	out := make([]Entry, 0, len(byDate))
	for _, e := range byDate {
		out = append(out, e)
	}
	// YYYY-MM-DD sorts lexically.
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Lookup returns the entry for exactly date, if any.
func Lookup(entries []Entry, date string) (Entry, bool) {
	for _, e := range entries {
		if e.Date == date {
			return e, true
		}
	}
	return Entry{}, false
}

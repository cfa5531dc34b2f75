package plan

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hray3182/HabitBell/internal/calendar"
)

// DefaultMaxDayOffset bounds day ranges when the caller passes no limit.
const DefaultMaxDayOffset = 120

var (
	// D3, D1-5, D1-D5, d2 – d4
	dayRangeRe = regexp.MustCompile(`(?i)\bD(\d{1,4})(?:\s*[-–~]\s*D?(\d{1,4}))?\b`)
	// The minutes may be followed directly by a suffix such as "am", but not
	// by a third digit.
	clockInRe  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)(?:[^0-9]|$)`)
)

// Derive scans description line by line for day-range annotations such as
// "D1-D3 07:30 warmup" and expands them into one entry per day, counting day 1
// as start. Lines without a day range followed by a clock time are skipped.
// The result is normalized and may be empty.
func Derive(description string, start calendar.Date, maxDayOffset int) []Entry {
	if maxDayOffset <= 0 {
		maxDayOffset = DefaultMaxDayOffset
	}

	var entries []Entry
	for _, line := range strings.Split(description, "\n") {
		loc := dayRangeRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		from, _ := strconv.Atoi(line[loc[2]:loc[3]])
		to := from
		if loc[4] != -1 {
			to, _ = strconv.Atoi(line[loc[4]:loc[5]])
		}
		if from < 1 || to < from || from > maxDayOffset {
			continue
		}
		if to > maxDayOffset {
			to = maxDayOffset
		}

		clock := clockInRe.FindStringSubmatch(line[loc[1]:])
		if clock == nil {
			continue
		}
		hour, _ := strconv.Atoi(clock[1])
		minute, _ := strconv.Atoi(clock[2])
		reminderTime := calendar.FormatClock(hour, minute)

		label := fmt.Sprintf("D%d", from)
		if to != from {
			label = fmt.Sprintf("D%d-%d", from, to)
		}

		for day := from; day <= to; day++ {
			entries = append(entries, Entry{
				Date:         start.AddDays(day - 1).String(),
				ReminderTime: reminderTime,
				MinStartTime: reminderTime,
				PhaseLabel:   label,
			})
		}
	}
	return Normalize(entries)
}

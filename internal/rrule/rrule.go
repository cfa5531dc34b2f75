// Package rrule expresses a habit's weekday rule as an RFC 5545 RRULE, for
// display and for interoperability with calendar tooling.
package rrule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hray3182/HabitBell/internal/calendar"
	"github.com/hray3182/HabitBell/internal/recurrence"
	"github.com/teambition/rrule-go"
)

var weekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Options converts the weekday part of rule into RRULE options starting on
// dtstart. Plan overrides have no RRULE equivalent and are ignored.
func Options(rule recurrence.Rule, dtstart calendar.Date) (*rrule.ROption, error) {
	hour, minute, err := calendar.ParseClock(rule.BaseTime)
	if err != nil {
		return nil, fmt.Errorf("rule has no base time: %w", err)
	}
	loc, err := calendar.LoadLocation(rule.Timezone)
	if err != nil {
		return nil, err
	}

	days, restricted := byDay(rule.ScheduleDays)
	if restricted && len(days) == 0 {
		return nil, fmt.Errorf("rule has no valid schedule days: %v", rule.ScheduleDays)
	}

	opt := &rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: 1,
		Byhour:   []int{hour},
		Byminute: []int{minute},
		Bysecond: []int{0},
		Dtstart:  time.Date(dtstart.Year, dtstart.Month, dtstart.Day, hour, minute, 0, 0, loc),
	}
	if restricted {
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = days
	}
	return opt, nil
}

// Build returns the RRULE iterator for the weekday part of rule.
func Build(rule recurrence.Rule, dtstart calendar.Date) (*rrule.RRule, error) {
	opt, err := Options(rule, dtstart)
	if err != nil {
		return nil, err
	}
	return rrule.NewRRule(*opt)
}

// String renders the weekday part of rule, e.g.
// "FREQ=WEEKLY;BYDAY=MO,WE,FR;BYHOUR=8;BYMINUTE=0". It returns "" when the
// rule has no base time or lists schedule days none of which are valid.
func String(rule recurrence.Rule) string {
	hour, minute, err := calendar.ParseClock(rule.BaseTime)
	if err != nil {
		return ""
	}
	days, restricted := byDay(rule.ScheduleDays)
	if restricted && len(days) == 0 {
		return ""
	}

	parts := []string{"FREQ=DAILY"}
	if restricted {
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = d.String()
		}
		parts = []string{"FREQ=WEEKLY", "BYDAY=" + strings.Join(names, ",")}
	}
	parts = append(parts, fmt.Sprintf("BYHOUR=%d", hour), fmt.Sprintf("BYMINUTE=%d", minute))
	return strings.Join(parts, ";")
}

// byDay maps weekday keys to RRULE weekdays in Monday-first order, dropping
// unknown keys and duplicates. restricted reports whether any keys were given
// at all, so a list of only unknown keys means "never" rather than "daily".
func byDay(keys []string) (out []rrule.Weekday, restricted bool) {
	seen := make(map[time.Weekday]bool, len(keys))
	for _, k := range keys {
		if w, ok := calendar.ParseWeekday(k); ok {
			seen[w] = true
		}
	}
	for _, w := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		if seen[w] {
			out = append(out, weekdays[w])
		}
	}
	return out, len(keys) > 0
}

// HumanReadableChinese returns a Chinese description of an RRULE produced by
// String, e.g. "每週一、三、五 08:00".
func HumanReadableChinese(ruleStr string) string {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	info := make(map[string]string)
	for _, p := range strings.Split(ruleStr, ";") {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) == 2 {
			info[kv[0]] = kv[1]
		}
	}

	var result strings.Builder
	switch info["FREQ"] {
	case "DAILY":
		result.WriteString("每天")
	case "WEEKLY":
		dayMap := map[string]string{
			"MO": "一", "TU": "二", "WE": "三", "TH": "四",
			"FR": "五", "SA": "六", "SU": "日",
		}
		var chDays []string
		for _, d := range strings.Split(info["BYDAY"], ",") {
			if ch, ok := dayMap[d]; ok {
				chDays = append(chDays, ch)
			}
		}
		if len(chDays) == 7 {
			result.WriteString("每天")
		} else {
			result.WriteString("每週" + strings.Join(chDays, "、"))
		}
	default:
		return ""
	}

	hour, errH := strconv.Atoi(info["BYHOUR"])
	minute, errM := strconv.Atoi(info["BYMINUTE"])
	if errH == nil && errM == nil {
		result.WriteString(" " + calendar.FormatClock(hour, minute))
	}
	return result.String()
}

// Describe summarises when a habit reminds, for notification footers.
func Describe(rule recurrence.Rule) string {
	desc := HumanReadableChinese(String(rule))
	if n := len(rule.Plan); n > 0 {
		if desc == "" {
			return fmt.Sprintf("依計畫提醒（共 %d 天）", n)
		}
		return fmt.Sprintf("%s，另有 %d 天依計畫調整", desc, n)
	}
	return desc
}

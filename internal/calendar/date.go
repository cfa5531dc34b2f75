package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockRe = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
)

// Date is a civil calendar date with no timezone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a strict YYYY-MM-DD string and rejects impossible dates
// such as 2024-02-30.
func ParseDate(s string) (Date, error) {
	if !dateRe.MatchString(s) {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the date part of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.midnight().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.midnight().Weekday()
}

func (d Date) Before(other Date) bool {
	return d.midnight().Before(other.midnight())
}

// DaysUntil returns the number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.midnight().Sub(d.midnight()).Hours() / 24)
}

// ParseClock parses a 24h H:MM or HH:MM time of day.
func ParseClock(s string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

// FormatClock renders a time of day as HH:MM.
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// NormalizeClock returns s in canonical HH:MM form, or false if s is not a
// valid 24h time.
func NormalizeClock(s string) (string, bool) {
	hour, minute, err := ParseClock(s)
	if err != nil {
		return "", false
	}
	return FormatClock(hour, minute), true
}

var weekdayKeys = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// WeekdayKey returns the three-letter key (sun..sat) for w.
func WeekdayKey(w time.Weekday) string {
	return weekdayKeys[w]
}

// ParseWeekday accepts sun..sat as well as full English names, in any case.
func ParseWeekday(key string) (time.Weekday, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	if len(key) < 3 {
		return 0, false
	}
	for i, k := range weekdayKeys {
		if key == k || key == strings.ToLower(time.Weekday(i).String()) {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

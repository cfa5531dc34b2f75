// Package calendar projects instants into civil time in a named timezone and
// back, and provides the civil date and clock helpers the scheduler works in.
package calendar

import (
	"fmt"
	"sync"
	"time"
)

// Civil holds wall-clock fields as observed in a particular timezone.
type Civil struct {
	Year    int
	Month   time.Month
	Day     int
	Weekday time.Weekday
	Hour    int
	Minute  int
	Second  int
}

// Date returns the civil date part.
func (c Civil) Date() Date {
	return Date{Year: c.Year, Month: c.Month, Day: c.Day}
}

// Clock returns the wall time as HH:MM.
func (c Civil) Clock() string {
	return FormatClock(c.Hour, c.Minute)
}

var locations sync.Map // name -> *time.Location

// LoadLocation resolves an IANA zone name. Results are cached because
// time.LoadLocation reads the zone database on every call.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("timezone is empty")
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	locations.Store(name, loc)
	return loc, nil
}

// Project converts an instant into the civil fields observed in tz.
func Project(t time.Time, tz string) (Civil, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Civil{}, err
	}
	lt := t.In(loc)
	return Civil{
		Year:    lt.Year(),
		Month:   lt.Month(),
		Day:     lt.Day(),
		Weekday: lt.Weekday(),
		Hour:    lt.Hour(),
		Minute:  lt.Minute(),
		Second:  lt.Second(),
	}, nil
}

// ToInstant returns the UTC instant at which the wall clock in tz reads the
// given date and time.
//
// time.Date resolves the offset in two steps: it treats the wall time as UTC,
// looks up the offset in effect there, and looks again if subtracting that
// offset leaves the zone period it came from. Which reading wins for a gap or
// overlap wall time therefore depends on the sign of the zone's UTC offset:
//
//   - east of UTC (Europe/Warsaw): a gap time is read with the standard
//     offset, so 02:30 comes out as 03:30 summer time; an overlap time takes
//     the second (standard time) reading.
//   - west of UTC (America/New_York): a gap time is read with the summer
//     offset, so 02:30 comes out as 01:30 standard time; an overlap time
//     takes the first (summer time) reading.
func ToInstant(tz string, year int, month time.Month, day, hour, minute int) (time.Time, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc).UTC(), nil
}

// At returns the UTC instant of clock (HH:MM) on date d in tz.
func At(tz string, d Date, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return ToInstant(tz, d.Year, d.Month, d.Day, hour, minute)
}

// Today returns the civil date of now in tz.
func Today(now time.Time, tz string) (Date, error) {
	c, err := Project(now, tz)
	if err != nil {
		return Date{}, err
	}
	return c.Date(), nil
}

package recurrence

import (
	"time"

	"github.com/hray3182/HabitBell/internal/calendar"
	"github.com/hray3182/HabitBell/internal/plan"
)

// DefaultLookaheadDays bounds the forward search.
const DefaultLookaheadDays = 120

// boundaryGuard keeps a fire that lands exactly on now from re-arming itself.
const boundaryGuard = time.Second

// ScheduledFire is the next reminder instant for a rule.
type ScheduledFire struct {
	At           time.Time // UTC
	Date         calendar.Date
	ReminderTime string
	Source       Source
	Entry        *plan.Entry
}

// FindNext scans forward from the civil date of now in the rule's timezone and
// returns the first reminder strictly later than now plus one second. It
// returns nil when nothing is scheduled within lookaheadDays, which callers
// must treat as "stop re-arming".
func FindNext(rule Rule, now time.Time, lookaheadDays int) (*ScheduledFire, error) {
	if !rule.Resolvable() {
		return nil, nil
	}
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultLookaheadDays
	}

	today, err := calendar.Today(now, rule.Timezone)
	if err != nil {
		return nil, err
	}

	c := compile(rule)
	threshold := now.Add(boundaryGuard)
	for i := 0; i <= lookaheadDays; i++ {
		date := today.AddDays(i)
		occ, ok := c.resolve(date)
		if !ok {
			continue
		}
		at, err := calendar.At(rule.Timezone, date, occ.ReminderTime)
		if err != nil {
			return nil, err
		}
		if at.After(threshold) {
			return &ScheduledFire{
				At:           at,
				Date:         date,
				ReminderTime: occ.ReminderTime,
				Source:       occ.Source,
				Entry:        occ.Entry,
			}, nil
		}
	}
	return nil, nil
}

// Match is an occurrence whose instant lies within tolerance of now.
type Match struct {
	Date         calendar.Date
	At           time.Time
	ReminderTime string
	Source       Source
	Entry        *plan.Entry
	Drift        time.Duration // now - At
}

// MatchNow looks for an occurrence scheduled within tolerance of now. Today's
// date is checked first; the neighbouring dates are checked too so a fire for
// 23:59 that arrives just after midnight (or one for 00:00 that arrives just
// before) still matches its own date.
func MatchNow(rule Rule, now time.Time, tolerance time.Duration) (*Match, error) {
	if !rule.Resolvable() {
		return nil, nil
	}
	today, err := calendar.Today(now, rule.Timezone)
	if err != nil {
		return nil, err
	}

	c := compile(rule)
	for _, offset := range []int{0, -1, 1} {
		date := today.AddDays(offset)
		occ, ok := c.resolve(date)
		if !ok {
			continue
		}
		at, err := calendar.At(rule.Timezone, date, occ.ReminderTime)
		if err != nil {
			return nil, err
		}
		drift := now.Sub(at)
		if drift < 0 {
			if -drift > tolerance {
				continue
			}
		} else if drift > tolerance {
			continue
		}
		return &Match{
			Date:         date,
			At:           at,
			ReminderTime: occ.ReminderTime,
			Source:       occ.Source,
			Entry:        occ.Entry,
			Drift:        drift,
		}, nil
	}
	return nil, nil
}

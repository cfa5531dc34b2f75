// Package recurrence decides which dates a habit reminds on and finds the next
// reminder instant.
package recurrence

import (
	"time"

	"github.com/hray3182/HabitBell/internal/calendar"
	"github.com/hray3182/HabitBell/internal/plan"
)

// Source records where a resolved reminder time came from.
type Source string

const (
	SourcePlan Source = "plan"
	SourceBase Source = "base"
)

// Rule is the scheduling input for one habit.
type Rule struct {
	BaseTime     string       // HH:MM, optional
	ScheduleDays []string     // sun..sat; empty means every day
	Plan         []plan.Entry // per-date overrides
	Timezone     string       // IANA name of the owner
	Active       bool
}

// Resolvable reports whether the rule can ever produce an occurrence.
func (r Rule) Resolvable() bool {
	return r.Active && (r.BaseTime != "" || len(r.Plan) > 0)
}

// Occurrence is the reminder resolved for one date.
type Occurrence struct {
	ReminderTime string
	Source       Source
	Entry        *plan.Entry
}

// Resolve returns the reminder for date, if the rule schedules one. A plan
// entry for the date always wins over the weekday rule.
func Resolve(rule Rule, date calendar.Date) (Occurrence, bool) {
	if !rule.Active {
		return Occurrence{}, false
	}
	r := compile(rule)
	return r.resolve(date)
}

// compiled is a Rule with its plan normalized and schedule days parsed, so the
// forward search does not redo that work for every candidate date.
type compiled struct {
	plan     []plan.Entry
	baseTime string
	// restricted is set whenever the rule lists schedule days, even if none
	// of them parse; days then holds only the valid ones.
	restricted bool
	days       map[time.Weekday]bool
}

func compile(rule Rule) compiled {
	c := compiled{plan: plan.Normalize(rule.Plan), restricted: len(rule.ScheduleDays) > 0}
	if t, ok := calendar.NormalizeClock(rule.BaseTime); ok {
		c.baseTime = t
	}
	for _, key := range rule.ScheduleDays {
		if w, ok := calendar.ParseWeekday(key); ok {
			if c.days == nil {
				c.days = make(map[time.Weekday]bool, 7)
			}
			c.days[w] = true
		}
	}
	return c
}

func (c compiled) resolve(date calendar.Date) (Occurrence, bool) {
	if e, ok := plan.Lookup(c.plan, date.String()); ok {
		return Occurrence{ReminderTime: e.ReminderTime, Source: SourcePlan, Entry: &e}, true
	}
	if c.baseTime == "" {
		return Occurrence{}, false
	}
	if c.restricted && !c.days[date.Weekday()] {
		return Occurrence{}, false
	}
	return Occurrence{ReminderTime: c.baseTime, Source: SourceBase}, true
}

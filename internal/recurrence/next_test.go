package recurrence

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/hray3182/HabitBell/internal/plan"
)

func warsawRule() Rule {
	return Rule{
		BaseTime:     "08:00",
		ScheduleDays: []string{"mon", "wed", "fri"},
		Timezone:     "Europe/Warsaw",
		Active:       true,
	}
}

func TestFindNextTuesdayToWednesday(t *testing.T) {
	// Tuesday 2024-01-16 09:00 in Warsaw.
	now := time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)

	got, err := FindNext(warsawRule(), now, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a fire")
	}
	want := time.Date(2024, 1, 17, 7, 0, 0, 0, time.UTC)
	if !got.At.Equal(want) {
		t.Errorf("At = %v, want %v", got.At, want)
	}
	if got.Date.String() != "2024-01-17" || got.Source != SourceBase || got.ReminderTime != "08:00" {
		t.Errorf("unexpected fire %+v", got)
	}
}

func TestFindNextPlanOverride(t *testing.T) {
	rule := warsawRule()
	rule.Plan = []plan.Entry{{Date: "2024-01-19", ReminderTime: "18:30"}}

	// Thursday 2024-01-18 09:00 local: the next fire is the Friday override.
	now := time.Date(2024, 1, 18, 8, 0, 0, 0, time.UTC)
	got, err := FindNext(rule, now, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a fire")
	}
	want := time.Date(2024, 1, 19, 17, 30, 0, 0, time.UTC)
	if !got.At.Equal(want) {
		t.Errorf("At = %v, want %v", got.At, want)
	}
	if got.Source != SourcePlan || got.Entry == nil || got.ReminderTime != "18:30" {
		t.Errorf("unexpected fire %+v", got)
	}
}

func TestFindNextLaterToday(t *testing.T) {
	// Wednesday 07:00 local, reminder at 08:00 the same day.
	now := time.Date(2024, 1, 17, 6, 0, 0, 0, time.UTC)
	got, err := FindNext(warsawRule(), now, 0)
	if err != nil || got == nil {
		t.Fatalf("FindNext = %v, %v", got, err)
	}
	if got.Date.String() != "2024-01-17" {
		t.Errorf("Date = %s, want today", got.Date)
	}
}

func TestFindNextAlreadyPassedToday(t *testing.T) {
	// Wednesday 08:00:00.5 local: today's reminder is inside the boundary guard.
	now := time.Date(2024, 1, 17, 7, 0, 0, 500_000_000, time.UTC)
	got, err := FindNext(warsawRule(), now, 0)
	if err != nil || got == nil {
		t.Fatalf("FindNext = %v, %v", got, err)
	}
	if got.Date.String() != "2024-01-19" {
		t.Errorf("Date = %s, want Friday 2024-01-19", got.Date)
	}
}

func TestFindNextBoundaryGuard(t *testing.T) {
	at := time.Date(2024, 1, 17, 7, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		date string
	}{
		{"exactly one second before", at.Add(-time.Second), "2024-01-19"},
		{"just over one second before", at.Add(-time.Second - time.Millisecond), "2024-01-17"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := FindNext(warsawRule(), test.now, 0)
			if err != nil || got == nil {
				t.Fatalf("FindNext = %v, %v", got, err)
			}
			if got.Date.String() != test.date {
				t.Errorf("Date = %s, want %s", got.Date, test.date)
			}
		})
	}
}

func TestFindNextNeverReturnsPast(t *testing.T) {
	rules := []Rule{
		warsawRule(),
		{BaseTime: "23:59", Timezone: "Pacific/Kiritimati", Active: true},
		{BaseTime: "00:00", ScheduleDays: []string{"sun"}, Timezone: "America/New_York", Active: true},
		{BaseTime: "02:30", Timezone: "Europe/Warsaw", Active: true},
		{
			Plan:     []plan.Entry{{Date: "2024-03-31", ReminderTime: "02:30"}, {Date: "2024-04-02", ReminderTime: "12:00"}},
			Timezone: "Europe/Warsaw",
			Active:   true,
		},
	}
	start := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)
	for _, rule := range rules {
		for step := 0; step < 24*14; step++ {
			now := start.Add(time.Duration(step)*time.Hour + 17*time.Minute)
			got, err := FindNext(rule, now, 0)
			if err != nil {
				t.Fatalf("FindNext: %v", err)
			}
			if got != nil && !got.At.After(now) {
				t.Fatalf("FindNext(%+v, %v) = %v, not after now", rule, now, got.At)
			}
		}
	}
}

func TestFindNextAcrossDST(t *testing.T) {
	// Saturday before the spring-forward Sunday in New York.
	rule := Rule{BaseTime: "08:00", ScheduleDays: []string{"sun"}, Timezone: "America/New_York", Active: true}
	now := time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC)
	got, err := FindNext(rule, now, 0)
	if err != nil || got == nil {
		t.Fatalf("FindNext = %v, %v", got, err)
	}
	if want := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC); !got.At.Equal(want) {
		t.Errorf("At = %v, want %v (08:00 EDT)", got.At, want)
	}
}

func TestFindNextNone(t *testing.T) {
	now := time.Date(2024, 1, 16, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rule Rule
	}{
		{"no base time and no plan", Rule{Timezone: "UTC", Active: true}},
		{"inactive", Rule{BaseTime: "08:00", Timezone: "UTC"}},
		{"unknown weekday keys only", Rule{BaseTime: "08:00", ScheduleDays: []string{"someday"}, Timezone: "UTC", Active: true}},
		{"plan in the past", Rule{Plan: []plan.Entry{{Date: "2023-12-01", ReminderTime: "08:00"}}, Timezone: "UTC", Active: true}},
		{"plan beyond lookahead", Rule{Plan: []plan.Entry{{Date: "2025-01-01", ReminderTime: "08:00"}}, Timezone: "UTC", Active: true}},
		{"malformed base time", Rule{BaseTime: "8 o'clock", Timezone: "UTC", Active: true}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := FindNext(test.rule, now, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != nil {
				t.Errorf("FindNext = %+v, want nil", got)
			}
		})
	}
}

func TestFindNextLookahead(t *testing.T) {
	rule := Rule{Plan: []plan.Entry{{Date: "2024-01-26", ReminderTime: "08:00"}}, Timezone: "UTC", Active: true}
	now := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)

	if got, _ := FindNext(rule, now, 9); got != nil {
		t.Errorf("lookahead 9 found %v", got.At)
	}
	if got, _ := FindNext(rule, now, 10); got == nil {
		t.Error("lookahead 10 should reach 2024-01-26")
	}
}

func TestFindNextUnknownTimezone(t *testing.T) {
	rule := Rule{BaseTime: "08:00", Timezone: "Nowhere/City", Active: true}
	if _, err := FindNext(rule, time.Now(), 0); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestMatchNow(t *testing.T) {
	at := time.Date(2024, 1, 17, 7, 0, 0, 0, time.UTC) // Wednesday 08:00 Warsaw
	tests := []struct {
		name  string
		now   time.Time
		match bool
	}{
		{"on time", at, true},
		{"90 seconds late", at.Add(90 * time.Second), true},
		{"two minutes late", at.Add(2 * time.Minute), true},
		{"five minutes late", at.Add(5 * time.Minute), false},
		{"one minute early", at.Add(-time.Minute), true},
		{"a day early", at.Add(-24 * time.Hour), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := MatchNow(warsawRule(), test.now, 2*time.Minute)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (got != nil) != test.match {
				t.Fatalf("MatchNow = %+v, want match=%v", got, test.match)
			}
			if got != nil && got.Date.String() != "2024-01-17" {
				t.Errorf("Date = %s", got.Date)
			}
		})
	}
}

func TestMatchNowAcrossMidnight(t *testing.T) {
	rule := Rule{BaseTime: "23:59", ScheduleDays: []string{"wed"}, Timezone: "Europe/Warsaw", Active: true}
	// Wednesday 23:59 local is 22:59 UTC; the fire arrives at 00:00:30 Thursday local.
	now := time.Date(2024, 1, 17, 23, 0, 30, 0, time.UTC)
	got, err := MatchNow(rule, now, 2*time.Minute)
	if err != nil || got == nil {
		t.Fatalf("MatchNow = %v, %v", got, err)
	}
	if got.Date.String() != "2024-01-17" {
		t.Errorf("Date = %s, want Wednesday", got.Date)
	}
	if got.Drift != 90*time.Second {
		t.Errorf("Drift = %v, want 90s", got.Drift)
	}
}

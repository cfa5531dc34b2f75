package models

import (
	"time"

	"github.com/hray3182/HabitBell/internal/plan"
	"github.com/hray3182/HabitBell/internal/recurrence"
)

// Habit is a reminder-bearing entity owned by the CRUD layer. The engine only
// reads it, apart from storing a derived reminder plan.
type Habit struct {
	HabitID       int64        `json:"habit_id"`
	UserID        int64        `json:"user_id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	Active        bool         `json:"active"`
	BaseTime      string       `json:"base_time"`     // HH:MM, empty when unset
	ScheduleDays  []string     `json:"schedule_days"` // sun..sat, empty means every day
	ReminderPlan  []plan.Entry `json:"reminder_plan"`
	PlanStartDate string       `json:"plan_start_date"` // day 1 of a derived plan, YYYY-MM-DD
	Timezone      string       `json:"timezone"`        // owner's zone, joined from user_settings
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Rule returns the scheduling view of the habit.
func (h *Habit) Rule() recurrence.Rule {
	return recurrence.Rule{
		BaseTime:     h.BaseTime,
		ScheduleDays: h.ScheduleDays,
		Plan:         h.ReminderPlan,
		Timezone:     h.Timezone,
		Active:       h.Active,
	}
}

// HasPlan reports whether the habit carries any explicit per-date overrides.
func (h *Habit) HasPlan() bool {
	return len(h.ReminderPlan) > 0
}

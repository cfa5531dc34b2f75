package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hray3182/HabitBell/internal/calendar"
	"github.com/hray3182/HabitBell/internal/models"
	"github.com/hray3182/HabitBell/internal/plan"
	"github.com/hray3182/HabitBell/internal/recurrence"
)

// ErrHabitNotFound is returned by Service operations for unknown habit ids.
var ErrHabitNotFound = errors.New("habit not found")

// PlanWriter stores a derived reminder plan on a habit.
type PlanWriter interface {
	SetReminderPlan(ctx context.Context, habitID int64, entries []plan.Entry) error
}

// PlanExtractor derives plan entries from free text when the D-notation
// parser finds none.
type PlanExtractor interface {
	ExtractPlan(ctx context.Context, description string, start calendar.Date) ([]plan.Entry, error)
}

// Service is the entry point for the CRUD layer's habit mutations.
type Service struct {
	engine    *Engine
	habits    HabitStore
	plans     PlanWriter
	extractor PlanExtractor
	maxOffset int
}

// NewService creates a Service. extractor may be nil.
func NewService(engine *Engine, habits HabitStore, plans PlanWriter, extractor PlanExtractor) *Service {
	return &Service{
		engine:    engine,
		habits:    habits,
		plans:     plans,
		extractor: extractor,
		maxOffset: plan.DefaultMaxDayOffset,
	}
}

// HabitChanged is called after a habit is created or updated. A habit with no
// plan gets one derived from its description, then the habit is re-armed.
// It returns the armed fire, or nil when nothing is upcoming.
func (s *Service) HabitChanged(ctx context.Context, habitID int64) (*recurrence.ScheduledFire, error) {
	habit, err := s.load(ctx, habitID)
	if err != nil {
		return nil, err
	}

	if !habit.HasPlan() && strings.TrimSpace(habit.Description) != "" {
		entries := s.derivePlan(ctx, habit)
		if len(entries) > 0 {
			if err := s.plans.SetReminderPlan(ctx, habit.HabitID, entries); err != nil {
				log.Printf("Failed to save reminder plan for habit %d: %v", habit.HabitID, err)
			} else {
				log.Printf("Derived %d plan entries for habit %d", len(entries), habit.HabitID)
			}
			habit.ReminderPlan = entries
		}
	}

	return s.engine.Arm(ctx, habit)
}

// HabitDeleted stops reminders for a deleted habit.
func (s *Service) HabitDeleted(ctx context.Context, habitID int64) error {
	return s.engine.Unarm(ctx, habitID)
}

// Preview returns the habit's next reminder without arming it.
func (s *Service) Preview(ctx context.Context, habitID int64) (*recurrence.ScheduledFire, error) {
	habit, err := s.load(ctx, habitID)
	if err != nil {
		return nil, err
	}
	return s.engine.Next(habit)
}

func (s *Service) load(ctx context.Context, habitID int64) (*models.Habit, error) {
	habit, err := s.habits.GetByID(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit == nil {
		return nil, fmt.Errorf("habit %d: %w", habitID, ErrHabitNotFound)
	}
	return habit, nil
}

func (s *Service) derivePlan(ctx context.Context, habit *models.Habit) []plan.Entry {
	start, err := planStart(habit)
	if err != nil {
		log.Printf("Failed to determine plan start for habit %d: %v", habit.HabitID, err)
		return nil
	}

	entries := plan.Derive(habit.Description, start, s.maxOffset)
	if len(entries) > 0 || s.extractor == nil {
		return entries
	}

	extracted, err := s.extractor.ExtractPlan(ctx, habit.Description, start)
	if err != nil {
		log.Printf("Failed to extract plan for habit %d: %v", habit.HabitID, err)
		return nil
	}
	return plan.Normalize(extracted)
}

// planStart is day 1 of a derived plan: the explicit start date when set,
// otherwise the habit's creation date in the owner's zone.
func planStart(habit *models.Habit) (calendar.Date, error) {
	if habit.PlanStartDate != "" {
		return calendar.ParseDate(habit.PlanStartDate)
	}
	return calendar.Today(habit.CreatedAt, habit.Timezone)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hray3182/HabitBell/internal/database"
	"github.com/hray3182/HabitBell/internal/models"
	"github.com/hray3182/HabitBell/internal/plan"
	"github.com/jackc/pgx/v5"
)

// HabitRepository reads habits on behalf of the reminder engine. Habit rows
// are written by the CRUD layer; only reminder_plan is written here.
type HabitRepository struct {
	db        *database.DB
	defaultTZ string
}

func NewHabitRepository(db *database.DB) *HabitRepository {
	return &HabitRepository{db: db, defaultTZ: models.DefaultTimezone}
}

// SetDefaultTimezone sets the zone used for owners without settings.
func (r *HabitRepository) SetDefaultTimezone(tz string) {
	if tz != "" {
		r.defaultTZ = tz
	}
}

const habitColumns = `h.habit_id, h.user_id, h.title, h.description, h.active, h.base_time,
	h.schedule_days, h.reminder_plan, h.plan_start_date, COALESCE(us.timezone, $1),
	h.created_at, h.updated_at`

// GetByID loads a habit together with its owner's timezone. A missing habit
// returns nil, nil.
func (r *HabitRepository) GetByID(ctx context.Context, habitID int64) (*models.Habit, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+habitColumns+`
		 FROM habits h LEFT JOIN user_settings us ON us.user_id = h.user_id
		 WHERE h.habit_id = $2`,
		r.defaultTZ, habitID,
	)
	habit, err := scanHabit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load habit %d: %w", habitID, err)
	}
	return habit, nil
}

// ListActive returns every active habit that has something to schedule.
func (r *HabitRepository) ListActive(ctx context.Context) ([]*models.Habit, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+habitColumns+`
		 FROM habits h LEFT JOIN user_settings us ON us.user_id = h.user_id
		 WHERE h.active = true AND (h.base_time IS NOT NULL OR jsonb_array_length(h.reminder_plan) > 0)
		 ORDER BY h.habit_id`,
		r.defaultTZ,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []*models.Habit
	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	return habits, rows.Err()
}

// SetReminderPlan stores a (derived) plan. The plan is normalized first so
// the column never holds duplicate or malformed rows.
func (r *HabitRepository) SetReminderPlan(ctx context.Context, habitID int64, entries []plan.Entry) error {
	data, err := json.Marshal(plan.Normalize(entries))
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx,
		`UPDATE habits SET reminder_plan = $1, updated_at = now() WHERE habit_id = $2`,
		data, habitID,
	)
	return err
}

func scanHabit(row pgx.Row) (*models.Habit, error) {
	habit := &models.Habit{}
	var (
		baseTime  *string
		planJSON  []byte
		startDate *time.Time
	)
	if err := row.Scan(&habit.HabitID, &habit.UserID, &habit.Title, &habit.Description, &habit.Active,
		&baseTime, &habit.ScheduleDays, &planJSON, &startDate, &habit.Timezone,
		&habit.CreatedAt, &habit.UpdatedAt); err != nil {
		return nil, err
	}
	if baseTime != nil {
		habit.BaseTime = *baseTime
	}
	if startDate != nil {
		habit.PlanStartDate = startDate.Format("2006-01-02")
	}
	if len(planJSON) > 0 {
		// A garbled column degrades to "no overrides" rather than failing the load.
		if err := json.Unmarshal(planJSON, &habit.ReminderPlan); err != nil {
			habit.ReminderPlan = nil
		}
	}
	return habit, nil
}

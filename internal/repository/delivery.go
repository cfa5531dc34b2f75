package repository

import (
	"context"

	"github.com/hray3182/HabitBell/internal/database"
)

type DeliveryRepository struct {
	db *database.DB
}

func NewDeliveryRepository(db *database.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// MarkDelivered claims the reminder instant (habit, date, time). It returns
// false when the instant was already claimed by an earlier fire.
func (r *DeliveryRepository) MarkDelivered(ctx context.Context, habitID int64, date, reminderTime string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO reminder_deliveries (habit_id, date, reminder_time) VALUES ($1, $2::text::date, $3)
		 ON CONFLICT DO NOTHING`,
		habitID, date, reminderTime,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

package repository

import (
	"context"

	"github.com/hray3182/HabitBell/internal/database"
)

type CompletionRepository struct {
	db *database.DB
}

func NewCompletionRepository(db *database.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Exists reports whether the habit is already done for date (YYYY-MM-DD).
func (r *CompletionRepository) Exists(ctx context.Context, habitID int64, date string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM habit_completions WHERE habit_id = $1 AND date = $2::text::date)`,
		habitID, date,
	).Scan(&exists)
	return exists, err
}

// Record marks the habit as done for date. Recording twice is a no-op.
func (r *CompletionRepository) Record(ctx context.Context, habitID int64, date string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO habit_completions (habit_id, date) VALUES ($1, $2::text::date)
		 ON CONFLICT (habit_id, date) DO NOTHING`,
		habitID, date,
	)
	return err
}

package repository

import (
	"context"
	"errors"

	"github.com/hray3182/HabitBell/internal/database"
	"github.com/hray3182/HabitBell/internal/models"
	"github.com/jackc/pgx/v5"
)

type UserSettingsRepository struct {
	db *database.DB
}

func NewUserSettingsRepository(db *database.DB) *UserSettingsRepository {
	return &UserSettingsRepository{db: db}
}

// GetByUserID retrieves user settings by user ID; nil when the user has none.
func (r *UserSettingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.UserSettings, error) {
	settings := &models.UserSettings{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, timezone, telegram_chat_id, notifications_enabled, updated_at
		 FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(&settings.UserID, &settings.Timezone, &settings.TelegramChatID,
		&settings.NotificationsEnabled, &settings.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// ResolveChannel returns where reminders for userID go, or nil if nowhere.
func (r *UserSettingsRepository) ResolveChannel(ctx context.Context, userID int64) (*models.Channel, error) {
	settings, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return settings.Channel(), nil
}

// LinkChat stores the Telegram chat reminders are delivered to.
func (r *UserSettingsRepository) LinkChat(ctx context.Context, userID, chatID int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO user_settings (user_id, telegram_chat_id) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET telegram_chat_id = EXCLUDED.telegram_chat_id, updated_at = now()`,
		userID, chatID,
	)
	return err
}

func (r *UserSettingsRepository) SetNotificationsEnabled(ctx context.Context, userID int64, enabled bool) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO user_settings (user_id, notifications_enabled) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET notifications_enabled = EXCLUDED.notifications_enabled, updated_at = now()`,
		userID, enabled,
	)
	return err
}

package models

import "time"

// DefaultTimezone is used for owners who never picked one.
const DefaultTimezone = "Asia/Taipei"

// UserSettings holds the per-owner fields the reminder engine needs: where to
// deliver and which timezone the owner lives in.
type UserSettings struct {
	UserID               int64     `json:"user_id"`
	Timezone             string    `json:"timezone"`
	TelegramChatID       *int64    `json:"telegram_chat_id"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// NewDefaultUserSettings creates settings with default values
func NewDefaultUserSettings(userID int64) *UserSettings {
	return &UserSettings{
		UserID:               userID,
		Timezone:             DefaultTimezone,
		NotificationsEnabled: true,
		UpdatedAt:            time.Now(),
	}
}

// Channel is a resolved delivery target for one owner.
type Channel struct {
	UserID int64
	ChatID int64
}

// Channel returns the delivery target, or nil when the owner has no chat
// linked or has muted notifications.
func (s *UserSettings) Channel() *Channel {
	if s == nil || !s.NotificationsEnabled || s.TelegramChatID == nil {
		return nil
	}
	return &Channel{UserID: s.UserID, ChatID: *s.TelegramChatID}
}

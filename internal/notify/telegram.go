// Package notify delivers reminders to Telegram chats.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/HabitBell/internal/format"
	"github.com/hray3182/HabitBell/internal/models"
)

// CompletionAction prefixes the callback data of the "done" button.
const CompletionAction = "habit_done"

// MessageSender is the part of *tgbotapi.BotAPI the sender needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender sends reminders as chat messages with a completion button.
type TelegramSender struct {
	api MessageSender
}

func NewTelegramSender(api MessageSender) *TelegramSender {
	return &TelegramSender{api: api}
}

// Send delivers n to the channel's chat.
func (s *TelegramSender) Send(ctx context.Context, ch *models.Channel, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parsed := format.ParseMarkdown(ReminderText(n))
	msg := tgbotapi.NewMessage(ch.ChatID, parsed.Text)
	msg.Entities = parsed.Entities
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ 完成", CompletionData(n.HabitID, n.Date)),
		),
	)

	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder to chat %d: %w", ch.ChatID, err)
	}
	return nil
}

// ReminderText renders a notification with the markup format.ParseMarkdown
// understands.
func ReminderText(n *models.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ **%s**\n", n.Title)
	fmt.Fprintf(&b, "時間: `%s %s`", n.Date, n.ReminderTime)
	if n.PhaseLabel != "" {
		fmt.Fprintf(&b, "\n階段: %s", n.PhaseLabel)
	}
	if n.MinStartTime != "" && n.MinStartTime != n.ReminderTime {
		fmt.Fprintf(&b, "\n最早開始: `%s`", n.MinStartTime)
	}
	if n.Schedule != "" {
		fmt.Fprintf(&b, "\n重複: %s", n.Schedule)
	}
	return b.String()
}

// CompletionData is the callback data for marking habitID done on date.
func CompletionData(habitID int64, date string) string {
	return fmt.Sprintf("%s:%d:%s", CompletionAction, habitID, date)
}

// ParseCompletionData reverses CompletionData.
func ParseCompletionData(data string) (habitID int64, date string, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != CompletionAction {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, parts[2], true
}

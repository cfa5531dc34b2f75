package handlers

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/HabitBell/internal/calendar"
	"github.com/hray3182/HabitBell/internal/notify"
)

// HandleCallbackQuery handles the buttons attached to reminders.
func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	habitID, date, ok := notify.ParseCompletionData(callback.Data)
	if !ok {
		h.answerCallback(callback.ID, "")
		return
	}
	if _, err := calendar.ParseDate(date); err != nil {
		h.answerCallback(callback.ID, "")
		return
	}

	habit, err := h.repos.Habits.GetByID(ctx, habitID)
	if err != nil {
		log.Printf("Failed to load habit %d: %v", habitID, err)
		h.answerCallbackWithAlert(callback.ID, "暫時無法記錄，請稍後再試")
		return
	}
	if habit == nil {
		h.answerCallbackWithAlert(callback.ID, "這個習慣已經不存在")
		return
	}

	// Verify the callback is from the habit's owner
	if callback.From.ID != habit.UserID {
		h.answerCallbackWithAlert(callback.ID, "這不是你的操作")
		return
	}

	if err := h.repos.Completions.Record(ctx, habitID, date); err != nil {
		log.Printf("Failed to record completion for habit %d on %s: %v", habitID, date, err)
		h.answerCallbackWithAlert(callback.ID, "暫時無法記錄，請稍後再試")
		return
	}
	h.answerCallback(callback.ID, "✅ 已完成")

	if callback.Message != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(
			callback.Message.Chat.ID,
			callback.Message.MessageID,
			tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}},
		)
		if _, err := h.api.Send(edit); err != nil {
			log.Printf("Failed to remove reminder buttons: %v", err)
		}
	}
}

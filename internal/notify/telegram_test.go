package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/HabitBell/internal/models"
)

type fakeAPI struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramSenderSend(t *testing.T) {
	api := &fakeAPI{}
	s := NewTelegramSender(api)
	n := &models.Notification{
		HabitID:      12,
		Title:        "Stretch",
		Date:         "2024-01-17",
		ReminderTime: "07:30",
		MinStartTime: "07:30",
		PhaseLabel:   "D1-3",
		Schedule:     "每天 08:00",
	}

	if err := s.Send(context.Background(), &models.Channel{ChatID: 99}, n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(api.sent))
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("sent %T, want MessageConfig", api.sent[0])
	}
	if msg.ChatID != 99 {
		t.Errorf("ChatID = %d", msg.ChatID)
	}
	want := "⏰ Stretch\n時間: 2024-01-17 07:30\n階段: D1-3\n重複: 每天 08:00"
	if msg.Text != want {
		t.Errorf("Text = %q, want %q", msg.Text, want)
	}
	if len(msg.Entities) != 2 || msg.Entities[0].Type != "bold" || msg.Entities[1].Type != "code" {
		t.Errorf("Entities = %+v", msg.Entities)
	}

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 1 {
		t.Fatalf("ReplyMarkup = %+v", msg.ReplyMarkup)
	}
	if data := kb.InlineKeyboard[0][0].CallbackData; data == nil || *data != "habit_done:12:2024-01-17" {
		t.Errorf("CallbackData = %v", data)
	}
}

func TestTelegramSenderError(t *testing.T) {
	api := &fakeAPI{err: errors.New("bot was blocked by the user")}
	err := NewTelegramSender(api).Send(context.Background(), &models.Channel{ChatID: 1}, &models.Notification{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Errorf("err = %v", err)
	}
}

func TestReminderTextShowsEarliestStart(t *testing.T) {
	got := ReminderText(&models.Notification{Title: "Run", Date: "2024-01-17", ReminderTime: "07:30", MinStartTime: "07:00"})
	if !strings.Contains(got, "最早開始: `07:00`") {
		t.Errorf("ReminderText = %q", got)
	}
}

func TestParseCompletionData(t *testing.T) {
	tests := []struct {
		in   string
		id   int64
		date string
		ok   bool
	}{
		{CompletionData(5, "2024-01-17"), 5, "2024-01-17", true},
		{"habit_done:0:2024-01-17", 0, "", false},
		{"habit_done:x:2024-01-17", 0, "", false},
		{"confirm:5", 0, "", false},
		{"habit_done:5", 0, "", false},
	}
	for _, test := range tests {
		id, date, ok := ParseCompletionData(test.in)
		if id != test.id || date != test.date || ok != test.ok {
			t.Errorf("ParseCompletionData(%q) = %d, %q, %v", test.in, id, date, ok)
		}
	}
}

package handlers

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/HabitBell/internal/format"
	"github.com/hray3182/HabitBell/internal/models"
)

// API is the part of *tgbotapi.BotAPI the handlers use.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type SettingsStore interface {
	GetByUserID(ctx context.Context, userID int64) (*models.UserSettings, error)
	LinkChat(ctx context.Context, userID, chatID int64) error
	SetNotificationsEnabled(ctx context.Context, userID int64, enabled bool) error
}

type HabitStore interface {
	GetByID(ctx context.Context, habitID int64) (*models.Habit, error)
}

type CompletionStore interface {
	Record(ctx context.Context, habitID int64, date string) error
}

type Repositories struct {
	Settings    SettingsStore
	Habits      HabitStore
	Completions CompletionStore
}

type Handlers struct {
	api   API
	repos *Repositories
}

func New(api API, repos *Repositories) *Handlers {
	return &Handlers{
		api:   api,
		repos: repos,
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "mute":
		h.handleMute(ctx, msg, false)
	case "unmute":
		h.handleMute(ctx, msg, true)
	case "status":
		h.handleStatus(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "未知指令，請使用 /help 查看可用指令")
	}
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if err := h.repos.Settings.LinkChat(ctx, msg.From.ID, msg.Chat.ID); err != nil {
		log.Printf("Failed to link chat for user %d: %v", msg.From.ID, err)
		h.sendMessage(msg.Chat.ID, "無法綁定此聊天室，請稍後再試")
		return
	}

	text := fmt.Sprintf(`👋 你好 **%s**！

我是 HabitBell，會在你設定的時間提醒你養成習慣。
提醒會送到這個聊天室，按下「✅ 完成」當天就不會再提醒。

使用 /help 查看所有指令`, msg.From.FirstName)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	text := `📖 **指令列表**

/start - 將提醒綁定到這個聊天室
/status - 查看提醒設定
/mute - 暫停所有提醒
/unmute - 恢復提醒`
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleMute(ctx context.Context, msg *tgbotapi.Message, enabled bool) {
	if err := h.repos.Settings.SetNotificationsEnabled(ctx, msg.From.ID, enabled); err != nil {
		log.Printf("Failed to update notifications for user %d: %v", msg.From.ID, err)
		h.sendMessage(msg.Chat.ID, "無法更新設定，請稍後再試")
		return
	}
	if enabled {
		h.sendMessage(msg.Chat.ID, "🔔 已恢復提醒")
	} else {
		h.sendMessage(msg.Chat.ID, "🔕 已暫停提醒")
	}
}

func (h *Handlers) handleStatus(ctx context.Context, msg *tgbotapi.Message) {
	settings, err := h.repos.Settings.GetByUserID(ctx, msg.From.ID)
	if err != nil {
		log.Printf("Failed to get user settings: %v", err)
		h.sendMessage(msg.Chat.ID, "無法取得設定，請稍後再試")
		return
	}
	if settings == nil {
		settings = models.NewDefaultUserSettings(msg.From.ID)
	}

	state := "開啟"
	if !settings.NotificationsEnabled {
		state = "暫停"
	}
	chat := "未綁定"
	if settings.TelegramChatID != nil {
		chat = "已綁定"
	}
	text := fmt.Sprintf("⚙️ **提醒設定**\n\n時區: `%s`\n提醒: %s\n聊天室: %s", settings.Timezone, state, chat)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) answerCallback(callbackID, text string) {
	answer := tgbotapi.NewCallback(callbackID, text)
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
}

func (h *Handlers) answerCallbackWithAlert(callbackID string, text string) {
	answer := tgbotapi.NewCallbackWithAlert(callbackID, text)
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback with alert: %v", err)
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

package models

import "testing"

func TestUserSettingsChannel(t *testing.T) {
	chatID := int64(4242)
	tests := []struct {
		name     string
		settings *UserSettings
		want     *Channel
	}{
		{"nil settings", nil, nil},
		{"no chat linked", &UserSettings{UserID: 1, NotificationsEnabled: true}, nil},
		{"muted", &UserSettings{UserID: 1, TelegramChatID: &chatID}, nil},
		{"linked", &UserSettings{UserID: 1, TelegramChatID: &chatID, NotificationsEnabled: true}, &Channel{UserID: 1, ChatID: 4242}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := test.settings.Channel()
			if (got == nil) != (test.want == nil) || (got != nil && *got != *test.want) {
				t.Errorf("Channel() = %+v, want %+v", got, test.want)
			}
		})
	}
}

func TestHabitRule(t *testing.T) {
	h := &Habit{BaseTime: "08:00", ScheduleDays: []string{"mon"}, Timezone: "Europe/Warsaw", Active: true}
	rule := h.Rule()
	if rule.BaseTime != "08:00" || rule.Timezone != "Europe/Warsaw" || !rule.Active || len(rule.ScheduleDays) != 1 {
		t.Errorf("Rule() = %+v", rule)
	}
	if h.HasPlan() {
		t.Error("HasPlan() = true for a habit without plan")
	}
}

// Package ai extracts reminder plans from free-form habit descriptions with
// an OpenAI-compatible chat model.
package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hray3182/HabitBell/internal/calendar"
	"github.com/hray3182/HabitBell/internal/plan"
	"github.com/sashabaranov/go-openai"
)

type Client struct {
	client    *openai.Client
	model     string
	maxOffset int
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxOffset: plan.DefaultMaxDayOffset,
	}
}

const systemPrompt = `你是 HabitBell 的習慣計畫助理，負責從習慣描述中找出「第幾天、幾點提醒」的安排。

規則：
1. day 從 1 開始，第 1 天就是習慣開始的那天。
2. reminder_time 使用 24 小時制 HH:MM。
3. 描述裡的區間（例如「第一週每天 7:30」）要展開成每一天各一筆。
4. phase_label 是這一段的簡短名稱，例如「第一週」；沒有就留空字串。
5. 描述沒有明確的天數與時間時，回傳空的 entries，不要自行猜測。`

// JSON Schema for structured output
var planSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"entries": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"day": {"type": "integer", "description": "Day number, 1 is the start date"},
					"reminder_time": {"type": "string", "description": "HH:MM, 24-hour clock"},
					"phase_label": {"type": "string", "description": "Short phase name or empty"}
				},
				"required": ["day", "reminder_time", "phase_label"],
				"additionalProperties": false
			}
		}
	},
	"required": ["entries"],
	"additionalProperties": false
}`)

type planResponse struct {
	Entries []struct {
		Day          int    `json:"day"`
		ReminderTime string `json:"reminder_time"`
		PhaseLabel   string `json:"phase_label"`
	} `json:"entries"`
}

// ExtractPlan asks the model for a day-numbered plan and maps it onto dates
// counted from start. Days outside 1..DefaultMaxDayOffset are dropped. Entries
// are returned as the model produced them; callers normalize.
func (c *Client) ExtractPlan(ctx context.Context, description string, start calendar.Date) ([]plan.Entry, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: description,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "reminder_plan",
				Schema: planSchema,
				Strict: true,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call AI API: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	entries := make([]plan.Entry, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		if e.Day < 1 || e.Day > c.maxOffset {
			continue
		}
		entries = append(entries, plan.Entry{
			Date:         start.AddDays(e.Day - 1).String(),
			ReminderTime: e.ReminderTime,
			MinStartTime: e.ReminderTime,
			PhaseLabel:   e.PhaseLabel,
		})
	}
	return entries, nil
}

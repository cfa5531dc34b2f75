package models

// Notification is the reminder handed to a Sender. It carries what a
// transport needs to render the message and a completion action.
type Notification struct {
	HabitID      int64  `json:"habit_id"`
	UserID       int64  `json:"user_id"`
	Title        string `json:"title"`
	Date         string `json:"date"`          // civil date in the owner's zone, YYYY-MM-DD
	ReminderTime string `json:"reminder_time"` // HH:MM
	PhaseLabel   string `json:"phase_label,omitempty"`
	MinStartTime string `json:"min_start_time,omitempty"`
	Schedule     string `json:"schedule,omitempty"` // human-readable rule summary
}

package models

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
)

// Job is a durable delayed unit of work. At most one pending job exists per
// DedupeKey.
type Job struct {
	ID          string          `json:"id"`
	Handler     string          `json:"handler"`
	DedupeKey   string          `json:"dedupe_key"`
	Payload     json.RawMessage `json:"payload"`
	RunAt       time.Time       `json:"run_at"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	LockedUntil *time.Time      `json:"locked_until"`
	LastError   string          `json:"last_error"`
	CreatedAt   time.Time       `json:"created_at"`
}

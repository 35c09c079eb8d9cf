package model

import "time"

// RunSummary is a row of the run history
type RunSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RunDetail is a run together with the settings it was started with
type RunDetail struct {
	RunSummary
	Spec RunSpec `json:"spec"`
}

// StageProgress records one attempt of one stage
type StageProgress struct {
	RunID     string     `json:"run_id"`
	Stage     string     `json:"stage"`
	Status    string     `json:"status"` // "started", "completed", "failed"
	Attempt   int        `json:"attempt"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Records   int        `json:"records"`
}

// ErrorDetail is an error persisted against a run
type ErrorDetail struct {
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is a pipeline log line persisted against a run
type LogEntry struct {
	Stage     string                 `json:"stage"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

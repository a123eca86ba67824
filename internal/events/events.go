// Package events carries the engine's progress stream. Emission is
// fire-and-forget: the engine never blocks or fails because of a slow or
// absent listener.
package events

import "time"

type Type string

const (
	RunStarted     Type = "run_started"
	RunFinished    Type = "run_finished"
	LevelStarted   Type = "level_started"
	LevelCompleted Type = "level_completed"
	TaskStarted    Type = "task_started"
	TaskAttempt    Type = "task_attempt"
	TaskCompleted  Type = "task_completed"
	TaskFailed     Type = "task_failed"
	TaskSkipped    Type = "task_skipped"
	QualityFailed  Type = "quality_failed"
)

// Event is one entry in a run's ordered progress stream.
type Event struct {
	Type      Type           `json:"type"`
	RunID     string         `json:"run_id"`
	TaskID    string         `json:"task_id,omitempty"`
	Level     int            `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Sink consumes events. Implementations must not block.
type Sink interface {
	Consume(Event)
}

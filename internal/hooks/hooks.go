// Package hooks notifies external systems about task lifecycle events.
// Hook failures are reported to the caller but never change task state.
package hooks

import (
	"context"
	"time"
)

// EventType represents the type of lifecycle event
type EventType string

const (
	EventTaskClaimed   EventType = "task_claimed"
	EventPlanCreated   EventType = "plan_created"
	EventPlanRejected  EventType = "plan_rejected"
	EventJobCompleted  EventType = "job_completed"
	EventJobFailed     EventType = "job_failed"
	EventJobSkipped    EventType = "job_skipped"
	EventTaskCompleted EventType = "task_completed"
	EventTaskFailed    EventType = "task_failed"
)

// Event represents a lifecycle event that can trigger hooks
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TaskID    string         `json:"task_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates a new event
func NewEvent(eventType EventType, taskID string, data map[string]any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TaskID:    taskID,
		Data:      data,
	}
}

// GetString gets a string value from event data
func (e *Event) GetString(key string) string {
	if s, ok := e.Data[key].(string); ok {
		return s
	}
	return ""
}

// Hook is the interface that all hooks must implement
type Hook interface {
	Name() string
	EventTypes() []EventType
	Execute(ctx context.Context, event *Event) error
}

// Config describes one hook in the configuration file.
type Config struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Events  []EventType    `yaml:"events"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config"`
	Timeout time.Duration  `yaml:"timeout"`
}

// Result contains the outcome of one hook execution
type Result struct {
	HookName  string
	EventType EventType
	Err       error
	Duration  time.Duration
}

// Factory creates hooks from configuration
type Factory func(cfg *Config) (Hook, error)

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// Notifier is what the runner depends on.
type Notifier interface {
	Trigger(ctx context.Context, event *Event) []Result
}

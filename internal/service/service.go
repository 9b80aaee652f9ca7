// Package service implements the task management operations shared by the
// HTTP API and the local CLI.
package service

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/log"
	"github.com/felixgeelhaar/jacinta/internal/store"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// CreateRequest is the input of TaskService.Create.
type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
}

// TaskService manages tasks in a store.
type TaskService struct {
	store  store.Store
	logger *log.Logger
}

// New creates a TaskService. A nil logger discards output.
func New(st store.Store, logger *log.Logger) *TaskService {
	if logger == nil {
		logger = log.Nop()
	}
	return &TaskService{store: st, logger: logger.With("component", "service")}
}

// Create validates req and stores a new pending task. A status, when
// given, must be pending; tasks cannot be created in any other state.
func (s *TaskService) Create(ctx context.Context, req CreateRequest) (*task.Task, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, errors.NewTaskInvalidError("description is required").
			WithSuggestion("Describe what the task should achieve")
	}
	if req.Status != "" {
		st, err := task.ParseStatus(req.Status)
		if err != nil || st != task.StatusPending {
			return nil, errors.NewTaskInvalidError(`status must be "pending" when set`)
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = deriveTitle(req.Description)
	}

	t, err := task.New(title, req.Description)
	if err != nil {
		return nil, errors.NewTaskInvalidError(err.Error())
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("task created", "task_id", t.ID, "title", t.Title)
	return t, nil
}

// List returns tasks with the given status, or all tasks when status is empty.
func (s *TaskService) List(ctx context.Context, status string) ([]*task.Task, error) {
	var st task.Status
	if status != "" {
		parsed, err := task.ParseStatus(status)
		if err != nil {
			return nil, errors.NewTaskInvalidError(err.Error())
		}
		st = parsed
	}
	return s.store.List(ctx, st)
}

// Get returns one task including its jobs.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.store.Get(ctx, id)
}

// Cancel removes a task. A runner pass already holding the task finishes its
// current job and then fails to persist.
func (s *TaskService) Cancel(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task cancelled", "task_id", id)
	return nil
}

// Retry returns a failed or current task to pending so the next pass picks
// it up again. The plan and completed jobs are kept.
func (s *TaskService) Retry(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == task.StatusCompleted || t.Status == task.StatusPending {
		return nil, errors.NewTransitionError(id, string(t.Status), string(task.StatusPending))
	}
	if err := t.Reset(); err != nil {
		return nil, errors.NewTransitionError(id, string(t.Status), string(task.StatusPending))
	}
	if err := s.store.Save(ctx, t); err != nil {
		return nil, err
	}

	done, total := t.Progress()
	s.logger.Info("task reset to pending", "task_id", id, "jobs_done", done, "jobs_total", total)
	return t, nil
}

// deriveTitle uses the first line of the description, shortened.
func deriveTitle(description string) string {
	line := strings.TrimSpace(description)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	const maxTitle = 60
	if r := []rune(line); len(r) > maxTitle {
		return string(r[:maxTitle-3]) + "..."
	}
	return line
}

// Package store persists tasks and their job lists.
//
// Every implementation provides an atomic pending to current claim so that two
// runner passes cannot own the same task, and writes whole task records so a
// crash between job completions loses at most the job in flight.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// Store is the task persistence boundary.
type Store interface {
	// List returns tasks with the given status, or all tasks when status is
	// empty, ordered by creation time then ID.
	List(ctx context.Context, status task.Status) ([]*task.Task, error)

	// Get returns a copy of the task or a TASK-001 error.
	Get(ctx context.Context, id string) (*task.Task, error)

	// Create inserts a new task.
	Create(ctx context.Context, t *task.Task) error

	// Save overwrites an existing task record.
	Save(ctx context.Context, t *task.Task) error

	// Delete removes the task or returns a TASK-001 error.
	Delete(ctx context.Context, id string) error

	// Claim moves a pending task to current and records owner as the lease
	// holder. It fails with ErrAlreadyClaimed when the task is not pending.
	Claim(ctx context.Context, id, owner string) (*task.Task, error)

	Close() error
}

// Config selects and configures a Store implementation.
type Config struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// Drivers that Open understands.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFile, "":
		return NewFileStore(cfg.Path)
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, errors.New(errors.ErrCodeStoreConfig, fmt.Sprintf("unknown store driver %q", cfg.Driver)).
			WithSuggestion("Use one of: file, memory, postgres")
	}
}

func notFound(id string) error {
	return errors.NewTaskNotFoundError(id)
}

func alreadyClaimed(id string, status task.Status) error {
	return errors.New(errors.ErrCodeTaskAlreadyClaimed, fmt.Sprintf("task %s is %s, not pending", id, status))
}

func sortTasks(tasks []*task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

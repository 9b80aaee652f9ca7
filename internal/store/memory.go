package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// MemoryStore keeps tasks in process memory. It is used by tests and by
// `jacinta run --store memory` dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*task.Task)}
}

func (s *MemoryStore) List(ctx context.Context, status task.Status) ([]*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if status == "" || t.Status == status {
			out = append(out, t.Clone())
		}
	}
	sortTasks(out)
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound(id)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, t *task.Task) error {
	if err := t.Validate(); err != nil {
		return errors.NewTaskInvalidError(err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return errors.NewTaskInvalidError(fmt.Sprintf("task %s already exists", t.ID))
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; !exists {
		return notFound(t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; !exists {
		return notFound(id)
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context, id, owner string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound(id)
	}
	if t.Status != task.StatusPending {
		return nil, alreadyClaimed(id, t.Status)
	}

	now := time.Now().UTC()
	t.Status = task.StatusCurrent
	t.ClaimedBy = owner
	t.ClaimedAt = &now
	t.UpdatedAt = now
	return t.Clone(), nil
}

func (s *MemoryStore) Close() error { return nil }

package store

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

func newTask(t *testing.T, title string, created time.Time) *task.Task {
	t.Helper()
	tk, err := task.New(title, title+" description")
	require.NoError(t, err)
	tk.CreatedAt = created
	tk.UpdatedAt = created
	return tk
}

// runStoreContract exercises behaviour every Store implementation shares.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create and get", func(t *testing.T) {
		s := open(t)
		tk := newTask(t, "first", base)
		require.NoError(t, s.Create(ctx, tk))

		got, err := s.Get(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, tk.Description, got.Description)
		assert.Equal(t, task.StatusPending, got.Status)
		assert.Empty(t, got.Jobs)
	})

	t.Run("create duplicate", func(t *testing.T) {
		s := open(t)
		tk := newTask(t, "dup", base)
		require.NoError(t, s.Create(ctx, tk))
		err := s.Create(ctx, tk)
		assert.True(t, errors.HasCode(err, errors.ErrCodeTaskInvalid), "got %v", err)
	})

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "missing")
		assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	})

	t.Run("list filters and orders by creation", func(t *testing.T) {
		s := open(t)
		late := newTask(t, "late", base.Add(2*time.Minute))
		early := newTask(t, "early", base)
		done := newTask(t, "done", base.Add(time.Minute))
		done.Status = task.StatusCompleted
		done.Jobs = []task.Job{{Type: task.JobResearch, Completed: true, Result: "r"}}
		for _, tk := range []*task.Task{late, early, done} {
			require.NoError(t, s.Create(ctx, tk))
		}

		pending, err := s.List(ctx, task.StatusPending)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "early", pending[0].Title)
		assert.Equal(t, "late", pending[1].Title)

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		none, err := s.List(ctx, task.StatusFailed)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("save persists jobs", func(t *testing.T) {
		s := open(t)
		tk := newTask(t, "plan", base)
		require.NoError(t, s.Create(ctx, tk))

		require.NoError(t, tk.SetPlan([]task.Job{
			task.NewJob(task.JobResearch, "look"),
			task.NewJob(task.JobCode, "write"),
		}))
		require.NoError(t, tk.Jobs[0].Complete("line1\nline2", base))
		require.NoError(t, s.Save(ctx, tk))

		got, err := s.Get(ctx, tk.ID)
		require.NoError(t, err)
		require.Len(t, got.Jobs, 2)
		assert.True(t, got.Jobs[0].Completed)
		assert.Equal(t, "line1\nline2", got.Jobs[0].Result)
		assert.False(t, got.Jobs[1].Completed)
	})

	t.Run("save missing", func(t *testing.T) {
		s := open(t)
		err := s.Save(ctx, newTask(t, "ghost", base))
		assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	})

	t.Run("returned tasks are copies", func(t *testing.T) {
		s := open(t)
		tk := newTask(t, "copy", base)
		require.NoError(t, s.Create(ctx, tk))

		got, err := s.Get(ctx, tk.ID)
		require.NoError(t, err)
		got.Title = "mutated"

		again, err := s.Get(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, "copy", again.Title)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		tk := newTask(t, "gone", base)
		require.NoError(t, s.Create(ctx, tk))

		require.NoError(t, s.Delete(ctx, tk.ID))
		_, err := s.Get(ctx, tk.ID)
		assert.True(t, stderrors.Is(err, errors.ErrNotFound))
		assert.True(t, stderrors.Is(s.Delete(ctx, tk.ID), errors.ErrNotFound))
	})

	t.Run("claim moves pending to current", func(t *testing.T) {
		s := open(t)
		tk := newTask(t, "claim", base)
		require.NoError(t, s.Create(ctx, tk))

		claimed, err := s.Claim(ctx, tk.ID, "runner-a")
		require.NoError(t, err)
		assert.Equal(t, task.StatusCurrent, claimed.Status)
		assert.Equal(t, "runner-a", claimed.ClaimedBy)
		require.NotNil(t, claimed.ClaimedAt)

		stored, err := s.Get(ctx, tk.ID)
		require.NoError(t, err)
		assert.Equal(t, task.StatusCurrent, stored.Status)

		_, err = s.Claim(ctx, tk.ID, "runner-b")
		assert.True(t, stderrors.Is(err, errors.ErrAlreadyClaimed), "got %v", err)
	})

	t.Run("claim missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Claim(ctx, "missing", "runner-a")
		assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		s := open(t)
		tk := newTask(t, "race", base)
		require.NoError(t, s.Create(ctx, tk))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Claim(ctx, tk.ID, "runner"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Driver: DriverFile, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, Config{Driver: "sqlite"})
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreConfig))

	_, err = Open(ctx, Config{Driver: DriverPostgres})
	assert.True(t, errors.HasCode(err, errors.ErrCodeStoreConfig))
}

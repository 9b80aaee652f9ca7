package tui

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/jacinta/internal/task"
)

func sampleTask(status task.Status) *task.Task {
	t := &task.Task{ID: "t-1", Title: "Write blog", Description: "write a post", Status: status}
	t.Jobs = []task.Job{task.NewJob(task.JobResearch, "find topics"), task.NewJob(task.JobCode, "write post.md")}
	_ = t.Jobs[0].Complete("topic one\ntopic two", time.Now())
	return t
}

func TestRenderSummaries(t *testing.T) {
	s := DefaultStyles()
	assert.Contains(t, RenderSummaries(s, nil), "No tasks.")

	out := RenderSummaries(s, []task.Summary{
		{ID: "a1", Title: "First", Status: task.StatusPending},
		{ID: "b2", Title: "Second task", Status: task.StatusCompleted},
	})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "STATUS")
	assert.Contains(t, lines[1], "First")
	assert.Contains(t, lines[1], "pending")
	assert.Contains(t, lines[2], "completed")
}

func TestRenderTask(t *testing.T) {
	tk := sampleTask(task.StatusCurrent)
	tk.LastError = "push rejected"
	out := RenderTask(DefaultStyles(), tk)

	assert.Contains(t, out, "Write blog")
	assert.Contains(t, out, "1/2 jobs")
	assert.Contains(t, out, "push rejected")
	assert.Contains(t, out, "topic two")
	assert.Contains(t, out, "write post.md")

	empty := &task.Task{ID: "x", Title: "x", Description: "d", Status: task.StatusPending}
	assert.Contains(t, RenderTask(DefaultStyles(), empty), "Not planned yet.")
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[░░░░]", ProgressBar(0, 0, 4))
	assert.Equal(t, "[██░░]", ProgressBar(1, 2, 4))
	assert.Equal(t, "[████]", ProgressBar(3, 3, 4))
}

func TestWatchModelLoadsAndFilters(t *testing.T) {
	tasks := []*task.Task{sampleTask(task.StatusCurrent), sampleTask(task.StatusCompleted)}
	tasks[1].Title = "Done already"
	m := NewWatchModel(func(ctx context.Context) ([]*task.Task, error) { return tasks, nil }, time.Second)

	msg := m.load()()
	updated, cmd := m.Update(msg)
	m = updated.(WatchModel)
	assert.NotNil(t, cmd, "schedules the next refresh")
	assert.False(t, m.loading)
	assert.Len(t, m.visible(), 2)
	assert.Contains(t, m.View(), "Done already")

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	m = updated.(WatchModel)
	assert.Len(t, m.visible(), 1)
	assert.NotContains(t, m.View(), "Done already")
}

func TestWatchModelShowsFetchError(t *testing.T) {
	m := NewWatchModel(func(ctx context.Context) ([]*task.Task, error) {
		return nil, stderrors.New("connection refused")
	}, time.Second)

	updated, _ := m.Update(m.load()())
	assert.Contains(t, updated.(WatchModel).View(), "connection refused")
}

func TestWatchModelQuit(t *testing.T) {
	m := NewWatchModel(func(ctx context.Context) ([]*task.Task, error) { return nil, nil }, 0)
	assert.Equal(t, 2*time.Second, m.interval)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, updated.(WatchModel).View())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

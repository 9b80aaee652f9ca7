package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is a user-submitted unit of work that is decomposed into Jobs and
// executed incrementally across runner passes.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Jobs        []Job      `json:"jobs"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	ClaimedBy   string     `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// New creates a pending task with a fresh ID and no jobs.
func New(title, description string) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Status:      StatusPending,
		Jobs:        []Job{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks field-level invariants.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Description == "" {
		return fmt.Errorf("description is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if t.Status == StatusCompleted && !t.AllJobsCompleted() {
		return fmt.Errorf("completed task must have every job completed")
	}
	return nil
}

// Planned reports whether the job list has been generated.
func (t *Task) Planned() bool {
	return len(t.Jobs) > 0
}

// AllJobsCompleted is true only for a non-empty plan whose jobs are all done.
func (t *Task) AllJobsCompleted() bool {
	if len(t.Jobs) == 0 {
		return false
	}
	for _, j := range t.Jobs {
		if !j.Completed {
			return false
		}
	}
	return true
}

// PendingJobs returns the indices of incomplete jobs in plan order.
func (t *Task) PendingJobs() []int {
	var idx []int
	for i, j := range t.Jobs {
		if !j.Completed {
			idx = append(idx, i)
		}
	}
	return idx
}

// Progress returns the number of completed jobs and the plan size.
func (t *Task) Progress() (done, total int) {
	for _, j := range t.Jobs {
		if j.Completed {
			done++
		}
	}
	return done, len(t.Jobs)
}

// SetPlan installs the job list. A plan is installed once; replacing an
// existing plan is refused.
func (t *Task) SetPlan(jobs []Job) error {
	if t.Planned() {
		return fmt.Errorf("task %s already has a plan", t.ID)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("plan must contain at least one job")
	}
	t.Jobs = make([]Job, len(jobs))
	for i, j := range jobs {
		t.Jobs[i] = NewJob(j.Type, j.Description)
	}
	t.Touch()
	return nil
}

// MarkCompleted moves the task to completed if every job is done.
func (t *Task) MarkCompleted() error {
	if !t.AllJobsCompleted() {
		return fmt.Errorf("task %s has incomplete jobs", t.ID)
	}
	t.Status = StatusCompleted
	t.LastError = ""
	t.Touch()
	return nil
}

// RecordFailure notes a failed pass. When maxAttempts is positive and has been
// reached, the task becomes failed. It reports whether that happened.
func (t *Task) RecordFailure(err error, maxAttempts int) bool {
	t.Attempts++
	if err != nil {
		t.LastError = err.Error()
	}
	t.Touch()
	if maxAttempts > 0 && t.Attempts >= maxAttempts {
		t.Status = StatusFailed
		return true
	}
	return false
}

// Reset returns a failed or current task to pending, keeping its plan and
// any completed jobs.
func (t *Task) Reset() error {
	if t.Status == StatusCompleted {
		return fmt.Errorf("task %s is already completed", t.ID)
	}
	t.Status = StatusPending
	t.Attempts = 0
	t.LastError = ""
	t.ClaimedBy = ""
	t.ClaimedAt = nil
	t.Touch()
	return nil
}

// Touch bumps UpdatedAt.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy, so stores never share job slices with callers.
func (t *Task) Clone() *Task {
	c := *t
	c.Jobs = make([]Job, len(t.Jobs))
	for i, j := range t.Jobs {
		c.Jobs[i] = j
		if j.CompletedAt != nil {
			at := *j.CompletedAt
			c.Jobs[i].CompletedAt = &at
		}
	}
	if t.ClaimedAt != nil {
		at := *t.ClaimedAt
		c.ClaimedAt = &at
	}
	return &c
}

// Summary is the compact listing form of a task.
type Summary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status Status `json:"status"`
}

// Summary returns the listing form of t.
func (t *Task) Summary() Summary {
	return Summary{ID: t.ID, Title: t.Title, Status: t.Status}
}

package runner

import (
	"fmt"
	"time"
)

// Outcome is what one pass did to one task.
type Outcome string

const (
	// OutcomeCompleted means every job is done and the task was finalized.
	OutcomeCompleted Outcome = "completed"
	// OutcomeIncomplete means the pass ran to the end of the plan but some
	// jobs could not be executed.
	OutcomeIncomplete Outcome = "incomplete"
	// OutcomeAborted means planning or a job failed; the task stays current.
	OutcomeAborted Outcome = "aborted"
	// OutcomeFailed means the failure exhausted the attempt budget.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means the claim was lost to another pass.
	OutcomeSkipped Outcome = "skipped"
)

// TaskReport summarizes the processing of one task.
type TaskReport struct {
	TaskID      string        `json:"task_id"`
	Title       string        `json:"title"`
	Outcome     Outcome       `json:"outcome"`
	Resumed     bool          `json:"resumed,omitempty"`
	Planned     bool          `json:"planned,omitempty"`
	JobsRun     int           `json:"jobs_run"`
	JobsSkipped int           `json:"jobs_skipped"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
}

// PassReport is returned by Runner.RunPendingPass.
type PassReport struct {
	Owner      string       `json:"owner"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Tasks      []TaskReport `json:"tasks"`
}

// Count returns the number of tasks with the given outcome.
func (r *PassReport) Count(o Outcome) int {
	n := 0
	for _, t := range r.Tasks {
		if t.Outcome == o {
			n++
		}
	}
	return n
}

// Errors returns the per-task errors of the pass in processing order.
func (r *PassReport) Errors() []error {
	var errs []error
	for _, t := range r.Tasks {
		if t.Err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", t.TaskID, t.Err))
		}
	}
	return errs
}

// Duration returns the wall time of the pass.
func (r *PassReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// String renders a one-line summary.
func (r *PassReport) String() string {
	return fmt.Sprintf("%d tasks: %d completed, %d incomplete, %d aborted, %d failed, %d skipped",
		len(r.Tasks),
		r.Count(OutcomeCompleted),
		r.Count(OutcomeIncomplete),
		r.Count(OutcomeAborted),
		r.Count(OutcomeFailed),
		r.Count(OutcomeSkipped))
}

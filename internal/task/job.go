package task

import (
	"fmt"
	"time"
)

// Job is one typed, independently executable unit of a Task's plan.
type Job struct {
	Type        JobType    `json:"type"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	Result      string     `json:"result"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob returns an incomplete job with an empty result.
func NewJob(t JobType, description string) Job {
	return Job{Type: t, Description: description}
}

// Complete records the job's result. A job is completed at most once.
func (j *Job) Complete(result string, at time.Time) error {
	if j.Completed {
		return fmt.Errorf("job %q already completed", j.Description)
	}
	j.Completed = true
	j.Result = result
	at = at.UTC()
	j.CompletedAt = &at
	return nil
}

package task

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCurrent   Status = "current"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusPending, StatusCurrent, StatusCompleted, StatusFailed}

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCurrent, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the runner will never pick the task up again
// without operator action.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// JobType selects the execution strategy for a Job. The set is closed.
type JobType string

const (
	JobResearch JobType = "research"
	JobCode     JobType = "code"
	JobAskUser  JobType = "ask_user"
)

// JobTypes lists every supported job type.
var JobTypes = []JobType{JobResearch, JobCode, JobAskUser}

// ParseJobType matches the wire tag exactly; there is no case folding or
// aliasing, so "Research" is rejected.
func ParseJobType(s string) (JobType, error) {
	t := JobType(s)
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unsupported job type %q", s)
}

// Valid reports whether t is one of the supported job types.
func (t JobType) Valid() bool {
	switch t {
	case JobResearch, JobCode, JobAskUser:
		return true
	}
	return false
}

func (t JobType) String() string {
	return string(t)
}

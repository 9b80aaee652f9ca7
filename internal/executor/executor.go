// Package executor runs a single job with the strategy selected by its type.
package executor

import (
	"context"
	stderrors "errors"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// Strategy executes one kind of job and returns its result text.
type Strategy interface {
	Execute(ctx context.Context, job task.Job) (string, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, job task.Job) (string, error)

func (f StrategyFunc) Execute(ctx context.Context, job task.Job) (string, error) {
	return f(ctx, job)
}

// Dispatcher routes jobs to the strategy for their type.
type Dispatcher struct {
	Research Strategy
	Code     Strategy
	AskUser  Strategy
}

// Execute runs job. Jobs whose type has no strategy return an error matching
// errors.ErrUnknownJobType, which callers treat as non-fatal. Strategy
// failures are wrapped as EXEC-001 unless the context was cancelled.
func (d *Dispatcher) Execute(ctx context.Context, job task.Job) (string, error) {
	var s Strategy
	switch job.Type {
	case task.JobResearch:
		s = d.Research
	case task.JobCode:
		s = d.Code
	case task.JobAskUser:
		s = d.AskUser
	default:
		return "", errors.NewUnknownJobTypeError(string(job.Type))
	}
	if s == nil {
		return "", errors.NewExecutorError(string(job.Type), stderrors.New("no strategy configured"))
	}

	result, err := s.Execute(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.NewExecutorError(string(job.Type), err)
	}
	return result, nil
}

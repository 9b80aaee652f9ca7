// Package runner drives pending tasks through planning and job execution.
//
// A pass claims each pending task, asks the planner for a job list if the
// task has none, and executes the incomplete jobs in order. The task is
// persisted after the plan is accepted and after every completed job, so an
// interrupted pass resumes where it stopped.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/hooks"
	"github.com/felixgeelhaar/jacinta/internal/log"
	"github.com/felixgeelhaar/jacinta/internal/metrics"
	"github.com/felixgeelhaar/jacinta/internal/planner"
	"github.com/felixgeelhaar/jacinta/internal/store"
	"github.com/felixgeelhaar/jacinta/internal/task"
	"github.com/felixgeelhaar/jacinta/internal/telemetry"
)

// Executor runs a single job. executor.Dispatcher implements it.
type Executor interface {
	Execute(ctx context.Context, job task.Job) (string, error)
}

// Runner processes tasks. It is safe for concurrent use; passes are
// serialized.
type Runner struct {
	mu sync.Mutex

	store    store.Store
	planner  planner.Planner
	executor Executor
	config   Config

	logger  *log.Logger
	metrics *metrics.Metrics
	hooks   hooks.Notifier
	now     func() time.Time
}

// New creates a Runner.
func New(st store.Store, pl planner.Planner, ex Executor, cfg Config) *Runner {
	cfg = cfg.withDefaults()
	if cfg.Owner == "" {
		cfg.Owner = "runner-" + uuid.NewString()[:8]
	}
	return &Runner{
		store:    st,
		planner:  pl,
		executor: ex,
		config:   cfg,
		logger:   log.Nop(),
		metrics:  metrics.Discard(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger used for pass and task events.
func (r *Runner) SetLogger(l *log.Logger) {
	if l != nil {
		r.logger = l.With("component", "runner", "owner", r.config.Owner)
	}
}

// SetMetrics sets the metrics sink.
func (r *Runner) SetMetrics(m *metrics.Metrics) {
	if m != nil {
		r.metrics = m
	}
}

// SetHooks sets the lifecycle notifier.
// This must be called before the first pass if hooks are desired.
func (r *Runner) SetHooks(n hooks.Notifier) {
	r.hooks = n
}

// Owner returns the lease owner recorded on claimed tasks.
func (r *Runner) Owner() string {
	return r.config.Owner
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.config
}

// RunPendingPass processes every pending task once, in store order, and
// then, if configured, resumable current tasks. Task failures are recorded
// in the report and never stop the scan. The returned error is non-nil only
// when the scan itself could not run or the context was cancelled.
func (r *Runner) RunPendingPass(ctx context.Context) (report *PassReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := telemetry.StartPassSpan(ctx, r.config.Owner)
	defer span.End()

	report = &PassReport{Owner: r.config.Owner, StartedAt: r.now()}
	defer func() {
		report.FinishedAt = r.now()
		r.metrics.ObservePass(report.Duration(), err)
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span, attribute.Int("pass.tasks", len(report.Tasks)))
		}
	}()

	pending, err := r.store.List(ctx, task.StatusPending)
	if err != nil {
		r.metrics.RecordError("runner", err)
		return report, fmt.Errorf("list pending tasks: %w", err)
	}

	seen := make(map[string]bool, len(pending))
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		seen[t.ID] = true
		report.Tasks = append(report.Tasks, r.claimAndProcess(ctx, t.ID))
	}

	if r.config.ResumeCurrent {
		if err := r.resumeCurrent(ctx, report, seen); err != nil {
			return report, err
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	r.logger.Info("pass finished", "summary", report.String(), "duration", report.Duration())
	return report, nil
}

func (r *Runner) claimAndProcess(ctx context.Context, id string) TaskReport {
	t, err := r.store.Claim(ctx, id, r.config.Owner)
	if err != nil {
		rep := TaskReport{TaskID: id, Outcome: OutcomeSkipped}
		if stderrors.Is(err, errors.ErrAlreadyClaimed) || stderrors.Is(err, errors.ErrNotFound) {
			r.metrics.ClaimConflict.Inc()
			r.logger.Debug("claim lost", "task_id", id)
			return rep
		}
		rep.Err = err
		r.metrics.RecordError("runner", err)
		r.logger.WithError(err).Warn("claim failed", "task_id", id)
		return rep
	}

	r.metrics.TasksClaimed.Inc()
	r.trigger(ctx, hooks.EventTaskClaimed, t.ID, map[string]any{"title": t.Title, "owner": r.config.Owner})
	return r.process(ctx, t, false)
}

func (r *Runner) resumeCurrent(ctx context.Context, report *PassReport, seen map[string]bool) error {
	current, err := r.store.List(ctx, task.StatusCurrent)
	if err != nil {
		r.metrics.RecordError("runner", err)
		return fmt.Errorf("list current tasks: %w", err)
	}

	for _, t := range current {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen[t.ID] || !r.resumable(t) {
			continue
		}
		seen[t.ID] = true

		now := r.now()
		t.ClaimedBy = r.config.Owner
		t.ClaimedAt = &now
		if err := r.save(ctx, t); err != nil {
			report.Tasks = append(report.Tasks, TaskReport{TaskID: t.ID, Title: t.Title, Outcome: OutcomeSkipped, Err: err})
			continue
		}
		report.Tasks = append(report.Tasks, r.process(ctx, t, true))
	}
	return nil
}

// resumable reports whether a current task may be picked up by this runner:
// it must still have work and its lease must be ours or stale.
func (r *Runner) resumable(t *task.Task) bool {
	if t.AllJobsCompleted() {
		return false
	}
	if t.ClaimedBy == r.config.Owner || t.ClaimedAt == nil {
		return true
	}
	return r.now().Sub(*t.ClaimedAt) > r.config.LeaseTTL
}

// process ensures the plan and executes the incomplete jobs of a task that
// this runner owns.
func (r *Runner) process(ctx context.Context, t *task.Task, resumed bool) (rep TaskReport) {
	ctx, span := telemetry.StartTaskSpan(ctx, t.ID)
	defer span.End()

	logger := r.logger.With("task_id", t.ID)
	start := time.Now()
	rep = TaskReport{TaskID: t.ID, Title: t.Title, Resumed: resumed}
	defer func() {
		rep.Duration = time.Since(start)
		r.metrics.TaskOutcomes.WithLabelValues(string(rep.Outcome)).Inc()
		if rep.Err != nil {
			telemetry.RecordError(span, rep.Err)
		} else {
			telemetry.RecordSuccess(span, attribute.String("task.outcome", string(rep.Outcome)))
		}
	}()

	if !t.Planned() {
		jobs, err := r.plan(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("pass interrupted during planning")
				rep.Outcome, rep.Err = OutcomeAborted, ctx.Err()
				return rep
			}
			logger.WithError(err).Warn("planning failed")
			r.trigger(ctx, hooks.EventPlanRejected, t.ID, map[string]any{"error": err.Error()})
			return r.abort(ctx, t, rep, err)
		}
		if err := t.SetPlan(jobs); err != nil {
			return r.abort(ctx, t, rep, errors.NewPlanValidationError(err.Error()))
		}
		if err := r.save(ctx, t); err != nil {
			rep.Outcome, rep.Err = OutcomeAborted, err
			return rep
		}
		rep.Planned = true
		logger.Info("plan created", "jobs", len(t.Jobs))
		r.trigger(ctx, hooks.EventPlanCreated, t.ID, map[string]any{"jobs": len(t.Jobs)})
	}

	for _, i := range t.PendingJobs() {
		if err := ctx.Err(); err != nil {
			logger.Info("pass interrupted", "job_index", i)
			rep.Outcome, rep.Err = OutcomeAborted, err
			return rep
		}

		job := t.Jobs[i]
		jobLogger := logger.With("job_index", i, "job_type", string(job.Type))

		result, err := r.execute(ctx, i, job)
		if err != nil {
			if stderrors.Is(err, errors.ErrUnknownJobType) {
				jobLogger.WithError(err).Warn("skipping job with unknown type")
				rep.JobsSkipped++
				r.trigger(ctx, hooks.EventJobSkipped, t.ID, map[string]any{"job_index": i, "job_type": string(job.Type)})
				continue
			}
			if ctx.Err() != nil {
				rep.Outcome, rep.Err = OutcomeAborted, ctx.Err()
				return rep
			}
			jobLogger.WithError(err).Warn("job failed")
			r.trigger(ctx, hooks.EventJobFailed, t.ID, map[string]any{"job_index": i, "job_type": string(job.Type), "error": err.Error()})
			return r.abort(ctx, t, rep, err)
		}

		if err := t.Jobs[i].Complete(result, r.now()); err != nil {
			return r.abort(ctx, t, rep, errors.Wrap(errors.ErrCodeJobAlreadyCompleted, "complete job", err))
		}
		t.Touch()
		if err := r.save(ctx, t); err != nil {
			rep.Outcome, rep.Err = OutcomeAborted, err
			return rep
		}
		rep.JobsRun++
		jobLogger.Info("job completed")
		r.trigger(ctx, hooks.EventJobCompleted, t.ID, map[string]any{"job_index": i, "job_type": string(job.Type)})
	}

	if !t.AllJobsCompleted() {
		rep.Outcome = OutcomeIncomplete
		return rep
	}

	if err := t.MarkCompleted(); err != nil {
		rep.Outcome, rep.Err = OutcomeAborted, err
		return rep
	}
	if err := r.save(ctx, t); err != nil {
		rep.Outcome, rep.Err = OutcomeAborted, err
		return rep
	}
	logger.Info("task completed", "jobs", len(t.Jobs))
	r.trigger(ctx, hooks.EventTaskCompleted, t.ID, map[string]any{"jobs": len(t.Jobs)})
	rep.Outcome = OutcomeCompleted
	return rep
}

func (r *Runner) plan(ctx context.Context, t *task.Task) ([]task.Job, error) {
	start := time.Now()
	jobs, err := r.planner.Decompose(ctx, t.Description)
	r.metrics.ObservePlan(time.Since(start), len(jobs), err)
	if err != nil {
		r.metrics.RecordError("planner", err)
	}
	return jobs, err
}

func (r *Runner) execute(ctx context.Context, index int, job task.Job) (string, error) {
	ctx, span := telemetry.StartJobSpan(ctx, string(job.Type), index)
	defer span.End()

	start := time.Now()
	result, err := r.executor.Execute(ctx, job)

	outcome := "completed"
	switch {
	case stderrors.Is(err, errors.ErrUnknownJobType):
		outcome = "skipped"
	case err != nil:
		outcome = "failed"
		r.metrics.RecordError("executor", err)
	}
	r.metrics.ObserveJob(string(job.Type), outcome, time.Since(start))

	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span, attribute.Int("job.result_bytes", len(result)))
	}
	return result, err
}

// abort records a failed pass on the task. The task stays current unless the
// attempt budget is exhausted, in which case it becomes failed.
func (r *Runner) abort(ctx context.Context, t *task.Task, rep TaskReport, cause error) TaskReport {
	rep.Err = cause
	rep.Outcome = OutcomeAborted

	if t.RecordFailure(cause, r.config.MaxAttempts) {
		rep.Outcome = OutcomeFailed
	}
	if err := r.save(ctx, t); err != nil {
		r.logger.WithError(err).Error("failed to record task failure", "task_id", t.ID)
		return rep
	}

	if rep.Outcome == OutcomeFailed {
		r.logger.WithError(cause).Error("task failed", "task_id", t.ID, "attempts", t.Attempts)
		r.trigger(ctx, hooks.EventTaskFailed, t.ID, map[string]any{"attempts": t.Attempts, "error": cause.Error()})
	}
	return rep
}

// save persists t even when ctx has been cancelled, so completed work
// survives shutdown.
func (r *Runner) save(ctx context.Context, t *task.Task) error {
	if err := r.store.Save(context.WithoutCancel(ctx), t); err != nil {
		r.metrics.RecordError("store", err)
		r.logger.WithError(err).Error("failed to persist task", "task_id", t.ID)
		return err
	}
	return nil
}

func (r *Runner) trigger(ctx context.Context, eventType hooks.EventType, taskID string, data map[string]any) {
	if r.hooks == nil {
		return
	}
	for _, res := range r.hooks.Trigger(ctx, hooks.NewEvent(eventType, taskID, data)) {
		if res.Err != nil {
			r.logger.WithError(res.Err).Warn("hook failed", "hook", res.HookName, "event", string(res.EventType))
		}
	}
}

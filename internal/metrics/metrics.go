package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

// Metrics holds all Prometheus metrics for jacinta
type Metrics struct {
	// Runner pass metrics
	Passes        *prometheus.CounterVec
	PassDuration  prometheus.Histogram
	TasksClaimed  prometheus.Counter
	TaskOutcomes  *prometheus.CounterVec
	ClaimConflict prometheus.Counter

	// Job execution metrics
	Jobs        *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	// Planner metrics
	PlannerCalls    *prometheus.CounterVec
	PlannerDuration prometheus.Histogram
	PlanJobCount    prometheus.Histogram

	// Management API metrics
	APIRequests *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Passes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jacinta_runner_passes_total",
				Help: "Total number of runner passes",
			},
			[]string{"success"},
		),
		PassDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jacinta_runner_pass_duration_seconds",
				Help:    "Runner pass duration in seconds",
				Buckets: []float64{0.1, 1, 5, 15, 60, 300, 900},
			},
		),
		TasksClaimed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jacinta_tasks_claimed_total",
				Help: "Total number of tasks claimed from pending",
			},
		),
		TaskOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jacinta_task_outcomes_total",
				Help: "Task pass outcomes (completed, incomplete, aborted, failed)",
			},
			[]string{"outcome"},
		),
		ClaimConflict: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jacinta_claim_conflicts_total",
				Help: "Claims lost to another runner pass",
			},
		),
		Jobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jacinta_jobs_total",
				Help: "Job executions by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jacinta_job_duration_seconds",
				Help:    "Job execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"type"},
		),
		PlannerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jacinta_planner_calls_total",
				Help: "Planner decompositions by success",
			},
			[]string{"success"},
		),
		PlannerDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jacinta_planner_duration_seconds",
				Help:    "Planner decomposition latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		PlanJobCount: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jacinta_plan_job_count",
				Help:    "Number of jobs in accepted plans",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jacinta_api_requests_total",
				Help: "Management API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jacinta_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// ObservePass records a finished runner pass.
func (m *Metrics) ObservePass(d time.Duration, err error) {
	m.Passes.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	m.PassDuration.Observe(d.Seconds())
}

// ObserveJob records one job execution. outcome is completed, failed or skipped.
func (m *Metrics) ObserveJob(jobType, outcome string, d time.Duration) {
	m.Jobs.WithLabelValues(jobType, outcome).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

// ObservePlan records a planner call and, on success, the plan size.
func (m *Metrics) ObservePlan(d time.Duration, jobs int, err error) {
	m.PlannerCalls.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	m.PlannerDuration.Observe(d.Seconds())
	if err == nil {
		m.PlanJobCount.Observe(float64(jobs))
	}
}

// RecordError counts err under its error code, or "unknown".
func (m *Metrics) RecordError(component string, err error) {
	if err == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code, component).Inc()
}

// Package planner decomposes a task description into an ordered list of
// typed jobs using a schema-constrained model call.
package planner

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/jacinta/internal/errors"
	"github.com/felixgeelhaar/jacinta/internal/provider"
	"github.com/felixgeelhaar/jacinta/internal/task"
	"github.com/felixgeelhaar/jacinta/internal/telemetry"
)

// Planner turns a task description into a job list.
type Planner interface {
	Decompose(ctx context.Context, description string) ([]task.Job, error)
}

const systemPrompt = `You are a planning assistant. Break the user's task into a short, ordered list of jobs that together accomplish it.

Each job has a type and a description:
  - research: look something up on the web; the description is the search query
  - code: write a single source file; the description says what the file must do
  - ask_user: ask the user a question; the description is the question

RULES:
1. Use only the three job types above, spelled exactly as shown.
2. Order jobs so that each one can rely on the results of earlier jobs.
3. Keep descriptions self-contained; a job cannot see the original task.
4. Prefer fewer, larger jobs over many tiny ones.`

// Options tunes the model call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// LLMPlanner asks a provider for a job list constrained to the closed set
// of job types. It makes exactly one attempt per call.
type LLMPlanner struct {
	client provider.Client
	opts   Options
}

// New creates an LLMPlanner.
func New(client provider.Client, opts Options) *LLMPlanner {
	return &LLMPlanner{client: client, opts: opts}
}

// JobListSchema is the response schema sent to the provider.
func JobListSchema() *provider.Schema {
	enum := make([]any, len(task.JobTypes))
	for i, t := range task.JobTypes {
		enum[i] = string(t)
	}
	return &provider.Schema{
		Name: "job_list",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"jobs"},
			"properties": map[string]any{
				"jobs": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"additionalProperties": false,
						"required":             []any{"type", "description"},
						"properties": map[string]any{
							"type":        map[string]any{"type": "string", "enum": enum},
							"description": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	}
}

type rawJob struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type rawJobList struct {
	Jobs []rawJob `json:"jobs"`
}

// Decompose generates and validates a plan. A response that names any job
// type outside the supported set is rejected as a whole.
func (p *LLMPlanner) Decompose(ctx context.Context, description string) ([]task.Job, error) {
	ctx, span := telemetry.StartPlannerSpan(ctx, p.client.Name())
	defer span.End()

	resp, err := p.client.Generate(ctx, &provider.GenerateRequest{
		SystemPrompt: systemPrompt,
		Prompt:       description,
		Model:        p.opts.Model,
		Temperature:  p.opts.Temperature,
		MaxTokens:    p.opts.MaxTokens,
		Schema:       JobListSchema(),
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodePlanGeneration, "planner request failed", err)
	}

	var raw rawJobList
	if err := resp.DecodeJSON(&raw); err != nil {
		err = errors.Wrap(errors.ErrCodePlanGeneration, "planner returned malformed JSON", err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	jobs, err := validate(raw.Jobs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.RecordSuccess(span, attribute.Int("job_count", len(jobs)))
	return jobs, nil
}

// validate converts decoded jobs into task jobs, rejecting the whole list on
// an empty plan or any unsupported type.
func validate(raw []rawJob) ([]task.Job, error) {
	if len(raw) == 0 {
		return nil, errors.NewPlanValidationError("plan contains no jobs")
	}

	var unknown []string
	jobs := make([]task.Job, 0, len(raw))
	for i, r := range raw {
		t, err := task.ParseJobType(r.Type)
		if err != nil {
			unknown = append(unknown, fmt.Sprintf("job %d: %q", i, r.Type))
			continue
		}
		jobs = append(jobs, task.NewJob(t, strings.TrimSpace(r.Description)))
	}
	if len(unknown) > 0 {
		return nil, errors.NewPlanValidationError("unsupported job type: " + strings.Join(unknown, ", "))
	}
	return jobs, nil
}

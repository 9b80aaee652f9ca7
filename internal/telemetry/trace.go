package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/felixgeelhaar/jacinta"

func start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return GetTracerProvider().Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartPassSpan wraps one runner pass over pending tasks.
func StartPassSpan(ctx context.Context, owner string) (context.Context, trace.Span) {
	return start(ctx, "runner.pass", attribute.String("runner.owner", owner))
}

// StartTaskSpan wraps the processing of a single task within a pass.
func StartTaskSpan(ctx context.Context, taskID string) (context.Context, trace.Span) {
	return start(ctx, "runner.task", attribute.String("task.id", taskID))
}

// StartJobSpan wraps one job execution.
//
//	ctx, span := telemetry.StartJobSpan(ctx, "research", 0)
//	defer span.End()
func StartJobSpan(ctx context.Context, jobType string, index int) (context.Context, trace.Span) {
	return start(ctx, "job."+jobType,
		attribute.String("job.type", jobType),
		attribute.Int("job.index", index),
	)
}

// StartPlannerSpan wraps a plan decomposition call.
func StartPlannerSpan(ctx context.Context, providerName string) (context.Context, trace.Span) {
	return start(ctx, "planner.decompose", attribute.String("provider", providerName))
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

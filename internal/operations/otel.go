package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"budgetpulse/internal/infrastructure"
)

const (
	TracerName = "budgetpulse.operations"
)

// OperationTracer provides OpenTelemetry instrumentation for jobs and stages
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewOperationTracer creates a tracer. A nil provider uses the global one;
// nil metrics disables metric recording.
func NewOperationTracer(provider trace.TracerProvider, metrics *infrastructure.BusinessMetrics) *OperationTracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &OperationTracer{
		tracer:  provider.Tracer(TracerName),
		metrics: metrics,
	}
}

// TraceJob creates a span for a whole pipeline run
func (t *OperationTracer) TraceJob(ctx context.Context, jobID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "operation.job",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("job.id", jobID)),
	)
}

// TraceStage creates a span for one stage
func (t *OperationTracer) TraceStage(ctx context.Context, jobID, stageID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "operation.stage."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("stage.id", stageID),
		),
	)
}

// RecordStageCompletion ends a stage span and records stage metrics
func (t *OperationTracer) RecordStageCompletion(ctx context.Context, span trace.Span, stageID string, duration time.Duration, err error) {
	defer span.End()

	span.SetAttributes(attribute.Float64("stage.duration_seconds", duration.Seconds()))
	infrastructure.RecordStageMetrics(ctx, t.metrics, stageID, duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", string(GetErrorType(err))))
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "stage completed")
}

// RecordStageSkipped marks a skipped stage on the job span
func (t *OperationTracer) RecordStageSkipped(ctx context.Context, stageID, reason string) {
	trace.SpanFromContext(ctx).AddEvent("stage.skipped", trace.WithAttributes(
		attribute.String("stage.id", stageID),
		attribute.String("reason", reason),
	))
}

// RecordJobCompletion ends a job span
func (t *OperationTracer) RecordJobCompletion(span trace.Span, state *PipelineState, err error) {
	defer span.End()

	span.SetAttributes(attribute.String("risk.level", string(state.Risk.Level)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "job completed")
}

// Metrics returns the business metrics, which may be nil
func (t *OperationTracer) Metrics() *infrastructure.BusinessMetrics {
	return t.metrics
}

package metrics

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	metrics "github.com/tigerroll/scour/pkg/dq/core/metrics"
)

const tracerName = "github.com/tigerroll/scour/pkg/dq"

// OpenTelemetryTracer is an implementation of metrics.Tracer using
// OpenTelemetry. Spans go to whatever TracerProvider the host process
// registered globally; with none registered every call is a no-op.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a new instance of OpenTelemetryTracer.
func NewOpenTelemetryTracer() metrics.Tracer {
	return &OpenTelemetryTracer{tracer: otel.Tracer(tracerName)}
}

// StartRunSpan starts a span covering a PipelineRun.
func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, run *model.PipelineRun) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("batch.id", run.BatchID),
	))
	return ctx, func() {
		span.SetAttributes(attribute.String("run.status", run.Status.String()))
		span.End()
	}
}

// StartStageSpan starts a span covering one StageExecution.
func (t *OpenTelemetryTracer) StartStageSpan(ctx context.Context, execution *model.StageExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "pipeline.stage."+execution.StageName, trace.WithAttributes(
		attribute.String("stage.name", execution.StageName),
		attribute.String("run.id", execution.RunID),
		attribute.Int("stage.records_in", execution.RecordsIn),
	))
	return ctx, func() {
		span.SetAttributes(
			attribute.Int("stage.records_out", execution.RecordsOut),
			attribute.Int("stage.errors", execution.ErrorCount),
			attribute.Int("stage.warnings", execution.WarningCount),
		)
		span.End()
	}
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event with attributes in the current span.
// Attribute order is stable so exported spans compare cleanly.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", attributes[k])))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)

package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics of pipeline
// execution. It decouples the orchestrator from the metrics backend
// (e.g. Prometheus).
type MetricRecorder interface {
	// RecordRunStart records the start of a PipelineRun.
	RecordRunStart(ctx context.Context, run *model.PipelineRun)

	// RecordRunEnd records the end of a PipelineRun with its terminal status.
	RecordRunEnd(ctx context.Context, run *model.PipelineRun)

	// RecordStageStart records the start of a StageExecution.
	RecordStageStart(ctx context.Context, execution *model.StageExecution)

	// RecordStageEnd records the end of a StageExecution, including its
	// record counts and per-severity issue counts.
	RecordStageEnd(ctx context.Context, execution *model.StageExecution)

	// RecordIssues records the issues a stage produced, by severity.
	RecordIssues(ctx context.Context, stageName string, severity model.Severity, count int)

	// RecordDuration records the execution time of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}

// Tracer is an abstract interface for distributed tracing of runs and
// stages. Implementations integrate with systems like OpenTelemetry.
type Tracer interface {
	// StartRunSpan starts a span covering a PipelineRun. The returned
	// function ends the span and is expected to be deferred.
	StartRunSpan(ctx context.Context, run *model.PipelineRun) (context.Context, func())

	// StartStageSpan starts a span covering one StageExecution.
	StartStageSpan(ctx context.Context, execution *model.StageExecution) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event with attributes in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}

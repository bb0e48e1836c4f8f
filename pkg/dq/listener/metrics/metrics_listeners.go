package metrics

import (
	"context"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/metrics"
	port "github.com/tigerroll/scour/pkg/dq/core/port"
)

// --- Run Execution Listener ---

type MetricsRunListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsRunListener(recorder metrics.MetricRecorder) port.RunExecutionListener {
	return &MetricsRunListener{recorder: recorder}
}

func (l *MetricsRunListener) BeforeRun(ctx context.Context, run *model.PipelineRun) {
	l.recorder.RecordRunStart(ctx, run)
}

func (l *MetricsRunListener) AfterRun(ctx context.Context, run *model.PipelineRun, report *model.Report) {
	l.recorder.RecordRunEnd(ctx, run)
}

var _ port.RunExecutionListener = (*MetricsRunListener)(nil)

// --- Stage Execution Listener ---

type MetricsStageListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsStageListener(recorder metrics.MetricRecorder) port.StageExecutionListener {
	return &MetricsStageListener{recorder: recorder}
}

func (l *MetricsStageListener) BeforeStage(ctx context.Context, execution *model.StageExecution) {
	l.recorder.RecordStageStart(ctx, execution)
}

func (l *MetricsStageListener) AfterStage(ctx context.Context, execution *model.StageExecution, report *model.ValidationReport) {
	l.recorder.RecordStageEnd(ctx, execution)
	if report == nil {
		return
	}
	for _, severity := range []model.Severity{model.SeverityError, model.SeverityWarning, model.SeverityInfo} {
		if count := report.Count(severity); count > 0 {
			l.recorder.RecordIssues(ctx, execution.StageName, severity, count)
		}
	}
}

var _ port.StageExecutionListener = (*MetricsStageListener)(nil)

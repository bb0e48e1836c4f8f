// Package port defines the notification contracts of the orchestrator.
// Listeners observe runs and stages; they cannot veto or
// alter execution, and a listener error never fails a run.
package port

import (
	"context"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
)

// RunExecutionListener is notified at the boundaries of a pipeline run.
type RunExecutionListener interface {
	BeforeRun(ctx context.Context, run *model.PipelineRun)
	AfterRun(ctx context.Context, run *model.PipelineRun, report *model.Report)
}

// StageExecutionListener is notified around each stage of a run.
type StageExecutionListener interface {
	BeforeStage(ctx context.Context, execution *model.StageExecution)
	AfterStage(ctx context.Context, execution *model.StageExecution, report *model.ValidationReport)
}

package logging

import (
	"context"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	port "github.com/tigerroll/scour/pkg/dq/core/port"
	logger "github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// --- Run Execution Listener ---

type LoggingRunListener struct{}

func NewLoggingRunListener() port.RunExecutionListener {
	return &LoggingRunListener{}
}

func (l *LoggingRunListener) BeforeRun(ctx context.Context, run *model.PipelineRun) {
	logger.Infof("RunExecutionListener: BeforeRun - RunID: %s, BatchID: %s", run.ID, run.BatchID)
}

func (l *LoggingRunListener) AfterRun(ctx context.Context, run *model.PipelineRun, report *model.Report) {
	logger.Infof("RunExecutionListener: AfterRun - RunID: %s, Status: %s, Errors: %d, Warnings: %d",
		run.ID, run.Status, report.Count(model.SeverityError), report.Count(model.SeverityWarning))
}

var _ port.RunExecutionListener = (*LoggingRunListener)(nil)

// --- Stage Execution Listener ---

type LoggingStageListener struct{}

func NewLoggingStageListener() port.StageExecutionListener {
	return &LoggingStageListener{}
}

func (l *LoggingStageListener) BeforeStage(ctx context.Context, execution *model.StageExecution) {
	logger.Infof("StageExecutionListener: BeforeStage - Stage: %s, RunID: %s, RecordsIn: %d",
		execution.StageName, execution.RunID, execution.RecordsIn)
}

func (l *LoggingStageListener) AfterStage(ctx context.Context, execution *model.StageExecution, report *model.ValidationReport) {
	logger.Infof("StageExecutionListener: AfterStage - Stage: %s, Duration: %s, RecordsOut: %d, Errors: %d, Warnings: %d",
		execution.StageName, execution.Duration, execution.RecordsOut, execution.ErrorCount, execution.WarningCount)
}

var _ port.StageExecutionListener = (*LoggingStageListener)(nil)

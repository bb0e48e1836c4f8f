package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
)

// Helper function to create a run advanced to the given status.
func newTestRun(status model.RunStatus) *model.PipelineRun {
	run := model.NewPipelineRun(model.NewID())
	run.Status = status
	return run
}

func TestPipelineRun_TransitionTo(t *testing.T) {
	// --- Valid forward transitions ---
	run := newTestRun(model.RunStatusPending)
	assert.NoError(t, run.TransitionTo(model.RunStatusValidating))
	assert.NoError(t, run.TransitionTo(model.RunStatusCleansing))
	assert.NoError(t, run.TransitionTo(model.RunStatusStandardizing))
	assert.NoError(t, run.TransitionTo(model.RunStatusFinalizing))
	assert.NoError(t, run.TransitionTo(model.RunStatusCompleted))

	// --- Aborted and Failed are reachable from every non-terminal state ---
	for _, from := range []model.RunStatus{
		model.RunStatusPending,
		model.RunStatusValidating,
		model.RunStatusCleansing,
		model.RunStatusStandardizing,
		model.RunStatusFinalizing,
	} {
		run = newTestRun(from)
		assert.NoError(t, run.TransitionTo(model.RunStatusAborted), "from %s", from)

		run = newTestRun(from)
		assert.NoError(t, run.TransitionTo(model.RunStatusFailed), "from %s", from)
	}

	// --- Skipping a stage state is invalid ---
	run = newTestRun(model.RunStatusPending)
	err := run.TransitionTo(model.RunStatusCleansing)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid state transition")

	// --- Backward transitions are invalid ---
	run = newTestRun(model.RunStatusCleansing)
	err = run.TransitionTo(model.RunStatusValidating)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid state transition")

	// --- Terminal states never transition ---
	for _, terminal := range []model.RunStatus{
		model.RunStatusCompleted,
		model.RunStatusAborted,
		model.RunStatusFailed,
	} {
		run = newTestRun(terminal)
		err = run.TransitionTo(model.RunStatusValidating)
		assert.Error(t, err, "from %s", terminal)
		err = run.TransitionTo(model.RunStatusFailed)
		assert.Error(t, err, "from %s", terminal)
	}
}

func TestRunStatus_IsTerminal(t *testing.T) {
	assert.True(t, model.RunStatusCompleted.IsTerminal())
	assert.True(t, model.RunStatusAborted.IsTerminal())
	assert.True(t, model.RunStatusFailed.IsTerminal())
	assert.False(t, model.RunStatusPending.IsTerminal())
	assert.False(t, model.RunStatusValidating.IsTerminal())
	assert.False(t, model.RunStatusFinalizing.IsTerminal())
}

func TestPipelineRun_MarkAsAborted(t *testing.T) {
	run := newTestRun(model.RunStatusValidating)
	run.MarkAsAborted("error rate 0.6 exceeds max_error_rate 0.5")

	assert.Equal(t, model.RunStatusAborted, run.Status)
	assert.NotNil(t, run.EndTime)
	assert.Contains(t, run.Failures, "error rate 0.6 exceeds max_error_rate 0.5")
}

func TestPipelineRun_MarkAsFailed(t *testing.T) {
	run := newTestRun(model.RunStatusCleansing)
	run.MarkAsFailed(errors.New("stage outliers panicked: boom"))

	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.NotNil(t, run.EndTime)
	assert.Len(t, run.Failures, 1)
}

func TestPipelineRun_AddFailure_SkipsDuplicates(t *testing.T) {
	run := newTestRun(model.RunStatusCleansing)
	run.AddFailure(errors.New("boom"))
	run.AddFailure(errors.New("boom"))
	run.AddFailure(errors.New("bang"))

	assert.Equal(t, model.FailureList{"boom", "bang"}, run.Failures)
}

func TestStageExecution_Lifecycle(t *testing.T) {
	run := model.NewPipelineRun(model.NewID())
	se := model.NewStageExecution(run.ID, "deduplicate")
	se.RecordsIn = 10

	report := model.NewValidationReport(model.NewID(), "deduplicate", 10)
	report.Append(model.Issue{RuleID: "dedup.duplicate", Severity: model.SeverityWarning})
	report.Append(model.Issue{RuleID: "dedup.near_duplicate", Severity: model.SeverityInfo})

	se.RecordsOut = 9
	se.RecordIssueCounts(report)
	se.Complete()
	run.AppendStageExecution(se)

	assert.Equal(t, 0, se.ErrorCount)
	assert.Equal(t, 1, se.WarningCount)
	assert.Equal(t, 1, se.InfoCount)
	assert.NotNil(t, se.EndTime)
	assert.GreaterOrEqual(t, se.Duration.Nanoseconds(), int64(0))
	assert.Len(t, run.StageExecutions, 1)
}

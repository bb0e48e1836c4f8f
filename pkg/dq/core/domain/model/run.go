package model

import (
	"fmt"
	"time"

	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
	logger "github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	RunStatusPending       RunStatus = "PENDING"
	RunStatusValidating    RunStatus = "VALIDATING"
	RunStatusCleansing     RunStatus = "CLEANSING"
	RunStatusStandardizing RunStatus = "STANDARDIZING"
	RunStatusFinalizing    RunStatus = "FINALIZING"
	RunStatusCompleted     RunStatus = "COMPLETED"
	RunStatusAborted       RunStatus = "ABORTED"
	RunStatusFailed        RunStatus = "FAILED"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal checks if the RunStatus represents a terminal state.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusAborted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// FailureList holds the fault messages accumulated on a run.
type FailureList []string

// isValidRunTransition checks if a state transition for a PipelineRun is
// valid. Transitions are strictly forward through the stage states; Aborted
// and Failed are reachable from every non-terminal state.
func isValidRunTransition(current, next RunStatus) bool {
	if current.IsTerminal() {
		return false
	}
	if next == RunStatusAborted || next == RunStatusFailed {
		return true
	}
	switch current {
	case RunStatusPending:
		return next == RunStatusValidating
	case RunStatusValidating:
		return next == RunStatusCleansing
	case RunStatusCleansing:
		return next == RunStatusStandardizing
	case RunStatusStandardizing:
		return next == RunStatusFinalizing
	case RunStatusFinalizing:
		return next == RunStatusCompleted
	default:
		return false
	}
}

// StageExecution records the metrics of a single stage of a run.
// The orchestrator is the only writer; entries are appended in stage order
// and never modified after the stage completes.
type StageExecution struct {
	ID           string
	StageName    string
	RunID        string
	StartTime    time.Time
	EndTime      *time.Time
	Duration     time.Duration
	RecordsIn    int
	RecordsOut   int
	ErrorCount   int
	WarningCount int
	InfoCount    int
	Failures     FailureList
}

// NewStageExecution creates a StageExecution for the named stage.
func NewStageExecution(runID, stageName string) *StageExecution {
	return &StageExecution{
		ID:        NewID(),
		StageName: stageName,
		RunID:     runID,
		StartTime: time.Now(),
		Failures:  make(FailureList, 0),
	}
}

// Complete sets the end time and duration of the stage.
func (se *StageExecution) Complete() {
	now := time.Now()
	se.EndTime = &now
	se.Duration = now.Sub(se.StartTime)
}

// RecordIssueCounts accumulates per-severity issue counts onto the stage.
func (se *StageExecution) RecordIssueCounts(report *ValidationReport) {
	if report == nil {
		return
	}
	se.ErrorCount += report.Count(SeverityError)
	se.WarningCount += report.Count(SeverityWarning)
	se.InfoCount += report.Count(SeverityInfo)
}

// AddFailure appends a fault message to the stage, skipping duplicates.
func (se *StageExecution) AddFailure(err error) {
	if err == nil {
		return
	}
	msg := exception.ExtractErrorMessage(err)
	for _, existing := range se.Failures {
		if existing == msg {
			return
		}
	}
	se.Failures = append(se.Failures, msg)
}

// PipelineRun is one execution instance of the orchestrator's state machine,
// from Pending to a terminal state. A run is never reused across batches.
type PipelineRun struct {
	ID              string
	BatchID         string
	StartTime       time.Time
	EndTime         *time.Time
	Status          RunStatus
	Failures        FailureList
	StageExecutions []*StageExecution
	LastUpdated     time.Time
}

// NewPipelineRun creates a PipelineRun in the Pending state.
func NewPipelineRun(batchID string) *PipelineRun {
	now := time.Now()
	return &PipelineRun{
		ID:              NewID(),
		BatchID:         batchID,
		StartTime:       now,
		Status:          RunStatusPending,
		Failures:        make(FailureList, 0),
		StageExecutions: make([]*StageExecution, 0),
		LastUpdated:     now,
	}
}

// TransitionTo safely transitions the state of the run.
func (pr *PipelineRun) TransitionTo(next RunStatus) error {
	if !isValidRunTransition(pr.Status, next) {
		return fmt.Errorf("PipelineRun (ID: %s): Invalid state transition: %s -> %s", pr.ID, pr.Status, next)
	}
	pr.Status = next
	pr.LastUpdated = time.Now()
	return nil
}

// MarkAsCompleted transitions the run to COMPLETED and sets the end time.
func (pr *PipelineRun) MarkAsCompleted() {
	if err := pr.TransitionTo(RunStatusCompleted); err != nil {
		logger.Warnf("Could not update PipelineRun (ID: %s) status to COMPLETED: %v", pr.ID, err)
		pr.Status = RunStatusCompleted
	}
	now := time.Now()
	pr.EndTime = &now
	pr.LastUpdated = now
}

// MarkAsAborted transitions the run to ABORTED. Aborted is the planned
// termination for a threshold breach; the reason is kept in the failure list.
func (pr *PipelineRun) MarkAsAborted(reason string) {
	if err := pr.TransitionTo(RunStatusAborted); err != nil {
		logger.Warnf("Could not update PipelineRun (ID: %s) status to ABORTED: %v", pr.ID, err)
		pr.Status = RunStatusAborted
	}
	if reason != "" {
		pr.Failures = append(pr.Failures, reason)
	}
	now := time.Now()
	pr.EndTime = &now
	pr.LastUpdated = now
}

// MarkAsFailed transitions the run to FAILED and records the fault.
func (pr *PipelineRun) MarkAsFailed(err error) {
	if terr := pr.TransitionTo(RunStatusFailed); terr != nil {
		logger.Warnf("Could not update PipelineRun (ID: %s) status to FAILED: %v", pr.ID, terr)
		pr.Status = RunStatusFailed
	}
	now := time.Now()
	pr.EndTime = &now
	pr.LastUpdated = now
	if err != nil {
		pr.AddFailure(err)
	}
}

// AddFailure appends a fault message to the run, skipping duplicates.
func (pr *PipelineRun) AddFailure(err error) {
	if err == nil {
		return
	}
	msg := exception.ExtractErrorMessage(err)
	for _, existing := range pr.Failures {
		if existing == msg {
			logger.Debugf("Skipped adding duplicate failure '%s' to PipelineRun (ID: %s).", msg, pr.ID)
			return
		}
	}
	pr.Failures = append(pr.Failures, msg)
	pr.LastUpdated = time.Now()
}

// AppendStageExecution appends a stage's metrics to the run accumulator.
func (pr *PipelineRun) AppendStageExecution(se *StageExecution) {
	pr.StageExecutions = append(pr.StageExecutions, se)
	pr.LastUpdated = time.Now()
}

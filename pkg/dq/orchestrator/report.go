package orchestrator

import (
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
)

// reportAccumulator collects what one run produces as it progresses, and
// assembles the final Report for any terminal path. Stage reports are kept
// in execution order, so two runs over the same batch and configuration
// yield identical reports.
type reportAccumulator struct {
	run          *model.PipelineRun
	input        *model.Batch
	finalBatch   *model.Batch
	stageReports []*model.ValidationReport
	dictionary   []model.DictionaryEntry

	initialErrorRate float64
	finalErrorRate   float64
	abortReason      string
	faultDetail      string
}

func newReportAccumulator(run *model.PipelineRun, input *model.Batch) *reportAccumulator {
	return &reportAccumulator{run: run, input: input}
}

// observe appends one stage report in execution order.
func (a *reportAccumulator) observe(report *model.ValidationReport) {
	if report != nil {
		a.stageReports = append(a.stageReports, report)
	}
}

// report assembles the Report for the run's current state.
func (a *reportAccumulator) report() *model.Report {
	return &model.Report{
		RunID:        a.run.ID,
		BatchID:      a.input.ID,
		Status:       a.run.Status,
		StageReports: a.stageReports,
		Stages:       a.run.StageExecutions,
		Dictionary:   a.dictionary,
		Quality:      a.quality(),
		AbortReason:  a.abortReason,
		FaultDetail:  a.faultDetail,
	}
}

func (a *reportAccumulator) quality() model.QualityMetrics {
	q := model.QualityMetrics{
		RecordsIn:        a.input.Len(),
		InitialErrorRate: a.initialErrorRate,
		FinalErrorRate:   a.finalErrorRate,
	}
	switch {
	case a.finalBatch != nil:
		q.RecordsOut = a.finalBatch.Len()
	case a.run.Status == model.RunStatusAborted:
		// An aborted run hands the input batch back unchanged.
		q.RecordsOut = a.input.Len()
	}
	if a.initialErrorRate > 0 {
		q.ErrorReduction = (a.initialErrorRate - a.finalErrorRate) / a.initialErrorRate
	}
	return q
}

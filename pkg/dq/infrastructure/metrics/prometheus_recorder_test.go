package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	inframetrics "github.com/tigerroll/scour/pkg/dq/infrastructure/metrics"
)

func TestPrometheusRecorder_CountersAndIssues(t *testing.T) {
	recorder := inframetrics.NewPrometheusRecorder()
	pr, ok := recorder.(*inframetrics.PrometheusRecorder)
	require.True(t, ok)
	ctx := context.Background()

	run := model.NewPipelineRun("batch-1")
	recorder.RecordRunStart(ctx, run)

	se := model.NewStageExecution(run.ID, "impute")
	se.RecordsIn = 5
	recorder.RecordStageStart(ctx, se)
	se.RecordsOut = 5
	se.Complete()
	recorder.RecordStageEnd(ctx, se)
	recorder.RecordIssues(ctx, "impute", model.SeverityInfo, 2)
	recorder.RecordIssues(ctx, "impute", model.SeverityInfo, 1)

	in, err := testutil.GatherAndCount(pr.GetRegistry(), "dq_stage_records_in_total")
	require.NoError(t, err)
	assert.Equal(t, 1, in)

	families, err := pr.GetRegistry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				values[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 5.0, values["dq_stage_records_in_total"])
	assert.Equal(t, 5.0, values["dq_stage_records_out_total"])
	assert.Equal(t, 3.0, values["dq_stage_issues_total"])
	assert.Equal(t, 1.0, values["dq_run_status_total"])
}

func TestPrometheusRecorder_RunEndRequiresEndTime(t *testing.T) {
	recorder := inframetrics.NewPrometheusRecorder()
	pr := recorder.(*inframetrics.PrometheusRecorder)
	ctx := context.Background()

	run := model.NewPipelineRun("batch-1")
	// EndTime unset: nothing is observed.
	recorder.RecordRunEnd(ctx, run)
	count, err := testutil.GatherAndCount(pr.GetRegistry(), "dq_run_duration_seconds")
	require.NoError(t, err)
	assert.Zero(t, count)

	run.MarkAsCompleted()
	recorder.RecordRunEnd(ctx, run)
	count, err = testutil.GatherAndCount(pr.GetRegistry(), "dq_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

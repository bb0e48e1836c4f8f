package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	port "github.com/tigerroll/scour/pkg/dq/core/port"
	"github.com/tigerroll/scour/pkg/dq/engine/cleansing"
	"github.com/tigerroll/scour/pkg/dq/orchestrator"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
)

// recordingListener counts listener callbacks for both listener contracts.
type recordingListener struct {
	beforeRuns, afterRuns     int
	beforeStages, afterStages int
	stageNames                []string
}

func (l *recordingListener) BeforeRun(ctx context.Context, run *model.PipelineRun) { l.beforeRuns++ }
func (l *recordingListener) AfterRun(ctx context.Context, run *model.PipelineRun, report *model.Report) {
	l.afterRuns++
}
func (l *recordingListener) BeforeStage(ctx context.Context, se *model.StageExecution) {
	l.beforeStages++
	l.stageNames = append(l.stageNames, se.StageName)
}
func (l *recordingListener) AfterStage(ctx context.Context, se *model.StageExecution, report *model.ValidationReport) {
	l.afterStages++
}

var _ port.RunExecutionListener = (*recordingListener)(nil)
var _ port.StageExecutionListener = (*recordingListener)(nil)

func ageNameSchema() model.Schema {
	return model.NewSchema(
		model.Field{Name: "Name", Type: model.FieldTypeString},
		model.Field{Name: "Age", Type: model.FieldTypeNumeric, Nullable: true},
	)
}

func ageNameBatch() *model.Batch {
	names := []string{"jane", "otieno", "amina", "baraka", "wanjiru"}
	ages := []interface{}{20, 22, nil, 24, 1000}
	records := make([]*model.Record, len(names))
	for i := range names {
		records[i] = model.NewRecord(map[string]interface{}{"Name": names[i], "Age": ages[i]})
	}
	return model.NewBatch(ageNameSchema(), records)
}

func TestOrchestrator_CompletedRun(t *testing.T) {
	cfg := config.NewConfig()
	pc := &cfg.Scour.Pipeline
	pc.StageOrder = []string{config.StageOutliers, config.StageImpute}
	pc.Fields = map[string]config.FieldPolicies{
		"Age": {
			Outlier:    &config.OutlierPolicy{Method: config.OutlierIQR, Action: config.ActionCap},
			Imputation: &config.ImputationPolicy{Strategy: config.ImputeMean},
		},
	}
	pc.Rules = []config.RuleConfig{
		{Name: "name_required", Type: "not_null", Field: "Name", Severity: model.SeverityError},
	}

	listener := &recordingListener{}
	orch := orchestrator.NewOrchestrator(cfg, nil, nil,
		[]port.RunExecutionListener{listener}, []port.StageExecutionListener{listener})

	b := ageNameBatch()
	out, report, err := orch.Run(context.Background(), b)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.NotNil(t, report)

	assert.Equal(t, model.RunStatusCompleted, report.Status)

	// The final batch carries snake_case fields, the outlier capped to 28
	// and the null imputed with the post-cap mean 23.5, all coerced to
	// float64.
	assert.Equal(t, "age", out.Schema.Fields[1].Name)
	wantAges := []float64{20, 22, 23.5, 24, 28}
	for i, want := range wantAges {
		assert.InDelta(t, want, out.Records[i].Values["age"], 1e-9, "record %d", i)
	}

	// Stage reports and executions follow the fixed pipeline order.
	wantStages := []string{
		orchestrator.StagePrecheck, config.StageOutliers, config.StageImpute,
		"standardize", orchestrator.StagePostcheck,
	}
	require.Len(t, report.StageReports, len(wantStages))
	for i, want := range wantStages {
		assert.Equal(t, want, report.StageReports[i].StageName)
	}
	require.Len(t, report.Stages, len(wantStages))
	for i, want := range wantStages {
		assert.Equal(t, want, report.Stages[i].StageName)
	}
	assert.Equal(t, wantStages, listener.stageNames)

	assert.Equal(t, 1, listener.beforeRuns)
	assert.Equal(t, 1, listener.afterRuns)
	assert.Equal(t, len(wantStages), listener.beforeStages)
	assert.Equal(t, len(wantStages), listener.afterStages)

	// Quality metrics and dictionary come from the final batch.
	assert.Equal(t, 5, report.Quality.RecordsIn)
	assert.Equal(t, 5, report.Quality.RecordsOut)
	require.Len(t, report.Dictionary, 2)
	assert.Equal(t, "name", report.Dictionary[0].Field)
	assert.Equal(t, "age", report.Dictionary[1].Field)
	require.NotNil(t, report.Dictionary[1].Max)
	assert.InDelta(t, 28.0, *report.Dictionary[1].Max, 1e-9)

	// The input batch is untouched.
	assert.True(t, b.Records[2].IsMissing("Age"))
	assert.Equal(t, 1000, b.Records[4].Values["Age"])
}

func TestOrchestrator_ThresholdBreachAborts(t *testing.T) {
	cfg := config.NewConfig()
	pc := &cfg.Scour.Pipeline
	pc.StageOrder = []string{config.StageImpute}
	pc.Thresholds.MaxErrorRate = 0.5
	pc.Rules = []config.RuleConfig{
		{Name: "age_required", Type: "not_null", Field: "Age", Severity: model.SeverityError},
	}

	schema := ageNameSchema()
	records := []*model.Record{
		model.NewRecord(map[string]interface{}{"Name": "a", "Age": 20}),
		model.NewRecord(map[string]interface{}{"Name": "b", "Age": nil}),
		model.NewRecord(map[string]interface{}{"Name": "c", "Age": nil}),
		model.NewRecord(map[string]interface{}{"Name": "d", "Age": nil}),
		model.NewRecord(map[string]interface{}{"Name": "e", "Age": 24}),
	}
	b := model.NewBatch(schema, records)

	orch := orchestrator.NewOrchestrator(cfg, nil, nil, nil, nil)
	out, report, err := orch.Run(context.Background(), b)

	// A breach is a gate, not a fault: no error, and the caller gets the
	// input batch back unchanged.
	require.NoError(t, err)
	assert.Same(t, b, out)
	assert.Equal(t, model.RunStatusAborted, report.Status)
	assert.Contains(t, report.AbortReason, "max_error_rate")

	// Only the pre-check ran.
	require.Len(t, report.StageReports, 1)
	assert.Equal(t, orchestrator.StagePrecheck, report.StageReports[0].StageName)
	assert.Equal(t, 5, report.Quality.RecordsOut)
	assert.InDelta(t, 0.6, report.Quality.InitialErrorRate, 1e-9)
}

func TestOrchestrator_ConfigRejectedBeforeRunCreation(t *testing.T) {
	cfg := config.NewConfig()
	pc := &cfg.Scour.Pipeline
	pc.Rules = []config.RuleConfig{
		{Name: "r1", Type: "not_null", Field: "NoSuchField", Severity: model.SeverityError},
	}

	orch := orchestrator.NewOrchestrator(cfg, nil, nil, nil, nil)
	out, report, err := orch.Run(context.Background(), ageNameBatch())

	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
	assert.Nil(t, out)
	assert.Nil(t, report)
}

func TestOrchestrator_NonConformingBatchRejected(t *testing.T) {
	cfg := config.NewConfig()
	schema := ageNameSchema()
	records := []*model.Record{
		model.NewRecord(map[string]interface{}{"Name": "a", "Age": 20, "bogus": 1}),
	}
	b := model.NewBatch(schema, records)

	orch := orchestrator.NewOrchestrator(cfg, nil, nil, nil, nil)
	out, report, err := orch.Run(context.Background(), b)

	require.Error(t, err)
	assert.True(t, exception.IsDataError(err))
	assert.Nil(t, out)
	assert.Nil(t, report)
}

// explodingCleanser panics mid-stage to exercise the fault boundary.
type explodingCleanser struct{}

func (c *explodingCleanser) Name() string { return "explode" }
func (c *explodingCleanser) Clean(ctx context.Context, b *model.Batch) (*model.Batch, *model.ValidationReport, error) {
	panic("kaboom")
}

func TestOrchestrator_StagePanicFailsRun(t *testing.T) {
	cleansing.RegisterCleanserKind("explode", func(cfg *config.PipelineConfig, schema model.Schema) (cleansing.Cleanser, error) {
		return &explodingCleanser{}, nil
	})

	cfg := config.NewConfig()
	cfg.Scour.Pipeline.StageOrder = []string{"explode"}

	orch := orchestrator.NewOrchestrator(cfg, nil, nil, nil, nil)
	out, report, err := orch.Run(context.Background(), ageNameBatch())

	require.Error(t, err)
	assert.True(t, exception.IsFault(err))
	assert.Nil(t, out)
	require.NotNil(t, report)
	assert.Equal(t, model.RunStatusFailed, report.Status)
	assert.Contains(t, report.FaultDetail, "panicked")

	// The failed stage execution is on the run with its failure recorded.
	last := report.Stages[len(report.Stages)-1]
	assert.Equal(t, "explode", last.StageName)
	assert.NotEmpty(t, last.Failures)
}

func TestOrchestrator_DeterministicReports(t *testing.T) {
	build := func() (*orchestrator.Orchestrator, *model.Batch) {
		cfg := config.NewConfig()
		pc := &cfg.Scour.Pipeline
		pc.StageOrder = []string{config.StageOutliers, config.StageImpute}
		pc.Workers = 8
		pc.Fields = map[string]config.FieldPolicies{
			"Age": {
				Outlier:    &config.OutlierPolicy{Method: config.OutlierIQR, Action: config.ActionCap},
				Imputation: &config.ImputationPolicy{Strategy: config.ImputeMean},
			},
		}
		pc.Rules = []config.RuleConfig{
			{Name: "name_required", Type: "not_null", Field: "Name", Severity: model.SeverityError},
			{Name: "age_range", Type: "range", Field: "Age", Severity: model.SeverityWarning,
				Properties: map[string]string{"min": "0", "max": "120"}},
		}
		return orchestrator.NewOrchestrator(cfg, nil, nil, nil, nil), ageNameBatch()
	}

	orch1, b1 := build()
	_, first, err := orch1.Run(context.Background(), b1)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		orch2, b2 := build()
		_, again, err := orch2.Run(context.Background(), b2)
		require.NoError(t, err)

		require.Len(t, again.StageReports, len(first.StageReports))
		for s := range first.StageReports {
			want, got := first.StageReports[s], again.StageReports[s]
			require.Len(t, got.Issues, len(want.Issues), "stage %s", want.StageName)
			for j := range want.Issues {
				assert.Equal(t, want.Issues[j].RuleID, got.Issues[j].RuleID)
				assert.Equal(t, want.Issues[j].Field, got.Issues[j].Field)
				assert.Equal(t, want.Issues[j].Severity, got.Issues[j].Severity)
			}
		}
	}
}

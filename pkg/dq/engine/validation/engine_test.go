package validation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/stats"
	"github.com/tigerroll/scour/pkg/dq/engine/validation"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
)

func customerBatch() *model.Batch {
	schema := model.NewSchema(
		model.Field{Name: "email", Type: model.FieldTypeString, Nullable: true},
		model.Field{Name: "phone", Type: model.FieldTypeString, Nullable: true},
		model.Field{Name: "age", Type: model.FieldTypeNumeric, Nullable: true},
	)
	records := []*model.Record{
		model.NewRecord(map[string]interface{}{"email": "alice@example.com", "phone": "+254712345678", "age": 30}),
		model.NewRecord(map[string]interface{}{"email": "not-an-email", "phone": "0712345678", "age": 200}),
		model.NewRecord(map[string]interface{}{"email": nil, "phone": "12345", "age": nil}),
	}
	return model.NewBatch(schema, records)
}

func TestBuildRuleSet_Builtins(t *testing.T) {
	rs, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "email_shape", Type: "email", Field: "email", Severity: model.SeverityWarning},
		{Name: "phone_shape", Type: "phone", Field: "phone"},
		{Name: "age_range", Type: "range", Field: "age", Properties: map[string]string{"min": "0", "max": "130"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rs.Len())
}

func TestBuildRuleSet_UnknownKind(t *testing.T) {
	_, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "r1", Type: "checksum", Field: "email"},
	})
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
	assert.Equal(t, "pipeline.rules[r1].type", exception.ConfigKeyOf(err))
}

func TestBuildRuleSet_InvalidProperties(t *testing.T) {
	_, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "r1", Type: "range", Field: "age", Properties: map[string]string{"min": "10", "max": "5"}},
	})
	require.Error(t, err)
	assert.Equal(t, "pipeline.rules[r1].properties", exception.ConfigKeyOf(err))

	_, err = validation.BuildRuleSet([]config.RuleConfig{
		{Name: "r2", Type: "pattern", Field: "email", Properties: map[string]string{"pattern": "("}},
	})
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
}

func TestEngine_Evaluate(t *testing.T) {
	b := customerBatch()
	rs, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "email_shape", Type: "email", Field: "email", Severity: model.SeverityWarning, Message: "bad email"},
		{Name: "age_range", Type: "range", Field: "age", Properties: map[string]string{"min": "0", "max": "130"}},
	})
	require.NoError(t, err)

	report := validation.NewEngine(0).Evaluate(context.Background(), "validate", b, rs)

	assert.Equal(t, "validate", report.StageName)
	assert.Equal(t, 3, report.RecordCount)
	// Record 1 fails email, record 2 fails both (missing values fail rules),
	// record 1 also fails the range rule.
	assert.Equal(t, 2, report.Count(model.SeverityWarning))
	assert.Equal(t, 2, report.Count(model.SeverityError))

	// Issues carry the rule, record, and field.
	first := report.Issues[0]
	assert.Equal(t, "email_shape", first.RuleID)
	assert.Equal(t, b.Records[1].ID, first.RecordID)
	assert.Equal(t, "email", first.Field)
	assert.Equal(t, "bad email", first.Message)
}

func TestEngine_Evaluate_Deterministic(t *testing.T) {
	b := customerBatch()
	rs, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "email_shape", Type: "email", Field: "email"},
		{Name: "phone_shape", Type: "phone", Field: "phone"},
		{Name: "age_required", Type: "not_null", Field: "age"},
	})
	require.NoError(t, err)

	// Many workers, same report: issues are ordered by rule registration
	// then record order regardless of scheduling.
	engine := validation.NewEngine(8)
	baseline := engine.Evaluate(context.Background(), "validate", b, rs)
	for i := 0; i < 20; i++ {
		report := engine.Evaluate(context.Background(), "validate", b, rs)
		assert.Equal(t, baseline.Issues, report.Issues, "iteration %d", i)
	}
}

func TestEngine_Evaluate_PanicBecomesErrorIssue(t *testing.T) {
	validation.RegisterRuleKind("explode", func(field string, props map[string]string) (validation.Predicate, error) {
		return func(r *model.Record, sc *stats.Context) bool {
			panic("kaboom")
		}, nil
	})

	b := customerBatch()
	rs, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "bomb", Type: "explode", Field: "email", Severity: model.SeverityInfo},
		{Name: "age_required", Type: "not_null", Field: "age"},
	})
	require.NoError(t, err)

	report := validation.NewEngine(0).Evaluate(context.Background(), "validate", b, rs)

	// Every record yields an error-severity issue for the faulting rule,
	// regardless of its configured severity, and the other rule still ran.
	bombIssues := 0
	for _, issue := range report.Issues {
		if issue.RuleID == "bomb" {
			bombIssues++
			assert.Equal(t, model.SeverityError, issue.Severity)
			assert.Contains(t, issue.Message, "faulted")
		}
	}
	assert.Equal(t, 3, bombIssues)
	assert.Equal(t, 4, len(report.Issues))
}

func TestEngine_Evaluate_EmptyInputs(t *testing.T) {
	b := customerBatch()
	empty := validation.NewRuleSet()
	report := validation.NewEngine(0).Evaluate(context.Background(), "validate", b, empty)
	assert.Empty(t, report.Issues)

	rs, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "age_required", Type: "not_null", Field: "age"},
	})
	require.NoError(t, err)
	noRecords := model.NewBatch(b.Schema, nil)
	report = validation.NewEngine(0).Evaluate(context.Background(), "validate", noRecords, rs)
	assert.Empty(t, report.Issues)
}

func TestRegistry_CustomRuleKind(t *testing.T) {
	assert.False(t, validation.IsRuleKindRegistered("always_ok"))
	validation.RegisterRuleKind("always_ok", func(field string, props map[string]string) (validation.Predicate, error) {
		return func(r *model.Record, sc *stats.Context) bool { return true }, nil
	})
	assert.True(t, validation.IsRuleKindRegistered("always_ok"))

	rs, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "ok", Type: "always_ok", Field: "email"},
	})
	require.NoError(t, err)
	report := validation.NewEngine(0).Evaluate(context.Background(), "validate", customerBatch(), rs)
	assert.Empty(t, report.Issues)
}

func TestEngine_Evaluate_ReportCarriesStageLabel(t *testing.T) {
	b := customerBatch()
	rs, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "age_required", Type: "not_null", Field: "age"},
	})
	require.NoError(t, err)

	// The same rule set runs as a pre-check and again as a post-check; the
	// two reports must be distinguishable by stage name.
	engine := validation.NewEngine(0)
	pre := engine.Evaluate(context.Background(), "validate", b, rs)
	post := engine.Evaluate(context.Background(), "postcheck", b, rs)
	assert.Equal(t, "validate", pre.StageName)
	assert.Equal(t, "postcheck", post.StageName)
}

func TestZScoreRule_UsesSharedStatistics(t *testing.T) {
	schema := model.NewSchema(model.Field{Name: "x", Type: model.FieldTypeNumeric, Nullable: true})
	values := []interface{}{10, 11, 9, 10, 12, 8, 10, 11, 9, 1000}
	records := make([]*model.Record, len(values))
	for i, v := range values {
		records[i] = model.NewRecord(map[string]interface{}{"x": v})
	}
	b := model.NewBatch(schema, records)

	rs, err := validation.BuildRuleSet([]config.RuleConfig{
		{Name: "x_zscore", Type: "zscore", Field: "x", Severity: model.SeverityWarning,
			Properties: map[string]string{"threshold": "2.5"}},
	})
	require.NoError(t, err)

	report := validation.NewEngine(0).Evaluate(context.Background(), "validate", b, rs)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, records[9].ID, report.Issues[0].RecordID)
}

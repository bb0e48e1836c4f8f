package cleansing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/engine/cleansing"
)

func textStage(t *testing.T, pc *config.PipelineConfig, schema model.Schema) cleansing.Cleanser {
	t.Helper()
	pc.StageOrder = []string{config.StageText}
	stages, err := cleansing.BuildStages(pc, schema)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	return stages[0]
}

func textBatch(field string, values ...interface{}) *model.Batch {
	schema := model.NewSchema(model.Field{Name: field, Type: model.FieldTypeString, Nullable: true})
	records := make([]*model.Record, len(values))
	for i, v := range values {
		records[i] = model.NewRecord(map[string]interface{}{field: v})
	}
	return model.NewBatch(schema, records)
}

func TestTextStandardizer_TrimAndCase(t *testing.T) {
	cfg := config.NewConfig()
	pc := &cfg.Scour.Pipeline
	pc.Fields = map[string]config.FieldPolicies{
		"city": {Text: &config.TextPolicy{Trim: true, Case: config.CaseTitle}},
	}

	b := textBatch("city", "  nairobi  ", "MOMBASA", "Kisumu", nil)
	stage := textStage(t, pc, b.Schema)
	out, report, err := stage.Clean(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, "Nairobi", out.Records[0].Values["city"])
	assert.Equal(t, "Mombasa", out.Records[1].Values["city"])
	assert.Equal(t, "Kisumu", out.Records[2].Values["city"])
	assert.True(t, out.Records[3].IsMissing("city"))
	assert.Empty(t, report.Issues)

	// The input batch keeps its raw values.
	assert.Equal(t, "  nairobi  ", b.Records[0].Values["city"])
}

func TestTextStandardizer_CanonicalEmail(t *testing.T) {
	cfg := config.NewConfig()
	pc := &cfg.Scour.Pipeline
	pc.Fields = map[string]config.FieldPolicies{
		"email": {Text: &config.TextPolicy{Trim: true, Canonical: config.CanonicalEmail}},
	}

	b := textBatch("email", " Jane.Doe@Example.COM ", "not-an-email")
	stage := textStage(t, pc, b.Schema)
	out, report, err := stage.Clean(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, "jane.doe@example.com", out.Records[0].Values["email"])

	// A value with no canonical form is left unchanged and reported, never
	// dropped.
	assert.Equal(t, "not-an-email", out.Records[1].Values["email"])
	require.Equal(t, 1, report.Count(model.SeverityWarning))
	assert.Equal(t, "text.email", report.Issues[0].RuleID)
	assert.Equal(t, out.Records[1].ID, report.Issues[0].RecordID)
}

func TestTextStandardizer_CanonicalPhone(t *testing.T) {
	cfg := config.NewConfig()
	pc := &cfg.Scour.Pipeline
	pc.Fields = map[string]config.FieldPolicies{
		"phone": {Text: &config.TextPolicy{Trim: true, Canonical: config.CanonicalPhone}},
	}

	b := textBatch("phone",
		"712 345 678",      // bare subscriber number
		"0712-345-678",     // national format
		"254712345678",     // country code, no plus
		"+254 712 345 678", // already canonical, with separators
		"12345",            // no canonical form
	)
	stage := textStage(t, pc, b.Schema)
	out, report, err := stage.Clean(context.Background(), b)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		assert.Equal(t, "+254712345678", out.Records[i].Values["phone"], "record %d", i)
	}
	assert.Equal(t, "12345", out.Records[4].Values["phone"])
	assert.Equal(t, 1, report.Count(model.SeverityWarning))
}

func TestTextStandardizer_Idempotent(t *testing.T) {
	cfg := config.NewConfig()
	pc := &cfg.Scour.Pipeline
	pc.Fields = map[string]config.FieldPolicies{
		"email": {Text: &config.TextPolicy{Trim: true, Case: config.CaseLower, Canonical: config.CanonicalEmail}},
	}

	b := textBatch("email", " Jane@Example.com ", "bogus")
	stage := textStage(t, pc, b.Schema)

	once, firstReport, err := stage.Clean(context.Background(), b)
	require.NoError(t, err)
	twice, secondReport, err := stage.Clean(context.Background(), once)
	require.NoError(t, err)

	for i := range once.Records {
		assert.Equal(t, once.Records[i].Values["email"], twice.Records[i].Values["email"])
	}
	// The unchanged non-canonical value is re-reported each pass.
	assert.Equal(t, firstReport.Count(model.SeverityWarning), secondReport.Count(model.SeverityWarning))
}

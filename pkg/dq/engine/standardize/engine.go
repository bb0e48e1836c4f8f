package standardize

import (
	"context"
	"fmt"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

const moduleName = "standardize"

// StageName identifies the standardization stage in reports and metrics.
const StageName = "standardize"

// Engine applies the standardization stage: field renaming per the naming
// convention, cell coercion to the schema types, and dictionary derivation
// over the result. The input batch is never mutated.
type Engine struct {
	naming     config.NamingConvention
	dateLayout string
	plan       map[string]string
}

// NewEngine prepares a standardization engine for one schema. The naming
// plan is computed and collision-checked up front so a bad convention fails
// before any run starts.
func NewEngine(cfg *config.PipelineConfig, schema model.Schema) (*Engine, error) {
	naming := cfg.Naming
	if naming == "" {
		naming = config.NamingSnakeCase
	}
	plan := NamingPlan(schema, naming)
	if err := CheckCollisions(schema, plan); err != nil {
		return nil, err
	}
	return &Engine{
		naming:     naming,
		dateLayout: cfg.DateFormat,
		plan:       plan,
	}, nil
}

// Plan exposes the source-to-target field name mapping. Callers use it to
// translate field references that predate the rename, such as validation
// rule targets for the post-standardization check.
func (e *Engine) Plan() map[string]string {
	return e.plan
}

// Standardize renames every field per the naming plan, coerces every cell
// to its declared type, and returns the standardized batch. A cell that
// cannot be coerced becomes null and yields an error issue; the stage
// itself still succeeds.
func (e *Engine) Standardize(ctx context.Context, b *model.Batch) (*model.Batch, *model.ValidationReport, error) {
	report := model.NewValidationReport(b.ID, StageName, b.Len())

	out := b.Clone()
	out.Schema = out.Schema.Rename(e.plan)
	renames := 0
	for _, r := range out.Records {
		for from, to := range e.plan {
			if from == to {
				continue
			}
			if v, ok := r.Values[from]; ok {
				r.Values[to] = v
				delete(r.Values, from)
			}
		}
	}
	for from, to := range e.plan {
		if from != to {
			renames++
		}
	}
	if renames > 0 {
		logger.Infof("Standardizer: renamed %d fields to %s.", renames, e.naming)
	}

	for _, f := range out.Schema.Fields {
		for _, r := range out.Records {
			if r.IsMissing(f.Name) {
				continue
			}
			coerced, err := coerceValue(r.Values[f.Name], f.Type, e.dateLayout)
			if err != nil {
				r.Set(f.Name, nil)
				report.Append(model.Issue{
					RuleID:   "coerce." + f.Name,
					RecordID: r.ID,
					Field:    f.Name,
					Severity: model.SeverityError,
					Message:  fmt.Sprintf("cannot coerce to %s: %v", f.Type, err),
				})
				continue
			}
			r.Set(f.Name, coerced)
		}
	}
	return out, report, nil
}

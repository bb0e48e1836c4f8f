package cleansing

import (
	"context"
	"fmt"
	"sync"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/stats"
	"github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// imputeTarget pairs one field with its imputation policy.
type imputeTarget struct {
	field  string
	policy config.ImputationPolicy
}

// Imputer fills missing values per the configured ImputationPolicy. The
// fill statistic for every field is computed from that field's non-missing
// values as they exist in the stage's input batch, before any fill is
// applied, so fills never feed each other.
type Imputer struct {
	targets []imputeTarget
}

func newImputer(cfg *config.PipelineConfig, schema model.Schema) (Cleanser, error) {
	var targets []imputeTarget
	for _, f := range schema.Fields {
		policies := cfg.PoliciesFor(f.Name)
		if policies.Imputation == nil {
			continue
		}
		policy := *policies.Imputation
		if policy.Strategy == config.ImputeDefault {
			if f.Type == model.FieldTypeNumeric {
				policy.Strategy = config.ImputeMedian
			} else {
				policy.Strategy = config.ImputeMode
			}
		}
		targets = append(targets, imputeTarget{field: f.Name, policy: policy})
	}
	// Targets follow schema field order so reports are reproducible.
	return &Imputer{targets: targets}, nil
}

// Name implements Cleanser.
func (im *Imputer) Name() string {
	return config.StageImpute
}

// Clean implements Cleanser.
func (im *Imputer) Clean(ctx context.Context, b *model.Batch) (*model.Batch, *model.ValidationReport, error) {
	report := model.NewValidationReport(b.ID, im.Name(), b.Len())
	if len(im.targets) == 0 || b.Len() == 0 {
		return b, report, nil
	}

	// Compute phase: fill statistics per field, on concurrent workers, each
	// reading a private snapshot of its own column.
	type fillResult struct {
		value interface{}
		ok    bool
	}
	fills := make([]fillResult, len(im.targets))
	var wg sync.WaitGroup
	for i, target := range im.targets {
		wg.Add(1)
		go func(i int, target imputeTarget) {
			defer wg.Done()
			snapshot := stats.Snap(b, target.field)
			v, ok := fillValue(target.policy, snapshot)
			fills[i] = fillResult{value: v, ok: ok}
		}(i, target)
	}
	wg.Wait()

	// Apply phase: serial, in schema target order then record order.
	out := b.Clone()
	for i, target := range im.targets {
		fill := fills[i]
		if !fill.ok {
			report.Append(model.Issue{
				RuleID:   "impute." + target.field,
				Field:    target.field,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("cannot compute %s for field %q: no usable values", target.policy.Strategy, target.field),
			})
			continue
		}
		filled := 0
		for _, r := range out.Records {
			if !r.IsMissing(target.field) {
				continue
			}
			r.Set(target.field, fill.value)
			filled++
			report.Append(model.Issue{
				RuleID:   "impute." + target.field,
				RecordID: r.ID,
				Field:    target.field,
				Severity: model.SeverityInfo,
				Message:  fmt.Sprintf("missing value filled with %s %v", target.policy.Strategy, fill.value),
			})
		}
		if filled > 0 {
			logger.Debugf("Imputer: filled %d missing values in field %q with %s.", filled, target.field, target.policy.Strategy)
		}
	}
	return out, report, nil
}

// fillValue computes the fill statistic for one policy over one snapshot.
func fillValue(policy config.ImputationPolicy, snapshot *stats.Snapshot) (interface{}, bool) {
	switch policy.Strategy {
	case config.ImputeMean:
		v, ok := snapshot.Mean()
		return v, ok
	case config.ImputeMedian:
		v, ok := snapshot.Median()
		return v, ok
	case config.ImputeMode:
		return snapshot.Mode()
	case config.ImputeConstant:
		return policy.Constant, policy.Constant != nil
	default:
		return nil, false
	}
}

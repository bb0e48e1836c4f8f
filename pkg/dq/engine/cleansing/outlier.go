package cleansing

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cast"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/stats"
	"github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// outlierTarget pairs one field with its outlier policy.
type outlierTarget struct {
	field  string
	policy config.OutlierPolicy
}

// bounds is the closed interval of acceptable values for one field.
type bounds struct {
	lower, upper float64
	ok           bool
}

// OutlierHandler detects and handles out-of-bounds numeric values. Each
// field's values are judged against bounds derived from a private snapshot
// of that field's non-missing values in the stage's input batch. For the
// IQR and zscore methods the value under test is excluded from its own
// bound computation, so a single extreme value cannot widen the interval it
// is measured against; the percentile method is a fixed cut over the whole
// column and uses the full snapshot. Snapshots are taken before anything is
// capped or removed, so the bounds for one field never depend on the
// processing of another.
type OutlierHandler struct {
	targets []outlierTarget
}

func newOutlierHandler(cfg *config.PipelineConfig, schema model.Schema) (Cleanser, error) {
	var targets []outlierTarget
	for _, f := range schema.Fields {
		policies := cfg.PoliciesFor(f.Name)
		if policies.Outlier == nil {
			continue
		}
		targets = append(targets, outlierTarget{field: f.Name, policy: *policies.Outlier})
	}
	return &OutlierHandler{targets: targets}, nil
}

// Name implements Cleanser.
func (oh *OutlierHandler) Name() string {
	return config.StageOutliers
}

// Clean implements Cleanser.
func (oh *OutlierHandler) Clean(ctx context.Context, b *model.Batch) (*model.Batch, *model.ValidationReport, error) {
	report := model.NewValidationReport(b.ID, oh.Name(), b.Len())
	if len(oh.targets) == 0 || b.Len() == 0 {
		return b, report, nil
	}

	// Compute phase: per-field snapshots of the input batch, on concurrent
	// workers.
	snaps := make([]*stats.Snapshot, len(oh.targets))
	var wg sync.WaitGroup
	for i, target := range oh.targets {
		wg.Add(1)
		go func(i int, field string) {
			defer wg.Done()
			snaps[i] = stats.Snap(b, field)
		}(i, target.field)
	}
	wg.Wait()

	// Apply phase: serial, in target order then record order. Leave-one-out
	// bounds are identical for equal values, so the cache keys on the value
	// itself.
	out := b.Clone()
	removed := make(map[string]bool)
	for i, target := range oh.targets {
		snap := snaps[i]
		if !snap.IsNumeric() {
			logger.Debugf("OutlierHandler: field %q has no numeric snapshot, skipping.", target.field)
			continue
		}
		fixedCut := target.policy.Method == config.OutlierPercentile
		var fixed bounds
		if fixedCut {
			fixed = computeBounds(target.policy, snap)
		}
		cache := make(map[float64]bounds)
		for _, r := range out.Records {
			if r.IsMissing(target.field) {
				continue
			}
			v, err := cast.ToFloat64E(r.Values[target.field])
			if err != nil {
				continue // non-numeric cells are the coercion stage's concern
			}
			fb := fixed
			if !fixedCut {
				var cached bool
				if fb, cached = cache[v]; !cached {
					fb = computeBounds(target.policy, snap.Without(v))
					cache[v] = fb
				}
			}
			if !fb.ok || (v >= fb.lower && v <= fb.upper) {
				continue
			}
			oh.applyAction(r, target, v, fb, removed, report)
		}
	}

	if len(removed) > 0 {
		survivors := make([]*model.Record, 0, len(out.Records)-len(removed))
		for _, r := range out.Records {
			if !removed[r.ID] {
				survivors = append(survivors, r)
			}
		}
		logger.Infof("OutlierHandler: removed %d outlier records (%d -> %d).", len(removed), b.Len(), len(survivors))
		out.Records = survivors
	}
	return out, report, nil
}

func (oh *OutlierHandler) applyAction(r *model.Record, target outlierTarget, v float64, fb bounds, removed map[string]bool, report *model.ValidationReport) {
	switch target.policy.Action {
	case config.ActionCap:
		capped := fb.lower
		if v > fb.upper {
			capped = fb.upper
		}
		r.Set(target.field, capped)
		report.Append(model.Issue{
			RuleID:   "outlier." + target.field,
			RecordID: r.ID,
			Field:    target.field,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("value %v outside [%v, %v], capped to %v", v, fb.lower, fb.upper, capped),
		})
	case config.ActionRemove:
		removed[r.ID] = true
		report.Append(model.Issue{
			RuleID:   "outlier." + target.field,
			RecordID: r.ID,
			Field:    target.field,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("value %v outside [%v, %v], record removed", v, fb.lower, fb.upper),
		})
	default: // flag
		report.Append(model.Issue{
			RuleID:   "outlier." + target.field,
			RecordID: r.ID,
			Field:    target.field,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("value %v outside [%v, %v]", v, fb.lower, fb.upper),
		})
	}
}

// computeBounds derives the acceptance interval for one policy from one
// column snapshot.
func computeBounds(policy config.OutlierPolicy, snapshot *stats.Snapshot) bounds {
	switch policy.Method {
	case config.OutlierIQR:
		k := policy.K
		if k == 0 {
			k = 1.5
		}
		q1, ok1 := snapshot.Quantile(0.25)
		q3, ok3 := snapshot.Quantile(0.75)
		if !ok1 || !ok3 {
			return bounds{}
		}
		iqr := q3 - q1
		return bounds{lower: q1 - k*iqr, upper: q3 + k*iqr, ok: true}

	case config.OutlierZScore:
		t := policy.ZThreshold
		if t == 0 {
			t = 3.0
		}
		mean, okMean := snapshot.Mean()
		stddev, okStd := snapshot.StdDev()
		if !okMean || !okStd || stddev == 0 {
			return bounds{}
		}
		return bounds{lower: mean - t*stddev, upper: mean + t*stddev, ok: true}

	case config.OutlierPercentile:
		lowerPct, upperPct := policy.LowerPct, policy.UpperPct
		if lowerPct == 0 && upperPct == 0 {
			lowerPct, upperPct = 1, 99
		}
		lower, ok1 := snapshot.Quantile(lowerPct / 100)
		upper, ok2 := snapshot.Quantile(upperPct / 100)
		if !ok1 || !ok2 {
			return bounds{}
		}
		return bounds{lower: lower, upper: upper, ok: true}

	default:
		return bounds{}
	}
}

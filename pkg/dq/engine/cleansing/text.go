package cleansing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
)

var (
	emailShape = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	digitsOnly = regexp.MustCompile(`\D`)
)

// textTarget pairs one field with its text policy.
type textTarget struct {
	field  string
	policy config.TextPolicy
}

// TextStandardizer normalizes string values: whitespace trimming, casing,
// and canonical forms for emails and phone numbers. A value that cannot be
// canonicalized is left unchanged and reported as a warning. All transforms
// are idempotent, so re-running the stage is a no-op.
type TextStandardizer struct {
	targets []textTarget
	titler  cases.Caser
}

func newTextStandardizer(cfg *config.PipelineConfig, schema model.Schema) (Cleanser, error) {
	var targets []textTarget
	for _, f := range schema.Fields {
		policies := cfg.PoliciesFor(f.Name)
		if policies.Text == nil {
			continue
		}
		targets = append(targets, textTarget{field: f.Name, policy: *policies.Text})
	}
	return &TextStandardizer{
		targets: targets,
		titler:  cases.Title(language.Und),
	}, nil
}

// Name implements Cleanser.
func (ts *TextStandardizer) Name() string {
	return config.StageText
}

// Clean implements Cleanser.
func (ts *TextStandardizer) Clean(ctx context.Context, b *model.Batch) (*model.Batch, *model.ValidationReport, error) {
	report := model.NewValidationReport(b.ID, ts.Name(), b.Len())
	if len(ts.targets) == 0 || b.Len() == 0 {
		return b, report, nil
	}

	out := b.Clone()
	for _, target := range ts.targets {
		for _, r := range out.Records {
			if r.IsMissing(target.field) {
				continue
			}
			raw := cast.ToString(r.Values[target.field])
			normalized, ok := ts.normalize(raw, target.policy)
			if !ok {
				report.Append(model.Issue{
					RuleID:   "text." + target.field,
					RecordID: r.ID,
					Field:    target.field,
					Severity: model.SeverityWarning,
					Message:  fmt.Sprintf("value %q has no %s canonical form, left unchanged", raw, target.policy.Canonical),
				})
				continue
			}
			if normalized != raw {
				r.Set(target.field, normalized)
			}
		}
	}
	return out, report, nil
}

// normalize applies the policy's transforms in order: trim, case, canonical
// form. It reports false when a canonical form is requested but the value
// does not fit it; the caller then keeps the original value.
func (ts *TextStandardizer) normalize(value string, policy config.TextPolicy) (string, bool) {
	v := value
	if policy.Trim {
		v = strings.TrimSpace(v)
	}
	switch policy.Case {
	case config.CaseLower:
		v = strings.ToLower(v)
	case config.CaseUpper:
		v = strings.ToUpper(v)
	case config.CaseTitle:
		v = ts.titler.String(strings.ToLower(v))
	}
	switch policy.Canonical {
	case config.CanonicalEmail:
		return canonicalEmail(v)
	case config.CanonicalPhone:
		return canonicalPhone(v)
	}
	return v, true
}

// canonicalEmail lowercases and trims the address; a value that does not
// look like an address at all cannot be canonicalized.
func canonicalEmail(v string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(v))
	if !emailShape.MatchString(e) {
		return v, false
	}
	return e, true
}

// canonicalPhone rewrites Kenyan phone numbers to the +254XXXXXXXXX form.
// Accepted inputs are a bare 9-digit subscriber number, a 254-prefixed
// 12-digit number, a 0-prefixed 10-digit number, or an already canonical
// +254 number; separators and spaces are ignored.
func canonicalPhone(v string) (string, bool) {
	digits := digitsOnly.ReplaceAllString(v, "")
	switch {
	case len(digits) == 9:
		return "+254" + digits, true
	case len(digits) == 12 && strings.HasPrefix(digits, "254"):
		return "+" + digits, true
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		return "+254" + digits[1:], true
	default:
		return v, false
	}
}

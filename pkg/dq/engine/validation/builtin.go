package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/stats"
	"github.com/tigerroll/scour/pkg/dq/support/util/configbinder"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// phonePatterns are the accepted phone number shapes, the international
// +254 form plus the local variants seen in source systems.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\+254[0-9]{9}$`),
	regexp.MustCompile(`^254[0-9]{9}$`),
	regexp.MustCompile(`^0[0-9]{9}$`),
}

func init() {
	RegisterRuleKind("not_null", newNotNullRule)
	RegisterRuleKind("email", newEmailRule)
	RegisterRuleKind("phone", newPhoneRule)
	RegisterRuleKind("range", newRangeRule)
	RegisterRuleKind("in_list", newInListRule)
	RegisterRuleKind("length", newLengthRule)
	RegisterRuleKind("pattern", newPatternRule)
	RegisterRuleKind("zscore", newZScoreRule)
}

func newNotNullRule(field string, props map[string]string) (Predicate, error) {
	return func(r *model.Record, sc *stats.Context) bool {
		return !r.IsMissing(field)
	}, nil
}

func newEmailRule(field string, props map[string]string) (Predicate, error) {
	return func(r *model.Record, sc *stats.Context) bool {
		if r.IsMissing(field) {
			return false
		}
		return emailPattern.MatchString(cast.ToString(r.Values[field]))
	}, nil
}

func newPhoneRule(field string, props map[string]string) (Predicate, error) {
	return func(r *model.Record, sc *stats.Context) bool {
		if r.IsMissing(field) {
			return false
		}
		phone := cast.ToString(r.Values[field])
		for _, p := range phonePatterns {
			if p.MatchString(phone) {
				return true
			}
		}
		return false
	}, nil
}

type rangeParams struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func newRangeRule(field string, props map[string]string) (Predicate, error) {
	params := rangeParams{Min: math.Inf(-1), Max: math.Inf(1)}
	if err := configbinder.BindProperties(props, &params); err != nil {
		return nil, err
	}
	if params.Min > params.Max {
		return nil, fmt.Errorf("range rule on %q: min %v exceeds max %v", field, params.Min, params.Max)
	}
	return func(r *model.Record, sc *stats.Context) bool {
		if r.IsMissing(field) {
			return false
		}
		v, err := cast.ToFloat64E(r.Values[field])
		if err != nil {
			return false
		}
		return v >= params.Min && v <= params.Max
	}, nil
}

type inListParams struct {
	Values string `yaml:"values"`
}

func newInListRule(field string, props map[string]string) (Predicate, error) {
	var params inListParams
	if err := configbinder.BindProperties(props, &params); err != nil {
		return nil, err
	}
	if params.Values == "" {
		return nil, fmt.Errorf("in_list rule on %q requires a values property", field)
	}
	allowed := make(map[string]struct{})
	for _, v := range strings.Split(params.Values, ",") {
		allowed[strings.TrimSpace(v)] = struct{}{}
	}
	return func(r *model.Record, sc *stats.Context) bool {
		if r.IsMissing(field) {
			return false
		}
		_, ok := allowed[cast.ToString(r.Values[field])]
		return ok
	}, nil
}

type lengthParams struct {
	MinLen int `yaml:"min_len"`
	MaxLen int `yaml:"max_len"`
}

func newLengthRule(field string, props map[string]string) (Predicate, error) {
	params := lengthParams{MinLen: 1, MaxLen: 255}
	if err := configbinder.BindProperties(props, &params); err != nil {
		return nil, err
	}
	return func(r *model.Record, sc *stats.Context) bool {
		if r.IsMissing(field) {
			return false
		}
		n := len(cast.ToString(r.Values[field]))
		return n >= params.MinLen && n <= params.MaxLen
	}, nil
}

type patternParams struct {
	Pattern string `yaml:"pattern"`
}

func newPatternRule(field string, props map[string]string) (Predicate, error) {
	var params patternParams
	if err := configbinder.BindProperties(props, &params); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern rule on %q: %w", field, err)
	}
	return func(r *model.Record, sc *stats.Context) bool {
		if r.IsMissing(field) {
			return false
		}
		return re.MatchString(cast.ToString(r.Values[field]))
	}, nil
}

type zScoreParams struct {
	Threshold float64 `yaml:"threshold"`
}

// newZScoreRule flags values whose z-score against the batch column
// statistics exceeds the threshold. It is the statistical rule kind that
// exercises the shared statistics context.
func newZScoreRule(field string, props map[string]string) (Predicate, error) {
	params := zScoreParams{Threshold: 3.0}
	if err := configbinder.BindProperties(props, &params); err != nil {
		return nil, err
	}
	return func(r *model.Record, sc *stats.Context) bool {
		if r.IsMissing(field) {
			return false
		}
		column, ok := sc.Column(field)
		if !ok {
			return false
		}
		mean, okMean := column.Mean()
		stddev, okStd := column.StdDev()
		if !okMean || !okStd || stddev == 0 {
			return true
		}
		v, err := cast.ToFloat64E(r.Values[field])
		if err != nil {
			return false
		}
		return math.Abs((v-mean)/stddev) <= params.Threshold
	}, nil
}

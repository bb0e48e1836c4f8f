// Package config provides the structured configuration consumed by the
// pipeline orchestrator. A PipelineConfig is constructed once, validated
// against the batch schema before any stage runs, and passed into the
// orchestrator at run start; there is no process-wide mutable configuration.
package config

import (
	"github.com/hashicorp/go-multierror"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
)

const moduleName = "config"

// Cleansing stage names accepted in stage_order.
const (
	StageDeduplicate = "deduplicate"
	StageOutliers    = "outliers"
	StageImpute      = "impute"
	StageText        = "text"
)

// DefaultStageOrder is the cleansing stage order used when stage_order is
// omitted. Deduplication runs before outlier handling as a pipeline
// invariant, so a record removed as a duplicate never skews outlier bounds.
var DefaultStageOrder = []string{StageDeduplicate, StageOutliers, StageImpute, StageText}

// NamingConvention selects the field naming transform of the
// standardization stage.
type NamingConvention string

const (
	NamingSnakeCase  NamingConvention = "snake_case"
	NamingCamelCase  NamingConvention = "camelCase"
	NamingPascalCase NamingConvention = "PascalCase"
)

// IsValid checks whether the NamingConvention is a declared variant.
func (c NamingConvention) IsValid() bool {
	switch c {
	case NamingSnakeCase, NamingCamelCase, NamingPascalCase:
		return true
	default:
		return false
	}
}

// ImputationStrategy selects the fill statistic of an ImputationPolicy.
type ImputationStrategy string

const (
	// ImputeDefault selects the field-type default: median for numeric
	// fields, mode for everything else.
	ImputeDefault  ImputationStrategy = ""
	ImputeMean     ImputationStrategy = "mean"
	ImputeMedian   ImputationStrategy = "median"
	ImputeMode     ImputationStrategy = "mode"
	ImputeConstant ImputationStrategy = "constant"
)

// ImputationPolicy configures missing-value handling for one field.
type ImputationPolicy struct {
	Strategy ImputationStrategy `yaml:"strategy"`
	// Constant is the fill value for the constant strategy.
	Constant interface{} `yaml:"constant,omitempty"`
}

// OutlierMethod selects the bound computation of an OutlierPolicy.
type OutlierMethod string

const (
	OutlierIQR        OutlierMethod = "iqr"
	OutlierZScore     OutlierMethod = "zscore"
	OutlierPercentile OutlierMethod = "percentile"
)

// OutlierAction selects what happens to an out-of-bounds value.
type OutlierAction string

const (
	ActionFlag   OutlierAction = "flag"
	ActionCap    OutlierAction = "cap"
	ActionRemove OutlierAction = "remove"
)

// OutlierPolicy configures outlier handling for one field.
type OutlierPolicy struct {
	Method OutlierMethod `yaml:"method"`
	// K is the IQR multiplier (default 1.5).
	K float64 `yaml:"k"`
	// ZThreshold is the |z| cut for the zscore method (default 3).
	ZThreshold float64 `yaml:"z_threshold"`
	// LowerPct / UpperPct are the percentile cuts (defaults 1 and 99).
	LowerPct float64       `yaml:"lower_pct"`
	UpperPct float64       `yaml:"upper_pct"`
	Action   OutlierAction `yaml:"action"`
}

// TextCase selects the casing transform of a TextPolicy.
type TextCase string

const (
	CaseNone  TextCase = ""
	CaseLower TextCase = "lower"
	CaseUpper TextCase = "upper"
	CaseTitle TextCase = "title"
)

// CanonicalForm selects the canonical value shape of a TextPolicy.
type CanonicalForm string

const (
	CanonicalNone  CanonicalForm = ""
	CanonicalEmail CanonicalForm = "email"
	CanonicalPhone CanonicalForm = "phone"
)

// TextPolicy configures text normalization for one string field.
type TextPolicy struct {
	Trim      bool          `yaml:"trim"`
	Case      TextCase      `yaml:"case"`
	Canonical CanonicalForm `yaml:"canonical"`
}

// FieldPolicies groups the per-field cleansing policies.
type FieldPolicies struct {
	Imputation *ImputationPolicy `yaml:"imputation,omitempty"`
	Outlier    *OutlierPolicy    `yaml:"outlier,omitempty"`
	Text       *TextPolicy       `yaml:"text,omitempty"`
}

// Thresholds gates stage transitions: a stage whose issue rate exceeds a
// threshold aborts the run. A rate of 1 or more never triggers.
type Thresholds struct {
	MaxErrorRate   float64 `yaml:"max_error_rate"`
	MaxWarningRate float64 `yaml:"max_warning_rate"`
}

// DedupConfig configures the deduplication stage.
type DedupConfig struct {
	// Keys are the fields forming the normalized deduplication key.
	Keys []string `yaml:"keys"`
	// KeepLast retains the last record of a duplicate group instead of the
	// first.
	KeepLast bool `yaml:"keep_last"`
}

// RuleConfig declares one validation rule resolved through the rule
// registry. Properties bind to the rule kind's parameter struct.
type RuleConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Field      string            `yaml:"field"`
	Severity   model.Severity    `yaml:"severity"`
	Message    string            `yaml:"message"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// PipelineConfig is the full configuration driving one orchestrator run.
type PipelineConfig struct {
	StageOrder []string                 `yaml:"stage_order"`
	Thresholds Thresholds               `yaml:"thresholds"`
	Dedup      DedupConfig              `yaml:"deduplicate"`
	Fields     map[string]FieldPolicies `yaml:"fields"`
	Naming     NamingConvention         `yaml:"naming_convention"`
	DateFormat string                   `yaml:"date_format"`
	Rules      []RuleConfig             `yaml:"rules"`
	// Workers bounds intra-stage concurrency; 0 means one worker per unit.
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// ScourConfig holds all configuration under the "scour" top-level key.
type ScourConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	System   SystemConfig   `yaml:"system"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Scour ScourConfig `yaml:"scour"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Scour: ScourConfig{
			Pipeline: PipelineConfig{
				StageOrder: append([]string(nil), DefaultStageOrder...),
				Thresholds: Thresholds{MaxErrorRate: 1.0, MaxWarningRate: 1.0},
				Naming:     NamingSnakeCase,
				DateFormat: "2006-01-02",
				Fields:     make(map[string]FieldPolicies),
			},
			System: SystemConfig{Logging: LoggingConfig{Level: "INFO"}},
		},
	}
}

// Validate checks the pipeline configuration against the batch schema.
// Every violation is a configuration-class error naming the offending key;
// violations are accumulated so the caller sees all of them at once.
func (c *PipelineConfig) Validate(schema model.Schema) error {
	var result *multierror.Error

	if !c.Naming.IsValid() {
		result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
			"pipeline.naming_convention", "unknown naming convention %q", c.Naming))
	}

	result = multierror.Append(result, c.validateStageOrder())
	result = multierror.Append(result, c.validateDedup(schema))
	result = multierror.Append(result, c.validateFieldPolicies(schema))
	result = multierror.Append(result, c.validateRules(schema))

	return result.ErrorOrNil()
}

func (c *PipelineConfig) validateStageOrder() error {
	var result *multierror.Error

	dedupIdx, outlierIdx := -1, -1
	seen := make(map[string]bool, len(c.StageOrder))
	for i, stage := range c.StageOrder {
		if seen[stage] {
			result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
				"pipeline.stage_order", "stage %q listed more than once", stage))
			continue
		}
		seen[stage] = true
		switch stage {
		case StageDeduplicate:
			dedupIdx = i
		case StageOutliers:
			outlierIdx = i
		}
	}

	// Deduplication before outlier handling is a pipeline invariant.
	if dedupIdx >= 0 && outlierIdx >= 0 && dedupIdx > outlierIdx {
		result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
			"pipeline.stage_order", "stage %q must precede %q", StageDeduplicate, StageOutliers))
	}

	return result.ErrorOrNil()
}

func (c *PipelineConfig) validateDedup(schema model.Schema) error {
	var result *multierror.Error
	for _, key := range c.Dedup.Keys {
		if !schema.HasField(key) {
			result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
				"pipeline.deduplicate.keys", "deduplication key %q is not a schema field", key))
		}
	}
	return result.ErrorOrNil()
}

func (c *PipelineConfig) validateFieldPolicies(schema model.Schema) error {
	var result *multierror.Error

	for name, policies := range c.Fields {
		field, ok := schema.Field(name)
		if !ok {
			result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
				"pipeline.fields."+name, "policy target %q is not a schema field", name))
			continue
		}

		if p := policies.Imputation; p != nil {
			key := "pipeline.fields." + name + ".imputation.strategy"
			switch p.Strategy {
			case ImputeMean, ImputeMedian:
				if field.Type != model.FieldTypeNumeric {
					result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
						key, "strategy %q requires a numeric field, %q is %s", p.Strategy, name, field.Type))
				}
			case ImputeMode, ImputeDefault:
				// Mode applies to any field type; the default strategy is
				// resolved from the field type by the imputer.
			case ImputeConstant:
				if p.Constant == nil {
					result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
						"pipeline.fields."+name+".imputation.constant", "constant strategy requires a constant value"))
				}
			default:
				result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
					key, "unknown imputation strategy %q", p.Strategy))
			}
		}

		if p := policies.Outlier; p != nil {
			key := "pipeline.fields." + name + ".outlier"
			if field.Type != model.FieldTypeNumeric {
				result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
					key+".method", "outlier handling requires a numeric field, %q is %s", name, field.Type))
			}
			switch p.Method {
			case OutlierIQR, OutlierZScore:
			case OutlierPercentile:
				lower, upper := p.LowerPct, p.UpperPct
				if lower < 0 || upper > 100 || (lower != 0 && upper != 0 && lower >= upper) {
					result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
						key+".lower_pct", "percentile cuts must satisfy 0 <= lower < upper <= 100"))
				}
			default:
				result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
					key+".method", "unknown outlier method %q", p.Method))
			}
			switch p.Action {
			case ActionFlag, ActionCap, ActionRemove:
			default:
				result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
					key+".action", "unknown outlier action %q", p.Action))
			}
		}

		if p := policies.Text; p != nil {
			key := "pipeline.fields." + name + ".text"
			if field.Type != model.FieldTypeString && field.Type != model.FieldTypeCategorical {
				result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
					key, "text normalization requires a string or categorical field, %q is %s", name, field.Type))
			}
			switch p.Case {
			case CaseNone, CaseLower, CaseUpper, CaseTitle:
			default:
				result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
					key+".case", "unknown text case %q", p.Case))
			}
			switch p.Canonical {
			case CanonicalNone, CanonicalEmail, CanonicalPhone:
			default:
				result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
					key+".canonical", "unknown canonical form %q", p.Canonical))
			}
		}
	}

	return result.ErrorOrNil()
}

func (c *PipelineConfig) validateRules(schema model.Schema) error {
	var result *multierror.Error
	seen := make(map[string]bool, len(c.Rules))

	for i, rule := range c.Rules {
		key := "pipeline.rules[" + rule.Name + "]"
		if rule.Name == "" {
			result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
				"pipeline.rules", "rule at index %d has no name", i))
			continue
		}
		if seen[rule.Name] {
			result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
				key, "rule name %q is not unique", rule.Name))
		}
		seen[rule.Name] = true
		if rule.Field != "" && !schema.HasField(rule.Field) {
			result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
				key+".field", "rule target %q is not a schema field", rule.Field))
		}
		if rule.Severity != "" && !rule.Severity.IsValid() {
			result = multierror.Append(result, exception.NewConfigErrorf(moduleName,
				key+".severity", "unknown severity %q", rule.Severity))
		}
	}

	return result.ErrorOrNil()
}

// StageOrderOrDefault returns the configured cleansing stage order, or
// DefaultStageOrder when unset.
func (c *PipelineConfig) StageOrderOrDefault() []string {
	if len(c.StageOrder) == 0 {
		return append([]string(nil), DefaultStageOrder...)
	}
	return c.StageOrder
}

// PoliciesFor returns the policies configured for the named field.
func (c *PipelineConfig) PoliciesFor(field string) FieldPolicies {
	return c.Fields[field]
}

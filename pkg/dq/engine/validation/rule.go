// Package validation implements the rule evaluation engine. Rules are
// severity-tagged predicates evaluated over every targeted record using a
// once-per-batch column-statistics context. Built-in and custom rule kinds
// register through the same factory contract; there is no privileged
// built-in path.
package validation

import (
	"sync"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/stats"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
)

const moduleName = "validation"

// Predicate evaluates one record against the read-only statistics context.
// It returns true when the record satisfies the rule.
type Predicate func(record *model.Record, sc *stats.Context) bool

// Rule is a named, severity-tagged predicate targeting one field.
type Rule struct {
	ID          string
	Field       string
	Severity    model.Severity
	Description string
	Predicate   Predicate
}

// RuleSet holds rules in registration order. Evaluation order is
// registration order, then batch record order, so reports are reproducible.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet creates an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Add appends a rule, preserving registration order.
func (rs *RuleSet) Add(rule Rule) {
	rs.rules = append(rs.rules, rule)
}

// Rules returns the rules in registration order.
func (rs *RuleSet) Rules() []Rule {
	return rs.rules
}

// Len returns the number of registered rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Factory builds a Predicate for a target field from a loose property map.
// A factory that cannot honor its properties returns an error, which
// surfaces as a configuration error before any batch is processed.
type Factory func(field string, props map[string]string) (Predicate, error)

// ruleRegistry maps rule kind names to factories. Custom validators register
// here through the exact same contract as the built-in kinds.
var ruleRegistry = make(map[string]Factory)

// registryMutex protects access to ruleRegistry.
var registryMutex sync.RWMutex

// RegisterRuleKind registers a rule kind factory under the given name.
// Registering an empty name or nil factory panics; registration happens at
// process start-up, not at run time.
func RegisterRuleKind(name string, factory Factory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("rule kind name cannot be empty")
	}
	if factory == nil {
		panic("cannot register nil factory for rule kind: " + name)
	}
	ruleRegistry[name] = factory
}

// IsRuleKindRegistered checks whether the named rule kind is registered.
func IsRuleKindRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := ruleRegistry[name]
	return ok
}

// resolveRuleKind looks up a factory by kind name.
func resolveRuleKind(name string) (Factory, bool) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	f, ok := ruleRegistry[name]
	return f, ok
}

// BuildRuleSet resolves the configured rules through the registry into a
// RuleSet. Unknown kinds and unbindable properties are configuration errors
// naming the offending key.
func BuildRuleSet(rules []config.RuleConfig) (*RuleSet, error) {
	rs := NewRuleSet()
	for _, rc := range rules {
		factory, ok := resolveRuleKind(rc.Type)
		if !ok {
			return nil, exception.NewConfigErrorf(moduleName,
				"pipeline.rules["+rc.Name+"].type", "unknown rule kind %q", rc.Type)
		}

		predicate, err := factory(rc.Field, rc.Properties)
		if err != nil {
			return nil, exception.NewConfigError(moduleName,
				"pipeline.rules["+rc.Name+"].properties", "invalid rule properties", err)
		}

		severity := rc.Severity
		if severity == "" {
			severity = model.SeverityError
		}
		message := rc.Message
		if message == "" {
			message = "value failed rule " + rc.Type
		}

		rs.Add(Rule{
			ID:          rc.Name,
			Field:       rc.Field,
			Severity:    severity,
			Description: message,
			Predicate:   predicate,
		})
	}
	return rs, nil
}

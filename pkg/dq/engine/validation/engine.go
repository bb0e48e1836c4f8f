package validation

import (
	"context"
	"fmt"
	"sync"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/stats"
	"github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// Engine evaluates a RuleSet against a Batch.
type Engine struct {
	// workers bounds the number of rules evaluated concurrently.
	// Zero or negative means one worker per rule.
	workers int
}

// NewEngine creates a validation Engine with the given worker bound.
func NewEngine(workers int) *Engine {
	return &Engine{workers: workers}
}

// Evaluate runs every rule over every targeted record and returns a report
// labeled with the given stage name. The column-statistics context is
// computed once per batch and shared read-only by all rules. Distinct rules
// evaluate on concurrent workers; each worker writes into its own issue
// buffer and the buffers are assembled in rule-registration order, so the
// report is byte-identical for identical inputs.
func (e *Engine) Evaluate(ctx context.Context, stage string, b *model.Batch, rs *RuleSet) *model.ValidationReport {
	report := model.NewValidationReport(b.ID, stage, b.Len())
	rules := rs.Rules()
	if len(rules) == 0 || b.Len() == 0 {
		return report
	}

	sc := stats.NewContext(b)
	buffers := make([][]model.Issue, len(rules))

	sem := make(chan struct{}, e.workerBound(len(rules)))
	var wg sync.WaitGroup
	for i := range rules {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			buffers[i] = evaluateRule(rules[i], b, sc)
		}(i)
	}
	wg.Wait()

	for _, issues := range buffers {
		report.AppendAll(issues)
	}
	return report
}

func (e *Engine) workerBound(ruleCount int) int {
	if e.workers > 0 && e.workers < ruleCount {
		return e.workers
	}
	return ruleCount
}

// evaluateRule applies one rule to every record in batch order.
func evaluateRule(rule Rule, b *model.Batch, sc *stats.Context) []model.Issue {
	var issues []model.Issue
	for _, record := range b.Records {
		ok, faultMsg := invokePredicate(rule, record, sc)
		switch {
		case faultMsg != "":
			// A faulting predicate becomes an error issue; evaluation of the
			// remaining records continues.
			issues = append(issues, model.Issue{
				RuleID:   rule.ID,
				RecordID: record.ID,
				Field:    rule.Field,
				Severity: model.SeverityError,
				Message:  faultMsg,
			})
		case !ok:
			issues = append(issues, model.Issue{
				RuleID:   rule.ID,
				RecordID: record.ID,
				Field:    rule.Field,
				Severity: rule.Severity,
				Message:  rule.Description,
			})
		}
	}
	return issues
}

// invokePredicate evaluates the predicate for one record, converting a
// panic inside the predicate into a fault message.
func invokePredicate(rule Rule, record *model.Record, sc *stats.Context) (ok bool, faultMsg string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("Rule %q panicked on record %s: %v", rule.ID, record.ID, r)
			faultMsg = fmt.Sprintf("rule %q faulted: %v", rule.ID, r)
		}
	}()
	return rule.Predicate(record, sc), ""
}

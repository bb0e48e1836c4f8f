// Package orchestrator drives a batch through the pipeline state machine:
// Pending, Validating, Cleansing, Standardizing, Finalizing, and one of the
// terminal states Completed, Aborted, or Failed. Configuration problems are
// rejected before a run is created; threshold breaches abort a run, handing
// back the untouched input batch; execution faults fail it.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/core/metrics"
	port "github.com/tigerroll/scour/pkg/dq/core/port"
	"github.com/tigerroll/scour/pkg/dq/engine/cleansing"
	"github.com/tigerroll/scour/pkg/dq/engine/standardize"
	"github.com/tigerroll/scour/pkg/dq/engine/validation"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
	logger "github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

const moduleName = "orchestrator"

// Stage names for the two validation passes. Cleansing stage names come
// from the stage registry.
const (
	StagePrecheck  = "validate"
	StagePostcheck = "postcheck"
)

// Orchestrator runs the full pipeline over one batch at a time. It owns no
// mutable run state; every Run call builds its engines from the current
// configuration, so a single Orchestrator is safe for concurrent runs over
// distinct batches.
type Orchestrator struct {
	cfg            *config.Config
	recorder       metrics.MetricRecorder
	tracer         metrics.Tracer
	runListeners   []port.RunExecutionListener
	stageListeners []port.StageExecutionListener
}

// NewOrchestrator assembles an orchestrator from its collaborators. Nil
// recorder and tracer degrade to no-ops.
func NewOrchestrator(
	cfg *config.Config,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	runListeners []port.RunExecutionListener,
	stageListeners []port.StageExecutionListener,
) *Orchestrator {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &Orchestrator{
		cfg:            cfg,
		recorder:       recorder,
		tracer:         tracer,
		runListeners:   runListeners,
		stageListeners: stageListeners,
	}
}

// engines holds the pre-flight build products for one run.
type engines struct {
	preRules  *validation.RuleSet
	postRules *validation.RuleSet
	validator *validation.Engine
	stages    []cleansing.Cleanser
	std       *standardize.Engine
}

// prepare validates the configuration against the batch schema and builds
// every engine the run will need. Any error here is a configuration or
// conformance error; no PipelineRun exists yet and the batch is untouched.
func (o *Orchestrator) prepare(b *model.Batch) (*engines, error) {
	pc := &o.cfg.Scour.Pipeline

	if err := b.CheckConformance(); err != nil {
		return nil, exception.NewDataError(moduleName, "batch does not conform to its schema", err)
	}
	if err := pc.Validate(b.Schema); err != nil {
		return nil, err
	}

	preRules, err := validation.BuildRuleSet(pc.Rules)
	if err != nil {
		return nil, err
	}
	stages, err := cleansing.BuildStages(pc, b.Schema)
	if err != nil {
		return nil, err
	}
	std, err := standardize.NewEngine(pc, b.Schema)
	if err != nil {
		return nil, err
	}

	// The post-standardization check targets the renamed fields.
	plan := std.Plan()
	postConfigs := make([]config.RuleConfig, len(pc.Rules))
	copy(postConfigs, pc.Rules)
	for i := range postConfigs {
		if renamed, ok := plan[postConfigs[i].Field]; ok {
			postConfigs[i].Field = renamed
		}
	}
	postRules, err := validation.BuildRuleSet(postConfigs)
	if err != nil {
		return nil, err
	}

	return &engines{
		preRules:  preRules,
		postRules: postRules,
		validator: validation.NewEngine(pc.Workers),
		stages:    stages,
		std:       std,
	}, nil
}

// Run executes the pipeline over the batch and returns the final batch and
// the run report. For an Aborted run the returned batch is the untouched
// input batch. A nil error with a terminal report status is the normal
// outcome for Completed and Aborted runs; an error is returned for
// configuration rejection (no run created) and for Failed runs.
func (o *Orchestrator) Run(ctx context.Context, b *model.Batch) (*model.Batch, *model.Report, error) {
	eng, err := o.prepare(b)
	if err != nil {
		logger.Errorf("Orchestrator: rejected batch (ID: %s) before run creation: %v", b.ID, err)
		return nil, nil, err
	}

	run := model.NewPipelineRun(b.ID)
	acc := newReportAccumulator(run, b)
	logger.Infof("Orchestrator: starting run (ID: %s) for batch (ID: %s) with %d records.", run.ID, b.ID, b.Len())

	ctx, endSpan := o.tracer.StartRunSpan(ctx, run)
	defer endSpan()
	for _, l := range o.runListeners {
		l.BeforeRun(ctx, run)
	}
	defer func() {
		report := acc.report()
		for _, l := range o.runListeners {
			l.AfterRun(ctx, run, report)
		}
	}()

	// Validating: pre-check pass over the raw batch.
	if err := run.TransitionTo(model.RunStatusValidating); err != nil {
		return o.fail(ctx, run, acc, exception.NewFaultError(moduleName, "state machine rejected Validating", err))
	}
	preReport, err := o.executeStage(ctx, run, StagePrecheck, b.Len(), func(ctx context.Context) (*model.Batch, *model.ValidationReport, error) {
		return b, eng.validator.Evaluate(ctx, StagePrecheck, b, eng.preRules), nil
	}, &b)
	if err != nil {
		return o.fail(ctx, run, acc, err)
	}
	acc.observe(preReport)
	acc.initialErrorRate = preReport.ErrorRate()
	if reason, breached := o.thresholdBreach(preReport); breached {
		return o.abort(ctx, run, acc, reason)
	}

	// Cleansing: the configured stage chain, each stage a new batch version.
	if err := run.TransitionTo(model.RunStatusCleansing); err != nil {
		return o.fail(ctx, run, acc, exception.NewFaultError(moduleName, "state machine rejected Cleansing", err))
	}
	current := b
	for _, stage := range eng.stages {
		stageReport, err := o.executeStage(ctx, run, stage.Name(), current.Len(), func(ctx context.Context) (*model.Batch, *model.ValidationReport, error) {
			return stage.Clean(ctx, current)
		}, &current)
		if err != nil {
			return o.fail(ctx, run, acc, err)
		}
		acc.observe(stageReport)
		if reason, breached := o.thresholdBreach(stageReport); breached {
			return o.abort(ctx, run, acc, reason)
		}
	}

	// Standardizing: rename, coerce, profile.
	if err := run.TransitionTo(model.RunStatusStandardizing); err != nil {
		return o.fail(ctx, run, acc, exception.NewFaultError(moduleName, "state machine rejected Standardizing", err))
	}
	stdReport, err := o.executeStage(ctx, run, standardize.StageName, current.Len(), func(ctx context.Context) (*model.Batch, *model.ValidationReport, error) {
		return eng.std.Standardize(ctx, current)
	}, &current)
	if err != nil {
		return o.fail(ctx, run, acc, err)
	}
	acc.observe(stdReport)
	if reason, breached := o.thresholdBreach(stdReport); breached {
		return o.abort(ctx, run, acc, reason)
	}

	// Finalizing: post-check pass over the standardized batch, then the
	// dictionary and quality metrics.
	if err := run.TransitionTo(model.RunStatusFinalizing); err != nil {
		return o.fail(ctx, run, acc, exception.NewFaultError(moduleName, "state machine rejected Finalizing", err))
	}
	postReport, err := o.executeStage(ctx, run, StagePostcheck, current.Len(), func(ctx context.Context) (*model.Batch, *model.ValidationReport, error) {
		return current, eng.validator.Evaluate(ctx, StagePostcheck, current, eng.postRules), nil
	}, &current)
	if err != nil {
		return o.fail(ctx, run, acc, err)
	}
	acc.observe(postReport)
	acc.finalErrorRate = postReport.ErrorRate()
	if reason, breached := o.thresholdBreach(postReport); breached {
		return o.abort(ctx, run, acc, reason)
	}
	acc.dictionary = standardize.DeriveDictionary(current)
	acc.finalBatch = current

	run.MarkAsCompleted()
	o.recorder.RecordDuration(ctx, "pipeline.run", time.Since(run.StartTime), map[string]string{"status": run.Status.String()})
	logger.Infof("Orchestrator: run (ID: %s) completed, %d -> %d records, final batch version %d.",
		run.ID, b.Len(), current.Len(), current.Version)
	return current, acc.report(), nil
}

// executeStage wraps one stage invocation with listeners, tracing, timing,
// and panic recovery. A panic is converted into a fault error and the run
// fails. On success the batch pointed to by out is replaced with the
// stage's output batch.
func (o *Orchestrator) executeStage(
	ctx context.Context,
	run *model.PipelineRun,
	name string,
	recordsIn int,
	fn func(ctx context.Context) (*model.Batch, *model.ValidationReport, error),
	out **model.Batch,
) (*model.ValidationReport, error) {
	se := model.NewStageExecution(run.ID, name)
	se.RecordsIn = recordsIn

	ctx, endSpan := o.tracer.StartStageSpan(ctx, se)
	defer endSpan()
	for _, l := range o.stageListeners {
		l.BeforeStage(ctx, se)
	}

	result, report, err := o.invokeStage(ctx, name, fn)
	if err != nil {
		se.AddFailure(err)
		se.Complete()
		run.AppendStageExecution(se)
		o.tracer.RecordError(ctx, name, err)
		for _, l := range o.stageListeners {
			l.AfterStage(ctx, se, report)
		}
		return report, err
	}

	*out = result
	se.RecordsOut = result.Len()
	se.RecordIssueCounts(report)
	se.Complete()
	run.AppendStageExecution(se)
	o.recorder.RecordDuration(ctx, "pipeline.stage", se.Duration, map[string]string{"stage": name})
	for _, l := range o.stageListeners {
		l.AfterStage(ctx, se, report)
	}
	return report, nil
}

// invokeStage isolates the panic recovery boundary of one stage body.
func (o *Orchestrator) invokeStage(
	ctx context.Context,
	name string,
	fn func(ctx context.Context) (*model.Batch, *model.ValidationReport, error),
) (result *model.Batch, report *model.ValidationReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewFaultErrorf(moduleName, "stage %s panicked: %v", name, r)
		}
	}()
	result, report, err = fn(ctx)
	if err != nil && !exception.IsFault(err) {
		err = exception.NewFaultErrorf(moduleName, "stage %s failed: %v", name, err)
	}
	return result, report, err
}

// thresholdBreach checks a stage report against the configured thresholds.
// A threshold of 1 or more never triggers.
func (o *Orchestrator) thresholdBreach(report *model.ValidationReport) (string, bool) {
	t := o.cfg.Scour.Pipeline.Thresholds
	if t.MaxErrorRate < 1 && report.ErrorRate() > t.MaxErrorRate {
		return fmt.Sprintf("stage %s error rate %.4f exceeds max_error_rate %.4f",
			report.StageName, report.ErrorRate(), t.MaxErrorRate), true
	}
	if t.MaxWarningRate < 1 && report.WarningRate() > t.MaxWarningRate {
		return fmt.Sprintf("stage %s warning rate %.4f exceeds max_warning_rate %.4f",
			report.StageName, report.WarningRate(), t.MaxWarningRate), true
	}
	return "", false
}

// abort terminates the run for a threshold breach. The untouched input
// batch is handed back; every batch version the run produced is discarded.
func (o *Orchestrator) abort(ctx context.Context, run *model.PipelineRun, acc *reportAccumulator, reason string) (*model.Batch, *model.Report, error) {
	run.MarkAsAborted(reason)
	acc.abortReason = reason
	o.tracer.RecordEvent(ctx, "run.aborted", map[string]interface{}{"reason": reason})
	o.recorder.RecordDuration(ctx, "pipeline.run", time.Since(run.StartTime), map[string]string{"status": run.Status.String()})
	logger.Warnf("Orchestrator: run (ID: %s) aborted: %s", run.ID, reason)
	return acc.input, acc.report(), nil
}

// fail terminates the run for an execution fault.
func (o *Orchestrator) fail(ctx context.Context, run *model.PipelineRun, acc *reportAccumulator, err error) (*model.Batch, *model.Report, error) {
	run.MarkAsFailed(err)
	acc.faultDetail = exception.ExtractErrorMessage(err)
	o.tracer.RecordError(ctx, moduleName, err)
	o.recorder.RecordDuration(ctx, "pipeline.run", time.Since(run.StartTime), map[string]string{"status": run.Status.String()})
	logger.Errorf("Orchestrator: run (ID: %s) failed: %v", run.ID, err)
	return nil, acc.report(), err
}

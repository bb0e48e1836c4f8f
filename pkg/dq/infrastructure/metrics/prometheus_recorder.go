package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	metrics "github.com/tigerroll/scour/pkg/dq/core/metrics"
	logger "github.com/tigerroll/scour/pkg/dq/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Run Metrics
	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec

	// Stage Metrics
	stageDurationSeconds *prometheus.HistogramVec
	stageRecordsIn       *prometheus.CounterVec
	stageRecordsOut      *prometheus.CounterVec
	stageIssueCounter    *prometheus.CounterVec

	// Generic operation timings
	operationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() metrics.MetricRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dq_run_duration_seconds",
			Help:    "Duration of pipeline run executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dq_run_status_total",
			Help: "Total number of pipeline runs by status.",
		}, []string{"status"}),
		stageDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dq_stage_duration_seconds",
			Help:    "Duration of pipeline stage executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		stageRecordsIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dq_stage_records_in_total",
			Help: "Total records entering a stage.",
		}, []string{"stage"}),
		stageRecordsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dq_stage_records_out_total",
			Help: "Total records leaving a stage.",
		}, []string{"stage"}),
		stageIssueCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dq_stage_issues_total",
			Help: "Total issues reported by stage and severity.",
		}, []string{"stage", "severity"}),
		operationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dq_operation_duration_seconds",
			Help:    "Duration of named pipeline operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.stageDurationSeconds)
	registry.MustRegister(r.stageRecordsIn)
	registry.MustRegister(r.stageRecordsOut)
	registry.MustRegister(r.stageIssueCounter)
	registry.MustRegister(r.operationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordRunStart records the start of a PipelineRun.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, run *model.PipelineRun) {
	r.runStatusCounter.WithLabelValues(run.Status.String()).Inc()
	logger.Debugf("Metrics: Run '%s' started.", run.ID)
}

// RecordRunEnd records the end of a PipelineRun with its terminal status.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, run *model.PipelineRun) {
	if run.EndTime == nil {
		return
	}
	duration := run.EndTime.Sub(run.StartTime).Seconds()
	r.runDurationSeconds.WithLabelValues(run.Status.String()).Observe(duration)
	r.runStatusCounter.WithLabelValues(run.Status.String()).Inc()
	logger.Debugf("Metrics: Run '%s' ended with %s. Duration: %.3fs", run.ID, run.Status, duration)
}

// RecordStageStart records the start of a StageExecution.
func (r *PrometheusRecorder) RecordStageStart(ctx context.Context, execution *model.StageExecution) {
	r.stageRecordsIn.WithLabelValues(execution.StageName).Add(float64(execution.RecordsIn))
	logger.Debugf("Metrics: Stage '%s' started.", execution.StageName)
}

// RecordStageEnd records the end of a StageExecution.
func (r *PrometheusRecorder) RecordStageEnd(ctx context.Context, execution *model.StageExecution) {
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.stageDurationSeconds.WithLabelValues(execution.StageName).Observe(duration)
	r.stageRecordsOut.WithLabelValues(execution.StageName).Add(float64(execution.RecordsOut))
	logger.Debugf("Metrics: Stage '%s' ended. Duration: %.3fs", execution.StageName, duration)
}

// RecordIssues records the issues a stage produced, by severity.
func (r *PrometheusRecorder) RecordIssues(ctx context.Context, stageName string, severity model.Severity, count int) {
	r.stageIssueCounter.WithLabelValues(stageName, string(severity)).Add(float64(count))
}

// RecordDuration records the execution time of a named operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)

// Package metrics provides Prometheus and OpenTelemetry implementations of
// the core metrics interfaces.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/yotposync/pkg/batch/core/metrics"
	logger "github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

// PrometheusRecorder implements metrics.MetricRecorder and metrics.ExportRecorder.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	stepReadCount       *prometheus.CounterVec
	stepWriteCount      *prometheus.CounterVec
	stepCommitCount     *prometheus.CounterVec

	itemSkipCounter  *prometheus.CounterVec
	itemRetryCounter *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec

	exportAttempts      *prometheus.CounterVec
	exportRetries       *prometheus.CounterVec
	exportOutcomes      *prometheus.CounterVec
	tokenRefreshCounter *prometheus.CounterVec
}

// NewPrometheusRecorder creates a PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Duration of batch job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status", "exit_status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_status_total",
			Help: "Total number of batch job executions by status.",
		}, []string{"job_name", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_step_duration_seconds",
			Help:    "Duration of batch step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "step_name", "status", "exit_status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_status_total",
			Help: "Total number of batch step executions by status.",
		}, []string{"job_name", "step_name", "status"}),
		stepReadCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_read_total",
			Help: "Total items read by step.",
		}, []string{"job_name", "step_name"}),
		stepWriteCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_write_total",
			Help: "Total items written by step.",
		}, []string{"job_name", "step_name"}),
		stepCommitCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_commit_total",
			Help: "Total chunk commits by step.",
		}, []string{"job_name", "step_name"}),
		itemSkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_skip_total",
			Help: "Total items skipped by step and reason.",
		}, []string{"job_name", "step_name", "reason"}),
		itemRetryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_item_retry_total",
			Help: "Total item retries by step and reason.",
		}, []string{"job_name", "step_name", "reason"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yotposync_operation_duration_seconds",
			Help:    "Duration of named operations such as one batch dispatch.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "feed"}),
		exportAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yotposync_export_attempts_total",
			Help: "HTTP dispatch attempts by feed and locale.",
		}, []string{"feed", "locale"}),
		exportRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yotposync_export_retries_total",
			Help: "Dispatch retries by feed and reason.",
		}, []string{"feed", "reason"}),
		exportOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yotposync_export_outcomes_total",
			Help: "Classified dispatch outcomes by feed.",
		}, []string{"feed", "outcome"}),
		tokenRefreshCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yotposync_token_refresh_total",
			Help: "Token refreshes after an authentication failure.",
		}, []string{"locale"}),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.stepReadCount,
		r.stepWriteCount,
		r.stepCommitCount,
		r.itemSkipCounter,
		r.itemRetryCounter,
		r.operationDuration,
		r.exportAttempts,
		r.exportRetries,
		r.exportOutcomes,
		r.tokenRefreshCounter,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a JobExecution.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStatusCounter.WithLabelValues(execution.JobName, execution.Status.String()).Inc()
	logger.Debugf("Metrics: Job '%s' started.", execution.JobName)
}

// RecordJobEnd records the final status and duration of a JobExecution.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.jobStatusCounter.WithLabelValues(execution.JobName, execution.Status.String()).Inc()
	r.jobDurationSeconds.WithLabelValues(
		execution.JobName,
		execution.Status.String(),
		execution.ExitStatus.String(),
	).Observe(duration)
	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration)
}

// RecordStepStart records the start of a StepExecution.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.stepStatusCounter.WithLabelValues(jobNameOf(execution), execution.StepName, execution.Status.String()).Inc()
	logger.Debugf("Metrics: Step '%s' started.", execution.StepName)
}

// RecordStepEnd records the final status and duration of a StepExecution.
// Item counters are incremented as items flow, not here.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	jobName := jobNameOf(execution)
	r.stepStatusCounter.WithLabelValues(jobName, execution.StepName, execution.Status.String()).Inc()
	r.stepDurationSeconds.WithLabelValues(
		jobName,
		execution.StepName,
		execution.Status.String(),
		execution.ExitStatus.String(),
	).Observe(duration)
	logger.Debugf("Metrics: Step '%s' ended. Duration: %.3fs", execution.StepName, duration)
}

func (r *PrometheusRecorder) RecordItemRead(ctx context.Context, stepName string) {
	r.stepReadCount.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

// RecordItemProcess is a no-op; processed items show up as reads minus filters.
func (r *PrometheusRecorder) RecordItemProcess(ctx context.Context, stepName string) {}

func (r *PrometheusRecorder) RecordItemWrite(ctx context.Context, stepName string, count int) {
	r.stepWriteCount.WithLabelValues(jobNameFromContext(ctx), stepName).Add(float64(count))
}

func (r *PrometheusRecorder) RecordItemSkip(ctx context.Context, stepName string, reason string) {
	r.itemSkipCounter.WithLabelValues(jobNameFromContext(ctx), stepName, reason).Inc()
}

func (r *PrometheusRecorder) RecordItemRetry(ctx context.Context, stepName string, reason string) {
	r.itemRetryCounter.WithLabelValues(jobNameFromContext(ctx), stepName, reason).Inc()
}

func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context, stepName string, count int) {
	r.stepCommitCount.WithLabelValues(jobNameFromContext(ctx), stepName).Inc()
}

// RecordDuration observes duration under the "operation" label. The "feed"
// tag is used as the second label when present.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDuration.WithLabelValues(name, tags["feed"]).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordExportAttempt(ctx context.Context, feed, locale string) {
	r.exportAttempts.WithLabelValues(feed, locale).Inc()
}

func (r *PrometheusRecorder) RecordExportRetry(ctx context.Context, feed, reason string) {
	r.exportRetries.WithLabelValues(feed, reason).Inc()
}

func (r *PrometheusRecorder) RecordTokenRefresh(ctx context.Context, locale string) {
	r.tokenRefreshCounter.WithLabelValues(locale).Inc()
}

func (r *PrometheusRecorder) RecordExportOutcome(ctx context.Context, feed, outcome string) {
	r.exportOutcomes.WithLabelValues(feed, outcome).Inc()
}

func jobNameOf(se *model.StepExecution) string {
	if se != nil && se.JobExecution != nil {
		return se.JobExecution.JobName
	}
	return "unknown"
}

func jobNameFromContext(ctx context.Context) string {
	return jobNameOf(port.GetStepExecutionFromContext(ctx))
}

var (
	_ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
	_ metrics.ExportRecorder = (*PrometheusRecorder)(nil)
)

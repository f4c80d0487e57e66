package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
)

// MetricRecorder records job, step and item level metrics.
type MetricRecorder interface {
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)
	RecordItemRead(ctx context.Context, stepName string)
	RecordItemProcess(ctx context.Context, stepName string)
	RecordItemWrite(ctx context.Context, stepName string, count int)
	RecordItemSkip(ctx context.Context, stepName string, reason string)
	RecordItemRetry(ctx context.Context, stepName string, reason string)
	RecordChunkCommit(ctx context.Context, stepName string, count int)
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}

// ExportRecorder records outbound dispatch metrics.
type ExportRecorder interface {
	// RecordExportAttempt counts one HTTP dispatch for feed and locale.
	RecordExportAttempt(ctx context.Context, feed, locale string)
	// RecordExportRetry counts a retry; reason is "transient" or "auth".
	RecordExportRetry(ctx context.Context, feed, reason string)
	RecordTokenRefresh(ctx context.Context, locale string)
	RecordExportOutcome(ctx context.Context, feed, outcome string)
	// RecordDuration observes the duration of a named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}

package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/infrastructure/metrics"
)

func TestPrometheusRecorder_ExportCounters(t *testing.T) {
	ctx := context.Background()
	r := metrics.NewPrometheusRecorder()

	r.RecordExportAttempt(ctx, "purchase", "en_US")
	r.RecordExportAttempt(ctx, "purchase", "en_US")
	r.RecordExportRetry(ctx, "purchase", "transient")
	r.RecordTokenRefresh(ctx, "en_US")
	r.RecordExportOutcome(ctx, "purchase", "success")

	expected := `
# HELP yotposync_export_attempts_total HTTP dispatch attempts by feed and locale.
# TYPE yotposync_export_attempts_total counter
yotposync_export_attempts_total{feed="purchase",locale="en_US"} 2
# HELP yotposync_token_refresh_total Token refreshes after an authentication failure.
# TYPE yotposync_token_refresh_total counter
yotposync_token_refresh_total{locale="en_US"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.GetRegistry(), strings.NewReader(expected),
		"yotposync_export_attempts_total", "yotposync_token_refresh_total"))

	count, err := testutil.GatherAndCount(r.GetRegistry(), "yotposync_export_retries_total", "yotposync_export_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPrometheusRecorder_JobEndNeedsEndTime(t *testing.T) {
	ctx := context.Background()
	r := metrics.NewPrometheusRecorder()
	je := model.NewJobExecution("orderExportJob", nil)

	r.RecordJobEnd(ctx, je)
	count, err := testutil.GatherAndCount(r.GetRegistry(), "batch_job_duration_seconds")
	require.NoError(t, err)
	assert.Zero(t, count)

	je.MarkAsStarted()
	je.MarkAsCompleted()
	r.RecordJobEnd(ctx, je)
	count, err = testutil.GatherAndCount(r.GetRegistry(), "batch_job_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func newTracer() (*metrics.OpenTelemetryTracer, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return metrics.NewOpenTelemetryTracer(provider), exporter
}

func TestOpenTelemetryTracer_FailedJobSpan(t *testing.T) {
	tracer, exporter := newTracer()
	je := model.NewJobExecution("orderExportJob", nil)

	ctx, end := tracer.StartJobSpan(context.Background(), je)
	tracer.RecordEvent(ctx, "threshold", map[string]interface{}{"rate": 10.0, "skipped": 1})
	je.MarkAsStarted()
	je.MarkAsFailed(errors.New("error threshold exceeded"))
	end()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "job.orderExportJob", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "threshold", spans[0].Events[0].Name)
}

func TestOpenTelemetryTracer_RecordErrorOnChildSpan(t *testing.T) {
	tracer, exporter := newTracer()

	ctx, end := tracer.StartSpan(context.Background(), "export.send", map[string]interface{}{"feed": "purchase"})
	tracer.RecordError(ctx, "export", errors.New("boom"))
	end()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
}

func TestNewTracerProvider(t *testing.T) {
	provider, err := metrics.NewTracerProvider(context.Background(), config.TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, provider)
	require.NoError(t, provider.Shutdown(context.Background()))

	_, err = metrics.NewTracerProvider(context.Background(), config.TracingConfig{Endpoint: "localhost:4318", Protocol: "carrier-pigeon"})
	assert.Error(t, err)
}

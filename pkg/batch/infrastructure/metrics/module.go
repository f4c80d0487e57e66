package metrics

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/yotposync/pkg/batch/core/config"
	metrics "github.com/tigerroll/yotposync/pkg/batch/core/metrics"
)

// Module provides PrometheusRecorder as both recorder interfaces and an
// OpenTelemetryTracer configured from yotposync.tracing.
var Module = fx.Options(
	fx.Provide(
		NewPrometheusRecorder,
		func(r *PrometheusRecorder) metrics.MetricRecorder { return r },
		func(r *PrometheusRecorder) metrics.ExportRecorder { return r },
		func(cfg *config.Config) (*sdktrace.TracerProvider, error) {
			return NewTracerProvider(context.Background(), cfg.Sync.Tracing)
		},
		NewOpenTelemetryTracer,
		func(t *OpenTelemetryTracer) metrics.Tracer { return t },
	),
	fx.Invoke(func(lc fx.Lifecycle, t *OpenTelemetryTracer) {
		lc.Append(fx.Hook{OnStop: t.Shutdown})
	}),
)

package metrics

import (
	"context"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
)

// Tracer abstracts distributed tracing for jobs, steps and named operations.
type Tracer interface {
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())
	// StartSpan opens a span for an arbitrary operation such as one batch dispatch.
	StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func())
	RecordError(ctx context.Context, module string, err error)
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}

package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
)

// Module registers the logging listeners in the listener groups consumed by
// job assembly.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewLoggingJobListener, fx.As(new(port.JobExecutionListener)), fx.ResultTags(`group:"jobListeners"`)),
		fx.Annotate(NewLoggingStepListener, fx.As(new(port.StepExecutionListener)), fx.ResultTags(`group:"stepListeners"`)),
		fx.Annotate(NewLoggingChunkListener, fx.As(new(port.ChunkListener)), fx.ResultTags(`group:"chunkListeners"`)),
		fx.Annotate(NewLoggingRetryItemListener, fx.As(new(port.RetryItemListener)), fx.ResultTags(`group:"retryListeners"`)),
	),
)

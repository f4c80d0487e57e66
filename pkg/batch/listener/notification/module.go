package notification

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
)

// Module provides a LogNotifier and registers the listener forwarding to it
// in the job listener group.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewLogNotifier, fx.As(new(Notifier))),
		fx.Annotate(NewNotificationListener, fx.As(new(port.JobExecutionListener)), fx.ResultTags(`group:"jobListeners"`)),
	),
)

package job

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/yotposync/pkg/batch/core/application/port"
)

// Module provides the cursor store and registers every job in the "jobs" group.
var Module = fx.Options(
	fx.Provide(
		NewConfiguredCursorStore,
		asJob(NewOrderExportJob),
		asJob(NewLoyaltyOrderBackfillJob),
		asJob(NewLoyaltyCustomerBackfillJob),
	),
)

func asJob(constructor interface{}) interface{} {
	return fx.Annotate(constructor, fx.As(new(port.Job)), fx.ResultTags(`group:"jobs"`))
}

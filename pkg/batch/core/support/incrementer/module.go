// Package incrementer derives the parameters of the next launch of a job
// from the parameters of its previous launch.
package incrementer

import (
	"go.uber.org/fx"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
)

// JobParametersIncrementer returns the parameters of the next launch.
// Implementations never modify params.
type JobParametersIncrementer interface {
	GetNext(params model.JobParameters) model.JobParameters
}

// Next applies every incrementer in order, starting from previous.
func Next(previous model.JobParameters, incrementers ...JobParametersIncrementer) model.JobParameters {
	params := copyParams(previous)
	for _, inc := range incrementers {
		params = inc.GetNext(params)
	}
	return params
}

func copyParams(params model.JobParameters) model.JobParameters {
	next := make(model.JobParameters, len(params))
	for k, v := range params {
		next[k] = v
	}
	return next
}

// Module provides the run id and run start incrementers in the "incrementers" group.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			func() *RunIDIncrementer { return NewRunIDIncrementer(DefaultRunIDKey) },
			fx.As(new(JobParametersIncrementer)),
			fx.ResultTags(`group:"incrementers"`),
		),
		fx.Annotate(
			func() *TimestampIncrementer { return NewTimestampIncrementer(DefaultRunStartKey) },
			fx.As(new(JobParametersIncrementer)),
			fx.ResultTags(`group:"incrementers"`),
		),
	),
)

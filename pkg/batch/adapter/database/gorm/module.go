package gorm

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the connection Provider and closes it on shutdown.
var Module = fx.Options(
	fx.Provide(NewProvider),
	fx.Invoke(func(lc fx.Lifecycle, p *Provider) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return p.CloseAll()
			},
		})
	}),
)

package config

import "go.uber.org/fx"

// NewYotpoConfigProvider narrows *Config to the integration settings.
func NewYotpoConfigProvider(cfg *Config) *YotpoConfig {
	return &cfg.Sync.Yotpo
}

// NewBatchConfigProvider narrows *Config to the engine settings.
func NewBatchConfigProvider(cfg *Config) *BatchConfig {
	return &cfg.Sync.Batch
}

// Module provides the configuration slices consumed by other modules.
var Module = fx.Options(
	fx.Provide(NewYotpoConfigProvider),
	fx.Provide(NewBatchConfigProvider),
)

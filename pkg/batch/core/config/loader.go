package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	model "github.com/tigerroll/yotposync/pkg/batch/core/domain/model"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/exception"
	"github.com/tigerroll/yotposync/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// LoadConfig builds the configuration in four layers:
// NewConfig defaults, the .env file, the embedded YAML (with ${VAR} expansion),
// and finally environment variables named after the yaml tags (YOTPOSYNC_YOTPO_MAX_TIMEOUTS, ...).
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, NewOsEnvironmentExpander())
}

func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	}

	cfg := NewConfig()

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	cfg.EmbeddedConfig = embeddedConfig

	if err := validate(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads *Config and applies the log level
// and the masked parameter keys.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Sync.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Sync.System.Logging.Level)
	model.SetMaskedParameterKeys(cfg.Sync.Security.MaskedParameterKeys)
	return cfg, nil
}

func validate(cfg *Config) error {
	y := cfg.Sync.Yotpo
	if y.MaxTimeouts < 0 {
		return fmt.Errorf("yotpo.max_timeouts must not be negative, got %d", y.MaxTimeouts)
	}
	if y.ErrorThresholdPercent < 0 || y.ErrorThresholdPercent > 100 {
		return fmt.Errorf("yotpo.error_threshold_percent must be within [0, 100], got %v", y.ErrorThresholdPercent)
	}
	if y.OrderExportInitialTimestamp != "" {
		if _, err := time.Parse(time.RFC3339, y.OrderExportInitialTimestamp); err != nil {
			return fmt.Errorf("yotpo.order_export_initial_timestamp must be RFC 3339: %w", err)
		}
	}
	if cfg.Sync.Batch.ChunkSize <= 0 {
		return fmt.Errorf("batch.chunk_size must be positive, got %d", cfg.Sync.Batch.ChunkSize)
	}
	return nil
}

// mergeConfig copies every non-zero value of source into dest.
func mergeConfig(dest, source *Config) {
	d, s := &dest.Sync, &source.Sync

	if s.Batch.JobName != "" {
		d.Batch.JobName = s.Batch.JobName
	}
	if s.Batch.ChunkSize != 0 {
		d.Batch.ChunkSize = s.Batch.ChunkSize
	}
	if s.Batch.MigrateOnStart {
		d.Batch.MigrateOnStart = true
	}

	mergeYotpoConfig(&d.Yotpo, &s.Yotpo)

	if s.System.Timezone != "" {
		d.System.Timezone = s.System.Timezone
	}
	if s.System.Logging.Level != "" {
		d.System.Logging.Level = s.System.Logging.Level
	}

	if s.Infrastructure.PlatformDBRef != "" {
		d.Infrastructure.PlatformDBRef = s.Infrastructure.PlatformDBRef
	}
	if s.Infrastructure.JobRepositoryDBRef != "" {
		d.Infrastructure.JobRepositoryDBRef = s.Infrastructure.JobRepositoryDBRef
	}
	if s.Security.MaskedParameterKeys != nil {
		d.Security.MaskedParameterKeys = s.Security.MaskedParameterKeys
	}
	if s.Metrics.ListenAddress != "" {
		d.Metrics.ListenAddress = s.Metrics.ListenAddress
	}

	if s.Tracing.Endpoint != "" {
		d.Tracing.Endpoint = s.Tracing.Endpoint
	}
	if s.Tracing.Protocol != "" {
		d.Tracing.Protocol = s.Tracing.Protocol
	}
	if s.Tracing.Insecure {
		d.Tracing.Insecure = true
	}
	if s.Tracing.ServiceName != "" {
		d.Tracing.ServiceName = s.Tracing.ServiceName
	}

	if s.Database != nil {
		if d.Database == nil {
			d.Database = make(map[string]interface{})
		}
		for name, raw := range s.Database {
			d.Database[name] = raw
		}
	}
}

func mergeYotpoConfig(dest, source *YotpoConfig) {
	if source.APIBaseURL != "" {
		dest.APIBaseURL = source.APIBaseURL
	}
	if source.LoyaltyBaseURL != "" {
		dest.LoyaltyBaseURL = source.LoyaltyBaseURL
	}
	if source.AuthPath != "" {
		dest.AuthPath = source.AuthPath
	}
	if source.MaxTimeouts != 0 {
		dest.MaxTimeouts = source.MaxTimeouts
	}
	if source.RetryIntervalMillis != 0 {
		dest.RetryIntervalMillis = source.RetryIntervalMillis
	}
	if source.ErrorThresholdPercent != 0 {
		dest.ErrorThresholdPercent = source.ErrorThresholdPercent
	}
	if source.Platform != "" {
		dest.Platform = source.Platform
	}
	if source.PluginVersion != "" {
		dest.PluginVersion = source.PluginVersion
	}
	if source.RequestTimeoutSeconds != 0 {
		dest.RequestTimeoutSeconds = source.RequestTimeoutSeconds
	}
	if source.ExportConfigMetadata {
		dest.ExportConfigMetadata = true
	}
	if source.StorefrontBaseURL != "" {
		dest.StorefrontBaseURL = source.StorefrontBaseURL
	}
	if source.OrderExportInitialTimestamp != "" {
		dest.OrderExportInitialTimestamp = source.OrderExportInitialTimestamp
	}
}

// loadStructFromEnv walks val and sets each field from the environment variable
// formed by the upper-cased yaml tag path, e.g. YOTPOSYNC_BATCH_CHUNK_SIZE.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField converts value to the field's kind. Slices are comma-separated.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				slice = reflect.Append(slice, reflect.ValueOf(p))
			}
		}
		field.Set(slice)
	}
	return nil
}

// Package config provides the configuration structures of yotposync and their defaults.
package config

import "time"

// EmbeddedConfig holds the raw YAML configuration, typically embedded by main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// BatchConfig holds configuration for the chunk-oriented engine.
type BatchConfig struct {
	// JobName selects the job to launch (orderExportJob, loyaltyOrderBackfillJob, loyaltyCustomerBackfillJob).
	JobName string `yaml:"job_name"`
	// ChunkSize is the number of records read, processed and written per chunk.
	ChunkSize int `yaml:"chunk_size"`
	// MigrateOnStart applies the embedded schema migrations before the job runs.
	MigrateOnStart bool `yaml:"migrate_on_start"`
}

// YotpoConfig holds the settings of the outbound SaaS integration.
type YotpoConfig struct {
	// APIBaseURL is the base of the reviews API (auth and purchase feed).
	APIBaseURL string `yaml:"api_base_url"`
	// LoyaltyBaseURL is the base of the loyalty API.
	LoyaltyBaseURL string `yaml:"loyalty_base_url"`
	// AuthPath is appended to APIBaseURL for the client-credentials exchange.
	AuthPath string `yaml:"auth_path"`
	// MaxTimeouts bounds the retries on transient service failures.
	MaxTimeouts int `yaml:"max_timeouts"`
	// RetryIntervalMillis is the pause between transient retries. Zero retries immediately.
	RetryIntervalMillis int `yaml:"retry_interval_millis"`
	// ErrorThresholdPercent is the step error rate above which a run fails.
	ErrorThresholdPercent float64 `yaml:"error_threshold_percent"`
	// Platform is reported in every request envelope.
	Platform string `yaml:"platform"`
	// PluginVersion is reported in every request envelope.
	PluginVersion string `yaml:"plugin_version"`
	// RequestTimeoutSeconds is the HTTP client timeout.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	// ExportConfigMetadata sends locale feature flags before the order export.
	ExportConfigMetadata bool `yaml:"export_config_metadata"`
	// StorefrontBaseURL prefixes product URLs in purchase payloads.
	StorefrontBaseURL string `yaml:"storefront_base_url"`
	// OrderExportInitialTimestamp (RFC 3339) seeds the order export's
	// lastExecutionTimestamp until a run stores its own. Without either,
	// no locale is eligible for the purchase feed.
	OrderExportInitialTimestamp string `yaml:"order_export_initial_timestamp"`
}

// InitialOrderExportTime parses OrderExportInitialTimestamp. It returns nil
// when the value is empty or malformed.
func (y YotpoConfig) InitialOrderExportTime() *time.Time {
	if y.OrderExportInitialTimestamp == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, y.OrderExportInitialTimestamp)
	if err != nil {
		return nil
	}
	return &t
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys lists keys whose values are masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig names the database connections used by infrastructure components.
type InfrastructureConfig struct {
	// PlatformDBRef is the connection holding commerce data and configuration objects.
	PlatformDBRef string `yaml:"platform_db_ref"`
	// JobRepositoryDBRef is the connection holding job and step executions.
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddress enables the /metrics and /healthz server when non-empty (e.g. ":9090").
	ListenAddress string `yaml:"listen_address"`
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	// Endpoint enables export when non-empty (e.g. "localhost:4318").
	Endpoint string `yaml:"endpoint"`
	// Protocol is "http" or "grpc".
	Protocol string `yaml:"protocol"`
	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}

// SyncConfig holds everything under the "yotposync" top-level key.
type SyncConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	Yotpo          YotpoConfig          `yaml:"yotpo"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Security       SecurityConfig       `yaml:"security"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Tracing        TracingConfig        `yaml:"tracing"`
	// Database holds named connection settings, decoded lazily into DatabaseConfig.
	Database map[string]interface{} `yaml:"database"`
}

// Config is the root of the application configuration.
type Config struct {
	Sync           SyncConfig     `yaml:"yotposync"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Batch: BatchConfig{
				JobName:   "orderExportJob",
				ChunkSize: 10,
			},
			Yotpo: YotpoConfig{
				APIBaseURL:            "https://api.yotpo.com",
				LoyaltyBaseURL:        "https://loyalty.yotpo.com/api/v2",
				AuthPath:              "/auth",
				MaxTimeouts:           5,
				ErrorThresholdPercent: 3,
				Platform:              "commerce_cloud",
				PluginVersion:         "1.0.0",
				RequestTimeoutSeconds: 30,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Infrastructure: InfrastructureConfig{
				PlatformDBRef:      "platform",
				JobRepositoryDBRef: "platform",
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret", "client_secret", "utoken"},
			},
			Tracing: TracingConfig{
				Protocol:    "http",
				ServiceName: "yotposync",
			},
			Database: map[string]interface{}{},
		},
	}
}

package config

import "time"

// Config is the root configuration of the task manager service
type Config struct {
	Service           ServiceConfig           `mapstructure:"service"`
	HTTP              HTTPConfig              `mapstructure:"http"`
	Management        ManagementConfig        `mapstructure:"management"`
	CORS              CORSConfig              `mapstructure:"cors"`
	Database          DatabaseConfig          `mapstructure:"database"`
	Observability     ObservabilityConfig     `mapstructure:"observability"`
	Swagger           SwaggerConfig           `mapstructure:"swagger"`
	OpenAPIValidation OpenAPIValidationConfig `mapstructure:"openapi_validation"`
	Migration         MigrationConfig         `mapstructure:"migration"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// HTTPConfig configures the public API server
type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size"`
}

// ManagementConfig configures the management server
type ManagementConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MTLSEnabled  bool          `mapstructure:"mtls_enabled"`
	TLSCertFile  string        `mapstructure:"tls_cert_file"`
	TLSKeyFile   string        `mapstructure:"tls_key_file"`
	TLSCAFile    string        `mapstructure:"tls_ca_file"`
}

// CORSConfig configures CORS middleware for browser-based clients.
type CORSConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	AllowMethods     []string      `mapstructure:"allow_methods"`
	AllowHeaders     []string      `mapstructure:"allow_headers"`
	ExposeHeaders    []string      `mapstructure:"expose_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// DatabaseConfig configures the MongoDB connection holding tasks and task types.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	DatabaseName   string        `mapstructure:"database_name"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	// Transactions runs multi-step writes in a MongoDB session. It needs a replica set.
	Transactions   bool                 `mapstructure:"transactions"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig stops calling MongoDB after consecutive failures.
type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string               `mapstructure:"log_level"`
	LogFormat         string               `mapstructure:"log_format"` // json, text
	TracingEnabled    bool                 `mapstructure:"tracing_enabled"`
	TracingSampleRate float64              `mapstructure:"tracing_sample_rate"`
	TracingEndpoint   string               `mapstructure:"tracing_endpoint"`
	AsyncLogging      AsyncLoggingConfig   `mapstructure:"async_logging"`
	RequestLogging    RequestLoggingConfig `mapstructure:"request_logging"`
	RequestTracing    RequestTracingConfig `mapstructure:"request_tracing"`
	RequestTimeout    RequestTimeoutConfig `mapstructure:"request_timeout"`
}

// AsyncLoggingConfig configures optional asynchronous logger dispatching.
type AsyncLoggingConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	QueueSize    int  `mapstructure:"queue_size"`
	WorkerCount  int  `mapstructure:"worker_count"`
	DropWhenFull bool `mapstructure:"drop_when_full"`
}

// RequestLoggingConfig configures HTTP request logging middleware behavior.
type RequestLoggingConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	LogStart             bool     `mapstructure:"log_start"`
	ExcludedPathPrefixes []string `mapstructure:"excluded_path_prefixes"`
}

// RequestTracingConfig configures HTTP tracing middleware behavior.
type RequestTracingConfig struct {
	Enabled              bool     `mapstructure:"enabled"`
	ExcludedPathPrefixes []string `mapstructure:"excluded_path_prefixes"`
}

// RequestTimeoutConfig configures HTTP timeout middleware behavior.
type RequestTimeoutConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Default              time.Duration `mapstructure:"default"`
	ExcludedPathPrefixes []string      `mapstructure:"excluded_path_prefixes"`
}

// SwaggerConfig configures the Swagger UI on the management server
type SwaggerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// OpenAPIValidationConfig configures request validation against the embedded OpenAPI document.
type OpenAPIValidationConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Mode is strict or warn-only.
	Mode           string `mapstructure:"mode"`
	ValidateBodies bool   `mapstructure:"validate_bodies"`
}

// MigrationConfig configures the task type schema migration.
type MigrationConfig struct {
	// AutoMigrate upgrades stored task types before the servers start.
	AutoMigrate bool          `mapstructure:"auto_migrate"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "taskmanager",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestSize:  1 << 20,
		},
		Management: ManagementConfig{
			Enabled:      true,
			Port:         9090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		CORS: CORSConfig{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
			ExposeHeaders: []string{"X-Request-ID"},
			MaxAge:        12 * time.Hour,
		},
		Database: DatabaseConfig{
			URL:            "mongodb://localhost:27017",
			DatabaseName:   "taskmanager",
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   5 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      true,
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingSampleRate: 0.1,
			TracingEndpoint:   "localhost:4317",
			AsyncLogging: AsyncLoggingConfig{
				QueueSize:   1024,
				WorkerCount: 1,
			},
			RequestLogging: RequestLoggingConfig{
				Enabled:              true,
				ExcludedPathPrefixes: []string{"/health", "/ready", "/metrics"},
			},
			RequestTracing: RequestTracingConfig{
				Enabled:              true,
				ExcludedPathPrefixes: []string{"/health", "/ready", "/metrics"},
			},
			RequestTimeout: RequestTimeoutConfig{
				Default: 15 * time.Second,
			},
		},
		OpenAPIValidation: OpenAPIValidationConfig{
			Mode: "strict",
		},
		Migration: MigrationConfig{
			AutoMigrate: true,
			Timeout:     5 * time.Minute,
		},
	}
}

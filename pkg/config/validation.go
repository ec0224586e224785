package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validate checks if the configuration is valid and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http.shutdown_timeout must be positive"))
	}
	if c.HTTP.MaxRequestSize < 0 {
		errs = append(errs, errors.New("http.max_request_size cannot be negative"))
	}

	if c.Management.Enabled {
		if c.Management.Port <= 0 || c.Management.Port > 65535 {
			errs = append(errs, fmt.Errorf("management.port must be between 1 and 65535, got %d", c.Management.Port))
		}
		if c.Management.Port == c.HTTP.Port {
			errs = append(errs, errors.New("management.port must differ from http.port"))
		}
		if c.Management.MTLSEnabled {
			if c.Management.TLSCertFile == "" {
				errs = append(errs, errors.New("management.tls_cert_file is required when mtls is enabled"))
			}
			if c.Management.TLSKeyFile == "" {
				errs = append(errs, errors.New("management.tls_key_file is required when mtls is enabled"))
			}
			if c.Management.TLSCAFile == "" {
				errs = append(errs, errors.New("management.tls_ca_file is required when mtls is enabled"))
			}
		}
	}

	if c.CORS.Enabled && len(c.CORS.AllowOrigins) == 0 {
		errs = append(errs, errors.New("cors.allow_origins must contain at least one origin when cors is enabled"))
	}

	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if strings.TrimSpace(c.Database.DatabaseName) == "" {
		errs = append(errs, errors.New("database.database_name is required"))
	}
	if c.Database.QueryTimeout < 0 {
		errs = append(errs, errors.New("database.query_timeout cannot be negative"))
	}
	if cb := c.Database.CircuitBreaker; cb.Enabled {
		if cb.MaxFailures < 1 {
			errs = append(errs, errors.New("database.circuit_breaker.max_failures must be at least 1"))
		}
		if cb.ResetTimeout <= 0 {
			errs = append(errs, errors.New("database.circuit_breaker.reset_timeout must be positive"))
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Observability.LogLevel)) {
		errs = append(errs, fmt.Errorf("observability.log_level must be one of %v", validLevels))
	}
	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, strings.ToLower(c.Observability.LogFormat)) {
		errs = append(errs, fmt.Errorf("observability.log_format must be one of %v", validFormats))
	}
	if c.Observability.TracingEnabled {
		if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
			errs = append(errs, errors.New("observability.tracing_sample_rate must be between 0 and 1"))
		}
		if strings.TrimSpace(c.Observability.TracingEndpoint) == "" {
			errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
		}
	}
	if c.Observability.AsyncLogging.Enabled {
		if c.Observability.AsyncLogging.QueueSize <= 0 {
			errs = append(errs, errors.New("observability.async_logging.queue_size must be greater than 0 when async logging is enabled"))
		}
		if c.Observability.AsyncLogging.WorkerCount <= 0 {
			errs = append(errs, errors.New("observability.async_logging.worker_count must be greater than 0 when async logging is enabled"))
		}
	}
	if c.Observability.RequestTimeout.Enabled && c.Observability.RequestTimeout.Default <= 0 {
		errs = append(errs, errors.New("observability.request_timeout.default must be greater than 0 when request timeout is enabled"))
	}

	if c.OpenAPIValidation.Enabled {
		validModes := []string{"strict", "warn-only"}
		if !slices.Contains(validModes, strings.ToLower(c.OpenAPIValidation.Mode)) {
			errs = append(errs, fmt.Errorf("openapi_validation.mode must be one of %v", validModes))
		}
	}

	if c.Migration.Timeout < 0 {
		errs = append(errs, errors.New("migration.timeout cannot be negative"))
	}

	return errors.Join(errs...)
}

// RedactSettings masks every value of settings that is also set in secrets.
func RedactSettings(settings, secrets map[string]interface{}) map[string]interface{} {
	if len(settings) == 0 || len(secrets) == 0 {
		return settings
	}
	out := make(map[string]interface{}, len(settings))
	for key, value := range settings {
		mask, ok := secrets[key]
		if !ok {
			out[key] = value
			continue
		}
		out[key] = redactSettingValue(value, mask)
	}
	return out
}

// FormatSettings renders settings as YAML.
func FormatSettings(settings map[string]interface{}) (string, error) {
	if settings == nil {
		return "{}\n", nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func redactSettingValue(value, mask interface{}) interface{} {
	maskMap, maskIsMap := mask.(map[string]interface{})
	if maskIsMap {
		valueMap, valueIsMap := value.(map[string]interface{})
		if !valueIsMap {
			if shouldRedact(mask) {
				return "***"
			}
			return value
		}
		out := make(map[string]interface{}, len(valueMap))
		for key, item := range valueMap {
			childMask, ok := maskMap[key]
			if !ok {
				out[key] = item
				continue
			}
			out[key] = redactSettingValue(item, childMask)
		}
		return out
	}
	if shouldRedact(mask) {
		return "***"
	}
	return value
}

func shouldRedact(mask interface{}) bool {
	if mask == nil {
		return false
	}
	switch value := mask.(type) {
	case string:
		return strings.TrimSpace(value) != ""
	case bool:
		return value
	case []interface{}:
		return len(value) > 0
	case map[string]interface{}:
		return len(value) > 0
	default:
		return !reflect.ValueOf(mask).IsZero()
	}
}

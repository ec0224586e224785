package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix prefixes every environment variable read by the loader.
const DefaultEnvPrefix = "TASKMANAGER"

// Loader produces a validated Config.
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader layers command line flags over environment variables over the
// secrets file over the config file over DefaultConfig.
type ViperLoader struct {
	configFile         string
	envPrefix          string
	serviceNameDefault string
	secretsPath        string
	flags              *pflag.FlagSet
	settings           map[string]interface{}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":   "observability.log_level",
	"http-port":   "http.port",
	"mgmt-port":   "management.port",
	"db-url":      "database.url",
	"db-name":     "database.database_name",
	"environment": "service.environment",
}

// envSections shortens the first key segment in environment variable names.
// An empty value drops the segment: observability.log_level reads LOG_LEVEL.
var envSections = map[string]string{
	"management":    "MGMT",
	"database":      "DB",
	"observability": "",
}

// envAliases lists extra variable suffixes accepted for a key, after the
// canonical one.
var envAliases = map[string][]string{
	"service.environment":      {"ENVIRONMENT"},
	"management.port":          {"MANAGEMENT_PORT"},
	"management.read_timeout":  {"MANAGEMENT_READ_TIMEOUT"},
	"management.write_timeout": {"MANAGEMENT_WRITE_TIMEOUT"},
	"management.mtls_enabled":  {"MANAGEMENT_MTLS_ENABLED"},
	"database.url":             {"DATABASE_URL"},
	"database.database_name":   {"DATABASE_DATABASE_NAME"},
	"database.connect_timeout": {"DATABASE_CONNECT_TIMEOUT"},
	"database.query_timeout":   {"DATABASE_QUERY_TIMEOUT"},
}

// NewViperLoader reads configFile when it is not empty. envPrefix defaults to
// DefaultEnvPrefix.
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{configFile: configFile, envPrefix: envPrefix}
}

// WithServiceNameDefault replaces the default service.name.
func (l *ViperLoader) WithServiceNameDefault(serviceName string) *ViperLoader {
	l.serviceNameDefault = strings.TrimSpace(serviceName)
	return l
}

// WithSecretsFile names the secrets file explicitly, ahead of
// <PREFIX>_SECRETS_FILE and the default locations.
func (l *ViperLoader) WithSecretsFile(path string) *ViperLoader {
	l.secretsPath = strings.TrimSpace(path)
	return l
}

// WithFlags binds the flags named in flagKeys. A flag only overrides the
// configuration when it was set explicitly.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	l.flags = flags
	return l
}

// Settings returns the merged settings of the last successful load.
func (l *ViperLoader) Settings() map[string]interface{} {
	return l.settings
}

func (l *ViperLoader) Load() (*Config, error) {
	cfg, _, err := l.load(false)
	return cfg, err
}

func (l *ViperLoader) load(withSecrets bool) (*Config, map[string]interface{}, error) {
	defaults := DefaultConfig()
	if l.serviceNameDefault != "" {
		defaults.Service.Name = l.serviceNameDefault
	}

	v := viper.New()
	for key, value := range settingKeys(defaults) {
		v.SetDefault(key, value)
		if err := v.BindEnv(append([]string{key}, l.envNames(key)...)...); err != nil {
			return nil, nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	var secrets map[string]interface{}
	if withSecrets {
		var err error
		if secrets, err = l.mergeSecrets(v); err != nil {
			return nil, nil, err
		}
	}

	if err := l.bindFlags(v); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	l.settings = v.AllSettings()
	return &cfg, secrets, nil
}

// Validate trims list settings and checks cfg.
func (l *ViperLoader) Validate(cfg *Config) error {
	cfg.CORS.AllowOrigins = trimAll(cfg.CORS.AllowOrigins)
	obs := &cfg.Observability
	obs.RequestLogging.ExcludedPathPrefixes = trimAll(obs.RequestLogging.ExcludedPathPrefixes)
	obs.RequestTracing.ExcludedPathPrefixes = trimAll(obs.RequestTracing.ExcludedPathPrefixes)
	obs.RequestTimeout.ExcludedPathPrefixes = trimAll(obs.RequestTimeout.ExcludedPathPrefixes)
	return cfg.Validate()
}

// EnvName returns the canonical environment variable for a configuration key,
// e.g. database.query_timeout -> TASKMANAGER_DB_QUERY_TIMEOUT.
func (l *ViperLoader) EnvName(key string) string {
	parts := strings.Split(key, ".")
	if short, ok := envSections[parts[0]]; ok {
		if short == "" {
			parts = parts[1:]
		} else {
			parts[0] = short
		}
	}
	return l.prefixedEnv(strings.ToUpper(strings.Join(parts, "_")))
}

// envNames lists the variables bound to key, canonical first. Viper uses the
// first one that is set.
func (l *ViperLoader) envNames(key string) []string {
	names := []string{l.EnvName(key)}
	for _, alias := range envAliases[key] {
		names = append(names, l.prefixedEnv(alias))
	}
	return names
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (l *ViperLoader) prefix() string {
	if p := strings.TrimSpace(l.envPrefix); p != "" {
		return strings.ToUpper(p)
	}
	return DefaultEnvPrefix
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	return l.prefix() + "_" + suffix
}

// settingKeys flattens cfg into dotted mapstructure keys.
func settingKeys(cfg *Config) map[string]interface{} {
	out := make(map[string]interface{})
	flattenInto(out, "", reflect.ValueOf(cfg).Elem())
	return out
}

func flattenInto(out map[string]interface{}, prefix string, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		field := v.Field(i)
		if field.Kind() == reflect.Struct {
			flattenInto(out, key, field)
			continue
		}
		out[key] = field.Interface()
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// lookupEnv reports a trimmed environment variable.
func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	return strings.TrimSpace(v), ok
}

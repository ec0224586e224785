// Package cli builds the cobra command tree of the task manager binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nimburion/taskmanager/pkg/api"
	"github.com/nimburion/taskmanager/pkg/app"
	cliopenapi "github.com/nimburion/taskmanager/pkg/cli/openapi"
	"github.com/nimburion/taskmanager/pkg/config"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/security"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const fallbackServiceName = "taskmanager"

// ServiceCommandOptions configures the root command. Nil hooks default to the
// task manager implementations in package app.
type ServiceCommandOptions struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	RunServer         func(ctx context.Context, cfg *config.Config, log logger.Logger) error
	RunMigrations     func(ctx context.Context, cfg *config.Config, log logger.Logger, subcommand string, steps int) error
	CheckDependencies func(ctx context.Context, cfg *config.Config, log logger.Logger) error

	Stdout io.Writer
}

func (o *ServiceCommandOptions) fillDefaults() {
	if o.EnvPrefix == "" {
		o.EnvPrefix = config.DefaultEnvPrefix
	}
	if o.RunServer == nil {
		o.RunServer = app.Run
	}
	if o.RunMigrations == nil {
		o.RunMigrations = app.Migrate
	}
	if o.CheckDependencies == nil {
		o.CheckDependencies = app.CheckDependencies
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
}

// NewTaskManagerCommand returns the root command of the taskmanager binary.
func NewTaskManagerCommand() *cobra.Command {
	return NewServiceCommand(ServiceCommandOptions{
		Name:        fallbackServiceName,
		Description: "Task manager REST service backed by MongoDB",
		EnvPrefix:   config.DefaultEnvPrefix,
	})
}

// NewServiceCommand builds the command tree: serve (also the default), migrate,
// healthcheck, config, openapi and version.
func NewServiceCommand(opts ServiceCommandOptions) *cobra.Command {
	opts.fillDefaults()
	cs := &commandSet{opts: opts}

	root := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	cs.registerFlags(root.PersistentFlags())

	serve := cs.serveCommand()
	root.RunE = serve.RunE
	root.AddCommand(
		serve,
		cs.migrateCommand(),
		cs.healthcheckCommand(),
		cs.configCommand(),
		cs.versionCommand(),
	)
	// Route collection only records paths, so a zero Handler is enough.
	if openAPI := cliopenapi.NewCommand(cliopenapi.CommandOptions{
		RegisterRoutes: new(api.Handler).Register,
		Stdout:         opts.Stdout,
	}); openAPI != nil {
		root.AddCommand(openAPI)
	}
	return root
}

// NewLogger builds the zap logger described by cfg.Observability.
func NewLogger(cfg *config.Config) (logger.Logger, error) {
	level, err := logger.ParseLogLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format, Service: cfg.Service.Name})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}

// Execute runs the command and exits with status 1 on failure.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandSet carries the options and persistent flag values shared by every
// subcommand.
type commandSet struct {
	opts ServiceCommandOptions

	configFile  string
	secretsFile string
	serviceName string
}

func (cs *commandSet) registerFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&cs.configFile, "config-file", "c", cs.opts.ConfigPath, "config file path")
	flags.StringVar(&cs.secretsFile, "secret-file", "", "secrets file path, overrides "+envPrefix(cs.opts.EnvPrefix)+"_SECRETS_FILE")
	flags.StringVar(&cs.serviceName, "service-name", "", "service name override")

	defaults := config.DefaultConfig()
	flags.String("log-level", defaults.Observability.LogLevel, "log level (debug, info, warn, error)")
	flags.Int("http-port", defaults.HTTP.Port, "public API port")
	flags.Int("mgmt-port", defaults.Management.Port, "management server port")
	flags.String("db-url", defaults.Database.URL, "MongoDB connection URL")
	flags.String("db-name", defaults.Database.DatabaseName, "MongoDB database name")
	flags.String("environment", defaults.Service.Environment, "deployment environment")
}

// loaded is one resolution of the layered configuration.
type loaded struct {
	cfg     *config.Config
	secrets map[string]interface{}
	loader  *config.ViperLoader
}

func (cs *commandSet) load(cmd *cobra.Command) (loaded, error) {
	if cs.secretsFile != "" {
		if err := security.ValidateFilePath(cs.secretsFile, ""); err != nil {
			return loaded{}, fmt.Errorf("secret file %s: %w", cs.secretsFile, err)
		}
	}
	loader := config.NewViperLoader(cs.configFile, cs.opts.EnvPrefix).
		WithServiceNameDefault(cs.opts.Name).
		WithSecretsFile(cs.secretsFile).
		WithFlags(cmd.Flags())
	cfg, secrets, err := loader.LoadWithSecrets()
	if err != nil {
		return loaded{}, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Name = resolveServiceNameValue(cfg.Service.Name, cs.opts.Name, cs.serviceName)
	return loaded{cfg: cfg, secrets: secrets, loader: loader}, nil
}

// runtime loads the configuration and the logger for commands that touch
// the store or the network.
func (cs *commandSet) runtime(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	l, err := cs.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := NewLogger(l.cfg)
	if err != nil {
		return nil, nil, err
	}
	if l.cfg.Observability.LogLevel == string(logger.DebugLevel) {
		log.Debug("effective configuration", "config", redactedSummary(l.cfg))
	}
	return l.cfg, log, nil
}

func redactedSummary(cfg *config.Config) string {
	c := *cfg
	if c.Database.URL != "" {
		c.Database.URL = "***"
	}
	return fmt.Sprintf("%+v", c)
}

func envPrefix(prefix string) string {
	if p := strings.TrimSpace(prefix); p != "" {
		return strings.ToUpper(p)
	}
	return config.DefaultEnvPrefix
}

// resolveServiceNameValue picks the --service-name flag, then the configured
// name, then the command default.
func resolveServiceNameValue(configured, commandDefault, override string) string {
	for _, candidate := range []string{override, configured, commandDefault} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return fallbackServiceName
}

package cli

import (
	"fmt"
	"os"

	"github.com/nimburion/taskmanager/pkg/config"
	"github.com/nimburion/taskmanager/pkg/configschema"
	"github.com/nimburion/taskmanager/pkg/migrate"
	"github.com/nimburion/taskmanager/pkg/security"
	"github.com/nimburion/taskmanager/pkg/version"
	"github.com/spf13/cobra"
)

func (cs *commandSet) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the public API and management servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := cs.runtime(cmd)
			if err != nil {
				return err
			}
			return cs.opts.RunServer(cmd.Context(), cfg, log)
		},
	}
}

func (cs *commandSet) healthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to MongoDB and the task type schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := cs.runtime(cmd)
			if err != nil {
				return err
			}
			return cs.opts.CheckDependencies(cmd.Context(), cfg, log)
		},
	}
}

func (cs *commandSet) migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Task type schema migration commands",
	}
	sub := func(name, use, short string, args cobra.PositionalArgs) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(c *cobra.Command, rest []string) error {
				command, steps, err := migrate.ParseArgs(append([]string{name}, rest...))
				if err != nil {
					return err
				}
				cfg, log, err := cs.runtime(c)
				if err != nil {
					return err
				}
				return cs.opts.RunMigrations(c.Context(), cfg, log, command, steps)
			},
		}
	}
	cmd.AddCommand(
		sub(migrate.CommandUp, migrate.CommandUp, "Convert task types written before the current schema", cobra.NoArgs),
		sub(migrate.CommandDown, migrate.CommandDown+" [steps]", "Roll back the schema (refused for task types)", cobra.MaximumNArgs(1)),
		sub(migrate.CommandStatus, migrate.CommandStatus, "Show applied and pending schema versions", cobra.NoArgs),
	)
	return cmd
}

func (cs *commandSet) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}
	cmd.AddCommand(cs.configValidateCommand(), cs.configShowCommand(), cs.configSchemaCommand())
	return cmd
}

func (cs *commandSet) configValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cs.load(cmd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return nil
		},
	}
}

func (cs *commandSet) configShowCommand() *cobra.Command {
	var showSecrets bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := cs.load(cmd)
			if err != nil {
				return err
			}
			settings := withServiceName(l.loader.Settings(), l.cfg.Service.Name)
			if !showSecrets {
				settings = config.RedactSettings(settings, l.secrets)
			}
			out, err := config.FormatSettings(settings)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	return cmd
}

// withServiceName reports the resolved service name, which may come from
// --service-name rather than any configuration layer.
func withServiceName(settings map[string]interface{}, name string) map[string]interface{} {
	if settings == nil {
		settings = map[string]interface{}{}
	}
	service, _ := settings["service"].(map[string]interface{})
	if service == nil {
		service = map[string]interface{}{}
	}
	service["name"] = name
	settings["service"] = service
	return settings
}

func (cs *commandSet) configSchemaCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := config.DefaultConfig()
			defaults.Service.Name = resolveServiceNameValue("", cs.opts.Name, cs.serviceName)
			schema, err := configschema.BuildSchema(defaults)
			if err != nil {
				return err
			}
			data, err := configschema.Marshal(schema)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := security.ValidateFilePath(output, ""); err != nil {
				return fmt.Errorf("output %s: %w", output, err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write config schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration schema written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path, stdout when empty")
	return cmd
}

func (cs *commandSet) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current(cs.opts.Name)
			_, err := fmt.Fprintf(cmd.OutOrStdout(),
				"Service:    %s\nVersion:    %s\nCommit:     %s\nBuild Time: %s\n",
				info.Service, info.Version, info.Commit, info.BuildTime)
			return err
		},
	}
}

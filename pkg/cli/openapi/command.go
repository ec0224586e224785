// Package openapi provides the "openapi" command of the service CLI.
package openapi

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nimburion/taskmanager/pkg/security"
	serveropenapi "github.com/nimburion/taskmanager/pkg/server/openapi"
	"github.com/nimburion/taskmanager/pkg/server/router"
	"github.com/spf13/cobra"
)

// CommandOptions configures the OpenAPI command tree.
type CommandOptions struct {
	// RegisterRoutes mounts the API routes. The handlers are never called.
	RegisterRoutes func(r router.Router)
	Stdout         io.Writer
}

// NewCommand creates the "openapi" command with its export and check subcommands.
func NewCommand(opts CommandOptions) *cobra.Command {
	if opts.RegisterRoutes == nil {
		return nil
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "OpenAPI document commands",
	}

	var outputPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the embedded OpenAPI document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(opts.Stdout, outputPath)
		},
	}
	exportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path, stdout when empty")
	cmd.AddCommand(exportCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Fail when a registered route is missing from the OpenAPI document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	})

	return cmd
}

func runExport(stdout io.Writer, outputPath string) error {
	raw := serveropenapi.Raw()
	if strings.TrimSpace(outputPath) == "" {
		_, err := stdout.Write(raw)
		return err
	}
	if err := security.ValidateFilePath(outputPath, ""); err != nil {
		return fmt.Errorf("output %s: %w", outputPath, err)
	}
	if err := os.WriteFile(outputPath, raw, 0o644); err != nil {
		return fmt.Errorf("write openapi document: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "✓ OpenAPI document written to %s\n", outputPath)
	return nil
}

func runCheck(cmd *cobra.Command, opts CommandOptions) error {
	doc, err := serveropenapi.Load(cmd.Context())
	if err != nil {
		return err
	}

	routes := serveropenapi.CollectRoutes(opts.RegisterRoutes)
	if len(routes) == 0 {
		return fmt.Errorf("no routes were registered")
	}
	missing := serveropenapi.Undocumented(doc, routes)
	for _, route := range missing {
		_, _ = fmt.Fprintf(opts.Stdout, "✗ %s %s\n", route.Method, route.Path)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%d of %d routes are missing from the OpenAPI document", len(missing), len(routes))
	}
	_, _ = fmt.Fprintf(opts.Stdout, "✓ all %d routes are documented\n", len(routes))
	return nil
}

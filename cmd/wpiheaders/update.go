// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/coordinator"

	"github.com/spf13/cobra"
)

func newUpdateCommand(app *App) *cobra.Command {
	var (
		roots rootFlags
		flags runFlags
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update include paths in every c_cpp_properties.json",
		Long: `Update include paths in every c_cpp_properties.json.

The compiler's built-in include directories are combined with the headers
reported by the project's getHeaders task, and the result replaces the
includePath of every configuration. The Windows configuration also gets
its intelliSenseMode set.

Exits with status 1 when any workspace root failed.`,
		Example: `  wpiheaders update
  wpiheaders update --root robot --root vision
  wpiheaders update --workspace-file frc.code-workspace --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), app, roots, flags)
		},
	}
	roots.register(cmd)
	flags.register(cmd)
	return cmd
}

func runUpdate(ctx context.Context, app *App, rf rootFlags, flags runFlags) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	roots, err := rf.resolveRoots(loaded.Config)
	if err != nil {
		return app.fail(err)
	}

	coord, err := app.newCoordinator(loaded.Config, roots, flags)
	if err != nil {
		return app.fail(err)
	}
	defer func() { _ = coord.Close() }()

	report, runErr := coord.Run(ctx)
	if flags.dryRun && runErr == nil {
		app.printMerged(report)
	}
	return app.reportRun(report, runErr, loaded.UI.ColorScheme)
}

// printMerged writes every merged document to stdout under a path header.
func (a *App) printMerged(report coordinator.Report) {
	for _, rr := range report.Roots {
		for _, f := range rr.Files {
			_, _ = fmt.Fprintf(a.stdout, "%s %s\n", TitleStyle.Render("==>"), PathStyle.Render(f.Path))
			_, _ = a.stdout.Write(f.Content)
		}
	}
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/workspace"

	"github.com/spf13/cobra"
)

func newListCommand(app *App) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Run one discovery step and print its result",
		Long: `Run one discovery step and print its result.

Useful for diagnosing toolchain or build problems without touching any
configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	listCmd.AddCommand(&cobra.Command{
		Use:   "compiler",
		Short: "Print the compiler's built-in include directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listCompiler(cmd.Context(), app)
		},
	})

	listCmd.AddCommand(&cobra.Command{
		Use:   "project [root]",
		Short: "Print the project's header directories as written to the configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := ""
			if len(args) == 1 {
				root = args[0]
			}
			return listProject(cmd.Context(), app, root)
		},
	})

	var roots rootFlags
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Print the c_cpp_properties.json files that an update would rewrite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listFiles(cmd.Context(), app, roots)
		},
	}
	roots.register(filesCmd)
	listCmd.AddCommand(filesCmd)

	return listCmd
}

func listCompiler(ctx context.Context, app *App) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	dirs, err := app.compilerExtractor(loaded.Config).Extract(ctx)
	if err != nil {
		return app.failWithGuidance(issue.WrapWithOperation(err, "list compiler include directories"), loaded.UI.ColorScheme)
	}
	for _, dir := range dirs {
		_, _ = fmt.Fprintln(app.stdout, dir)
	}
	return nil
}

func listProject(ctx context.Context, app *App, rootArg string) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	var src workspace.Sources
	if rootArg != "" {
		src.Paths = []string{rootArg}
	}
	roots, err := workspace.Resolve(src)
	if err != nil {
		return app.fail(err)
	}

	headers, err := app.projectExtractor(loaded.Config).Extract(ctx, roots[0].Path)
	if err != nil {
		return app.failWithGuidance(issue.WrapWithContext(err, "list project headers", roots[0].Path), loaded.UI.ColorScheme)
	}
	for _, h := range headers {
		_, _ = fmt.Fprintln(app.stdout, h)
	}
	return nil
}

func listFiles(ctx context.Context, app *App, rf rootFlags) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}

	roots, err := rf.resolveRoots(loaded.Config)
	if err != nil {
		return app.fail(err)
	}
	finder, err := workspace.NewFinder(loaded.Properties.Pattern, nil)
	if err != nil {
		return app.fail(err)
	}

	for _, root := range roots {
		files, err := finder.Find(root)
		if err != nil {
			return app.fail(err)
		}
		for _, f := range files {
			_, _ = fmt.Fprintln(app.stdout, f)
		}
	}
	return nil
}

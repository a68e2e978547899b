// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `wpiheaders config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage wpiheaders configuration",
		Long: `Manage wpiheaders configuration.

Configuration is read from the first of:
  - the file given with --config
  - config.cue in the directory given with --config-dir
  - <config dir>/wpiheaders/config.cue
  - ./config.cue

Every key can be overridden with a WPIHEADERS_<SECTION>_<KEY> environment
variable, or with the same variable in a .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Long: `Create the default configuration file.

An existing file is left alone unless --force is given, in which case it is
replaced with the defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show where the configuration file is looked up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(app.stdout, config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	out := app.stdout

	_, _ = fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	_, _ = fmt.Fprintln(out)

	source := SubtitleStyle.Render("(using defaults)")
	if loaded.Path != "" {
		source = PathStyle.Render(loaded.Path)
	}
	_, _ = fmt.Fprintf(out, "%s: %s\n", SubtitleStyle.Render("Config file"), source)

	sections := []struct {
		name string
		rows [][2]string
	}{
		{"compiler", [][2]string{
			{"command", cfg.Compiler.Command},
			{"start_marker", cfg.Compiler.StartMarker},
			{"end_marker", cfg.Compiler.EndMarker},
			{"timeout", cfg.Compiler.Timeout.String()},
			{"per_root", fmt.Sprint(cfg.Compiler.PerRoot)},
		}},
		{"build_tool", [][2]string{
			{"command", cfg.BuildTool.Command},
			{"sentinel", fmt.Sprintf("%q", cfg.BuildTool.Sentinel)},
			{"timeout", cfg.BuildTool.Timeout.String()},
		}},
		{"properties", [][2]string{
			{"pattern", cfg.Properties.Pattern},
			{"placeholder", cfg.Properties.Placeholder},
			{"windows_name", cfg.Properties.WindowsName},
			{"intellisense_mode", cfg.Properties.IntelliSenseMode},
			{"indent", fmt.Sprintf("%q", cfg.Properties.Indent)},
		}},
		{"workspace", [][2]string{
			{"roots", listOrNone(cfg.Workspace.Roots)},
			{"parallelism", fmt.Sprint(cfg.Workspace.Parallelism)},
		}},
		{"watch", [][2]string{
			{"patterns", listOrNone(cfg.Watch.Patterns)},
			{"debounce", cfg.Watch.Debounce.String()},
		}},
		{"ui", [][2]string{
			{"color_scheme", cfg.UI.ColorScheme.String()},
			{"verbose", fmt.Sprint(cfg.UI.Verbose)},
		}},
	}

	for _, sec := range sections {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintf(out, "%s:\n", SubtitleStyle.Render(sec.name))
		for _, row := range sec.rows {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", row[0], SuccessStyle.Render(row[1]))
		}
	}
	return nil
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func initConfig(app *App, force bool) error {
	if force {
		if err := config.Save(config.DefaultConfig()); err != nil {
			return app.fail(fmt.Errorf("failed to reset config: %w", err))
		}
	}
	cfgPath, err := config.CreateDefaultConfig()
	if err != nil {
		return app.fail(fmt.Errorf("failed to create config: %w", err))
	}
	_, _ = fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), PathStyle.Render(cfgPath))
	return nil
}

func showConfigPath(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return app.fail(err)
	}
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return app.fail(err)
	}

	_, _ = fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	_, _ = fmt.Fprintf(app.stdout, "Config file: %s\n", cfgPath)
	return nil
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"log/slog"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/watch"

	"github.com/spf13/cobra"
)

func newWatchCommand(app *App) *cobra.Command {
	var (
		roots rootFlags
		flags runFlags
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Update now and again whenever build files change",
		Long: `Update now and again whenever build files change.

After an initial update, wpiheaders watches the workspace roots for changes
to gradle build scripts and vendor dependency files and runs another update
once the changes settle. Changes that arrive during an update are picked up
by a follow-up run. Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), app, roots, flags)
		},
	}
	roots.register(cmd)
	flags.register(cmd)
	return cmd
}

func runWatch(ctx context.Context, app *App, rf rootFlags, flags runFlags) error {
	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	cfg := loaded.Config

	roots, err := rf.resolveRoots(cfg)
	if err != nil {
		return app.fail(err)
	}

	coord, err := app.newCoordinator(cfg, roots, flags)
	if err != nil {
		return app.fail(err)
	}
	defer func() { _ = coord.Close() }()

	paths := make([]string, len(roots))
	for i, r := range roots {
		paths[i] = r.Path
	}

	w, err := watch.New(watch.Config{
		Roots:    paths,
		Patterns: cfg.Watch.Patterns,
		Debounce: cfg.Watch.Debounce,
		OnChange: func(ctx context.Context, changed []string) error {
			slog.Info("build files changed", "files", changed)
			report, runErr := coord.Run(ctx)
			if report.Skipped {
				return watch.ErrBusy
			}
			// Failures are reported and watching goes on.
			_ = app.reportRun(report, runErr, cfg.UI.ColorScheme)
			return nil
		},
	})
	if err != nil {
		return app.fail(err)
	}

	report, runErr := coord.Run(ctx)
	_ = app.reportRun(report, runErr, cfg.UI.ColorScheme)

	// Run also releases the watcher when ctx is already done.
	slog.Info("watching for build file changes", "roots", len(paths))
	if err := w.Run(ctx); err != nil {
		return app.fail(err)
	}
	return nil
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/ccprops"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/compiler"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/config"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/coordinator"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/project"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/runlock"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/workspace"

	"github.com/spf13/cobra"
)

type (
	// rootFlags select the workspace roots of a command.
	rootFlags struct {
		roots         []string
		workspaceFile string
	}

	// runFlags tune a coordinated header update.
	runFlags struct {
		dryRun bool
		noLock bool
	}
)

func (f *rootFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.roots, "root", "r", nil, "workspace root directory (repeatable; default is the current directory)")
	cmd.Flags().StringVarP(&f.workspaceFile, "workspace-file", "w", "", "VS Code .code-workspace file listing the roots")
	cmd.MarkFlagsMutuallyExclusive("root", "workspace-file")
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "print merged files instead of writing them")
	cmd.Flags().BoolVar(&f.noLock, "no-lock", false, "skip the lock that keeps other wpiheaders processes out")
}

// resolveRoots applies flag, workspace file and configured roots in that order.
func (f *rootFlags) resolveRoots(cfg *config.Config) ([]workspace.Root, error) {
	roots, err := workspace.Resolve(workspace.Sources{
		Paths:         f.roots,
		WorkspaceFile: f.workspaceFile,
		Configured:    cfg.Workspace.Roots,
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("resolve workspace roots").
			WithSuggestions(
				"Pass existing directories with --root",
				"Check the folders list of the --workspace-file",
			).
			Wrap(err).
			BuildError()
	}
	if len(roots) == 0 {
		return nil, workspace.ErrNoRoots
	}
	return roots, nil
}

func (a *App) compilerExtractor(cfg *config.Config) *compiler.Extractor {
	ext := compiler.NewExtractor(a.Runner)
	ext.Command = cfg.Compiler.Command
	ext.Markers = compiler.Markers{Start: cfg.Compiler.StartMarker, End: cfg.Compiler.EndMarker}
	ext.Timeout = cfg.Compiler.Timeout
	return ext
}

func (a *App) projectExtractor(cfg *config.Config) *project.Extractor {
	ext := project.NewExtractor(a.Runner)
	ext.Command = cfg.BuildTool.Command
	ext.Sentinel = cfg.BuildTool.Sentinel
	ext.Placeholder = cfg.Properties.Placeholder
	ext.Timeout = cfg.BuildTool.Timeout
	return ext
}

// newCoordinator wires the extractors, finder and merger for roots.
func (a *App) newCoordinator(cfg *config.Config, roots []workspace.Root, flags runFlags) (*coordinator.Coordinator, error) {
	finder, err := workspace.NewFinder(cfg.Properties.Pattern, nil)
	if err != nil {
		return nil, issue.WrapWithContext(err, "prepare header update", "properties.pattern")
	}

	opts := coordinator.Options{
		Roots:    roots,
		Compiler: a.compilerExtractor(cfg),
		Headers:  a.projectExtractor(cfg),
		Finder:   finder,
		Merger: &ccprops.Merger{
			Options: ccprops.Options{
				WindowsName:      cfg.Properties.WindowsName,
				IntelliSenseMode: cfg.Properties.IntelliSenseMode,
				Indent:           cfg.Properties.Indent,
			},
			DryRun: flags.dryRun,
		},
		Indicator:       newStatusIndicator(a.stderr),
		Notifier:        newConsoleNotifier(a.stderr, a.stderr),
		Parallelism:     cfg.Workspace.Parallelism,
		PerRootCompiler: cfg.Compiler.PerRoot,
	}
	// A dry run writes nothing, so it never needs to exclude other processes.
	if !flags.noLock && !flags.dryRun {
		opts.Locker = runlock.New("")
	}
	coord, err := coordinator.New(opts)
	if err != nil {
		return nil, issue.WrapWithOperation(err, "prepare header update")
	}
	return coord, nil
}

// reportRun prints guidance for a finished run and converts failures into an
// exit status. It returns nil when every root succeeded or the run was
// skipped.
func (a *App) reportRun(report coordinator.Report, runErr error, scheme config.ColorScheme) error {
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return interrupted()
		}
		return a.failWithGuidance(runErr, scheme)
	}
	if report.Skipped {
		a.renderIssue(issue.Get(issue.RunInProgressId), scheme)
		return nil
	}

	failed := report.Failed()
	if len(failed) == 0 {
		return nil
	}
	// Roots stopped by an interrupt fail with the cancellation inside their
	// process error; that is not something guidance can help with.
	for _, rr := range failed {
		if errors.Is(rr.Err, context.Canceled) {
			return interrupted()
		}
	}

	seen := map[issue.Id]bool{}
	for _, rr := range failed {
		iss := issue.ForError(rr.Err)
		if iss == nil || seen[iss.Id()] {
			continue
		}
		seen[iss.Id()] = true
		a.renderIssue(iss, scheme)
	}
	return &ExitError{Code: 1}
}

// failWithGuidance reports err like fail and adds the catalog entry for it,
// unless err already carries its own suggestions.
func (a *App) failWithGuidance(err error, scheme config.ColorScheme) error {
	exitErr := a.fail(err)
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.HasSuggestions() {
		return exitErr
	}
	a.renderIssue(issue.ForError(err), scheme)
	return exitErr
}

// interrupted is the exit status of a run stopped by Ctrl+C.
func interrupted() error {
	slog.Info("header update interrupted")
	return &ExitError{Code: 130}
}

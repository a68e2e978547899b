// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for wpiheaders.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/config"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/procrun"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Loaded, error)
	}

	// App wires CLI services and shared state. Every command handler
	// receives the App and reads configuration through it.
	App struct {
		Config ConfigProvider
		Runner *procrun.Runner
		stdout io.Writer
		stderr io.Writer

		verbose bool
		cfgFile string
		cfgDir  string
		envFile string

		loaded *config.Loaded
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Runner *procrun.Runner
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Runner == nil {
		deps.Runner = &procrun.Runner{}
	}
	return &App{
		Config: deps.Config,
		Runner: deps.Runner,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// NewRootCommand builds the wpiheaders command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wpiheaders",
		Short: "Keep C++ IntelliSense include paths in sync with a WPILib project",
		Long: TitleStyle.Render("wpiheaders") + SubtitleStyle.Render(" - C++ header discovery for WPILib projects") + `

wpiheaders asks the roboRIO cross-compiler for its built-in include
directories and the gradle build for the project's library headers, then
writes the combined list into every .vscode/c_cpp_properties.json of the
workspace.

` + SubtitleStyle.Render("Examples:") + `
  wpiheaders update                 Update the current workspace
  wpiheaders update --dry-run       Print the merged files without writing
  wpiheaders watch                  Update again whenever build files change
  wpiheaders list compiler          Show the compiler's include directories
  wpiheaders config show            Show the effective configuration`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			app.setupLogging(app.verbose)
			config.SetConfigDirOverride(app.cfgDir)
		},
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is <config dir>/wpiheaders/config.cue)")
	rootCmd.PersistentFlags().StringVar(&app.cfgDir, "config-dir", "", "directory holding config.cue (default is <user config dir>/wpiheaders)")
	rootCmd.PersistentFlags().StringVar(&app.envFile, "env-file", "", "read WPIHEADERS_* overrides from this file (default ./.env)")

	rootCmd.AddCommand(newUpdateCommand(app))
	rootCmd.AddCommand(newWatchCommand(app))
	rootCmd.AddCommand(newListCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the resulting status.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:]))
}

// Run executes the command tree with args and returns the exit status.
func Run(ctx context.Context, args []string) int {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)

	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(errorHandler),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// errorHandler stays silent for failures the command already reported.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

// setupLogging installs a charmbracelet/log handler as the slog default.
func (a *App) setupLogging(verbose bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(a.stderr, log.Options{
		Level:           level,
		Prefix:          "wpiheaders",
		ReportTimestamp: verbose,
	})
	slog.SetDefault(slog.New(logger))
}

// loadConfig loads configuration once per invocation. A verbose setting in
// the file or environment raises the log level like --verbose does.
func (a *App) loadConfig(ctx context.Context) (*config.Loaded, error) {
	if a.loaded != nil {
		return a.loaded, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determine working directory: %w", err)
	}
	loaded, err := a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.cfgFile,
		ConfigDirPath:  a.cfgDir,
		DotEnvPath:     a.envFile,
		WorkingDir:     wd,
	})
	if err != nil {
		exitErr := a.fail(err)
		a.renderIssue(issue.Get(issue.ConfigLoadFailedId), config.ColorSchemeAuto)
		return nil, exitErr
	}
	if loaded.UI.Verbose && !a.verbose {
		a.verbose = true
		a.setupLogging(true)
	}
	a.loaded = loaded
	return loaded, nil
}

// fail prints err with its suggestions and returns an exit status that is
// already reported.
func (a *App) fail(err error) error {
	_, _ = fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.verbose))
	return &ExitError{Code: 1}
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// list their suggestions, and verbose mode adds the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderIssue prints the Markdown guidance of iss to stderr.
func (a *App) renderIssue(iss *issue.Issue, scheme config.ColorScheme) {
	if iss == nil {
		return
	}
	style := scheme.GlamourStyle()
	if !isTerminal(a.stderr) {
		style = "notty"
	}
	rendered, err := iss.Render(style)
	if err != nil {
		slog.Debug("render issue guidance", "id", iss.Id(), "error", err)
		return
	}
	_, _ = fmt.Fprint(a.stderr, rendered)
}

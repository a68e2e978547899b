// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/ccprops"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/compiler"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/project"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/watch"
	"github.com/ThadHouse/vscode-wpilibheaders/internal/workspace"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError collects field-level validation errors of a Config.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Compiler   CompilerConfig   `json:"compiler" mapstructure:"compiler"`
		BuildTool  BuildToolConfig  `json:"build_tool" mapstructure:"build_tool"`
		Properties PropertiesConfig `json:"properties" mapstructure:"properties"`
		Workspace  WorkspaceConfig  `json:"workspace" mapstructure:"workspace"`
		Watch      WatchConfig      `json:"watch" mapstructure:"watch"`
		UI         UIConfig         `json:"ui" mapstructure:"ui"`
	}

	// CompilerConfig configures the cross-compiler include extraction.
	CompilerConfig struct {
		// Command is the full compiler command line, split with shell rules.
		Command     string        `json:"command" mapstructure:"command"`
		StartMarker string        `json:"start_marker" mapstructure:"start_marker"`
		EndMarker   string        `json:"end_marker" mapstructure:"end_marker"`
		Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
		// PerRoot runs the compiler once per workspace root instead of once per run.
		PerRoot bool `json:"per_root" mapstructure:"per_root"`
	}

	// BuildToolConfig configures the project header extraction.
	BuildToolConfig struct {
		Command  string        `json:"command" mapstructure:"command"`
		Sentinel string        `json:"sentinel" mapstructure:"sentinel"`
		Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
	}

	// PropertiesConfig configures how c_cpp_properties.json files are found and merged.
	PropertiesConfig struct {
		Pattern          string `json:"pattern" mapstructure:"pattern"`
		Placeholder      string `json:"placeholder" mapstructure:"placeholder"`
		WindowsName      string `json:"windows_name" mapstructure:"windows_name"`
		IntelliSenseMode string `json:"intellisense_mode" mapstructure:"intellisense_mode"`
		Indent           string `json:"indent" mapstructure:"indent"`
	}

	// WorkspaceConfig lists the default workspace roots.
	WorkspaceConfig struct {
		// Roots are used when no --root or --workspace-file is given; empty
		// means the current directory.
		Roots []string `json:"roots" mapstructure:"roots"`
		// Parallelism bounds concurrent root tasks; 0 runs every root at once.
		Parallelism int `json:"parallelism" mapstructure:"parallelism"`
	}

	// WatchConfig configures watch mode.
	WatchConfig struct {
		Patterns []string      `json:"patterns" mapstructure:"patterns"`
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Compiler: CompilerConfig{
			Command:     compiler.DefaultCommand,
			StartMarker: compiler.DefaultStartMarker,
			EndMarker:   compiler.DefaultEndMarker,
			Timeout:     compiler.DefaultTimeout,
		},
		BuildTool: BuildToolConfig{
			Command:  project.DefaultCommand(),
			Sentinel: project.DefaultSentinel,
			Timeout:  project.DefaultTimeout,
		},
		Properties: PropertiesConfig{
			Pattern:          workspace.DefaultPattern,
			Placeholder:      project.DefaultPlaceholder,
			WindowsName:      ccprops.DefaultWindowsName,
			IntelliSenseMode: ccprops.DefaultIntelliSenseMode,
			Indent:           ccprops.DefaultIndent,
		},
		Workspace: WorkspaceConfig{
			Roots: []string{},
		},
		Watch: WatchConfig{
			Patterns: watch.DefaultPatterns(),
			Debounce: watch.DefaultDebounce,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// Validate checks constraints the CUE schema cannot express after env
// overrides have been applied.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Compiler.Command) == "" {
		errs = append(errs, errors.New("compiler.command must not be empty"))
	}
	if c.Compiler.StartMarker == "" {
		errs = append(errs, errors.New("compiler.start_marker must not be empty"))
	}
	if strings.TrimSpace(c.BuildTool.Command) == "" {
		errs = append(errs, errors.New("build_tool.command must not be empty"))
	}
	if c.BuildTool.Sentinel == "" {
		errs = append(errs, errors.New("build_tool.sentinel must not be empty"))
	}
	if c.Compiler.Timeout < 0 || c.BuildTool.Timeout < 0 || c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("timeouts and debounce must not be negative"))
	}
	if c.Workspace.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("workspace.parallelism must be >= 0, got %d", c.Workspace.Parallelism))
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap exposes ErrInvalidConfig and every field error.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// GlamourStyle maps the scheme to a glamour style name.
func (cs ColorScheme) GlamourStyle() string {
	switch cs {
	case ColorSchemeDark:
		return "dark"
	case ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}

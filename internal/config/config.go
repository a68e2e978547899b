// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ThadHouse/vscode-wpilibheaders/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "wpiheaders"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. WPIHEADERS_COMPILER_COMMAND.
	EnvPrefix = "WPIHEADERS"
	// DotEnvFileName is read from the working directory when present.
	DotEnvFileName = ".env"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the wpiheaders configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// ConfigPath returns the path of config.cue inside ConfigDir.
func ConfigPath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// ResolvePath reports which config file a load with opts would read, or ""
// when only defaults and environment overrides apply.
func ResolvePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(cuePath) {
		return cuePath, nil
	}
	if localPath := filepath.Join(opts.WorkingDir, ConfigFileName+"."+ConfigFileExt); fileExists(localPath) {
		return localPath, nil
	}
	return "", nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level or process state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := ResolvePath(opts)
	if err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'wpiheaders config path' to see where the config file is looked up").
			Wrap(err).
			BuildError()
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'wpiheaders config dump' to see a valid configuration").
				Wrap(err).
				BuildError()
		}
	}

	if err := applyDotEnv(v, opts); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("load environment file").
			WithResource(opts.DotEnvPath).
			WithSuggestion("Check the file uses KEY=value lines").
			Wrap(err).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check WPIHEADERS_* environment variables for empty or malformed values").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("compiler.command", defaults.Compiler.Command)
	v.SetDefault("compiler.start_marker", defaults.Compiler.StartMarker)
	v.SetDefault("compiler.end_marker", defaults.Compiler.EndMarker)
	v.SetDefault("compiler.timeout", defaults.Compiler.Timeout)
	v.SetDefault("compiler.per_root", defaults.Compiler.PerRoot)
	v.SetDefault("build_tool.command", defaults.BuildTool.Command)
	v.SetDefault("build_tool.sentinel", defaults.BuildTool.Sentinel)
	v.SetDefault("build_tool.timeout", defaults.BuildTool.Timeout)
	v.SetDefault("properties.pattern", defaults.Properties.Pattern)
	v.SetDefault("properties.placeholder", defaults.Properties.Placeholder)
	v.SetDefault("properties.windows_name", defaults.Properties.WindowsName)
	v.SetDefault("properties.intellisense_mode", defaults.Properties.IntelliSenseMode)
	v.SetDefault("properties.indent", defaults.Properties.Indent)
	v.SetDefault("workspace.roots", defaults.Workspace.Roots)
	v.SetDefault("workspace.parallelism", defaults.Workspace.Parallelism)
	v.SetDefault("watch.patterns", defaults.Watch.Patterns)
	v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	v.SetDefault("ui.color_scheme", string(defaults.UI.ColorScheme))
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	// Preserves defaults and lets environment variables still win.
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// applyDotEnv reads WPIHEADERS_* entries from a .env file. Real environment
// variables take precedence over the file, and the process environment is
// left untouched.
func applyDotEnv(v *viper.Viper, opts LoadOptions) error {
	path := opts.DotEnvPath
	if path == "" {
		path = filepath.Join(opts.WorkingDir, DotEnvFileName)
		if !fileExists(path) {
			return nil
		}
	}

	entries, err := godotenv.Read(path)
	if err != nil {
		return err
	}

	for _, key := range v.AllKeys() {
		envName := EnvName(key)
		value, ok := entries[envName]
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(envName); set {
			continue
		}
		v.Set(key, value)
	}
	return nil
}

// EnvName returns the environment variable that overrides a config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file if none exists and
// returns its path.
func CreateDefaultConfig() (string, error) {
	cfgPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := writeConfig(cfgPath, DefaultConfig()); err != nil {
		return "", err
	}
	return cfgPath, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	cfgPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return writeConfig(cfgPath, cfg)
}

func writeConfig(cfgPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// wpiheaders configuration file\n")
	sb.WriteString("// Every field is optional. Environment variables named WPIHEADERS_<SECTION>_<KEY>\n")
	sb.WriteString("// override the values below.\n")

	sb.WriteString("\ncompiler: {\n")
	fmt.Fprintf(&sb, "\tcommand:      %q\n", cfg.Compiler.Command)
	fmt.Fprintf(&sb, "\tstart_marker: %q\n", cfg.Compiler.StartMarker)
	fmt.Fprintf(&sb, "\tend_marker:   %q\n", cfg.Compiler.EndMarker)
	fmt.Fprintf(&sb, "\ttimeout:      %q\n", cfg.Compiler.Timeout.String())
	fmt.Fprintf(&sb, "\tper_root:     %v\n", cfg.Compiler.PerRoot)
	sb.WriteString("}\n")

	sb.WriteString("\nbuild_tool: {\n")
	fmt.Fprintf(&sb, "\tcommand:  %q\n", cfg.BuildTool.Command)
	fmt.Fprintf(&sb, "\tsentinel: %q\n", cfg.BuildTool.Sentinel)
	fmt.Fprintf(&sb, "\ttimeout:  %q\n", cfg.BuildTool.Timeout.String())
	sb.WriteString("}\n")

	sb.WriteString("\nproperties: {\n")
	fmt.Fprintf(&sb, "\tpattern:           %q\n", cfg.Properties.Pattern)
	fmt.Fprintf(&sb, "\tplaceholder:       %q\n", cfg.Properties.Placeholder)
	fmt.Fprintf(&sb, "\twindows_name:      %q\n", cfg.Properties.WindowsName)
	fmt.Fprintf(&sb, "\tintellisense_mode: %q\n", cfg.Properties.IntelliSenseMode)
	fmt.Fprintf(&sb, "\tindent:            %q\n", cfg.Properties.Indent)
	sb.WriteString("}\n")

	sb.WriteString("\nworkspace: {\n")
	fmt.Fprintf(&sb, "\troots: %s\n", cueList(cfg.Workspace.Roots))
	fmt.Fprintf(&sb, "\tparallelism: %d\n", cfg.Workspace.Parallelism)
	sb.WriteString("}\n")

	sb.WriteString("\nwatch: {\n")
	fmt.Fprintf(&sb, "\tpatterns: %s\n", cueList(cfg.Watch.Patterns))
	fmt.Fprintf(&sb, "\tdebounce: %q\n", cfg.Watch.Debounce.String())
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

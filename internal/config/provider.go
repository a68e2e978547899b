// SPDX-License-Identifier: MPL-2.0

package config

import "context"

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ConfigDirPath overrides the config directory lookup when set.
	ConfigDirPath string
	// DotEnvPath names a .env file to read; empty means <WorkingDir>/.env if present.
	DotEnvPath string
	// WorkingDir is searched for a local config.cue and .env; empty means
	// the process working directory.
	WorkingDir string
}

// Loaded is a configuration together with the file it came from.
type Loaded struct {
	*Config
	// Path is the config file that was read, or "" for defaults only.
	Path string
}

// Provider loads configuration from explicit options.
type Provider interface {
	Load(ctx context.Context, opts LoadOptions) (*Loaded, error)
}

type fileProvider struct{}

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	cfg, path, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &Loaded{Config: cfg, Path: path}, nil
}

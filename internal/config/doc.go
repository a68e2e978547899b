// SPDX-License-Identifier: MPL-2.0

// Package config handles wpiheaders configuration using Viper with CUE as the file format.
//
// Configuration is loaded from config.cue in the platform config directory
// ($XDG_CONFIG_HOME/wpiheaders on Linux, ~/Library/Application Support/wpiheaders
// on macOS, %APPDATA%\wpiheaders on Windows) or, failing that, the working
// directory. The file is validated against an embedded CUE schema
// (config_schema.cue). WPIHEADERS_<SECTION>_<KEY> environment variables, and
// the same names in a .env file, override file values.
package config

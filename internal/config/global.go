// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride redirects ConfigDir, ConfigPath, Save and
// CreateDefaultConfig when set. The CLI's --config-dir flag sets it, and so
// do tests, because os.UserHomeDir ignores HOME on some CI platforms.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir. An empty dir restores the
// platform lookup.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

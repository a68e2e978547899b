// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetConfigHome points the per-user configuration directory at dir and
// returns a cleanup function that restores the original environment.
//
// Platform handling:
//   - Windows: sets APPDATA
//   - macOS: sets HOME (config lives under Library/Application Support)
//   - others: sets XDG_CONFIG_HOME
func SetConfigHome(t testing.TB, dir string) func() {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return MustSetenv(t, "APPDATA", dir)
	case "darwin":
		return MustSetenv(t, "HOME", dir)
	default:
		return MustSetenv(t, "XDG_CONFIG_HOME", dir)
	}
}

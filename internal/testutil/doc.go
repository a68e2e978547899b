// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers that fail the test on error, so test
// bodies can stay focused on behavior.
//
// Environment helpers (MustSetenv, SetConfigHome) return cleanup
// functions. File helpers (MustMkdirAll, MustWriteFile, MustReadFile,
// WriteScript) build throwaway workspaces under t.TempDir().
package testutil
